package binance

import (
	"fmt"
	"strings"
	"time"
)

var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  72 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// NormalizeSymbol converts "BTC/USDT" or "btc-usdt" into "BTCUSDT"
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}

// NormalizeInterval maps a timeframe label onto a Binance kline interval.
// Only the month interval "1M" keeps its capital letter.
func NormalizeInterval(timeframe string) (string, error) {
	tf := strings.TrimSpace(timeframe)
	if tf == "1M" {
		return tf, nil
	}
	tf = strings.ToLower(tf)
	if _, ok := intervalDurations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	return tf, nil
}

// IntervalDuration returns the candle length for a timeframe label
func IntervalDuration(timeframe string) (time.Duration, bool) {
	tf, err := NormalizeInterval(timeframe)
	if err != nil {
		return 0, false
	}
	if tf == "1M" {
		return 30 * 24 * time.Hour, true
	}
	d, ok := intervalDurations[tf]
	return d, ok
}
