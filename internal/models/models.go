package models

import (
	"time"

	"github.com/google/uuid"
)

// Candle is one OHLCV interval, oldest-first in every slice the bot handles
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns |close - open|
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high - low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// IsBullish reports a green candle
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports a red candle
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Direction of a detected pattern or signal. The zero value means no pattern.
type Direction string

const (
	DirectionNone    Direction = ""
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
)

// TrendState is the higher-timeframe trend classification
type TrendState string

const (
	TrendBullish TrendState = "BULLISH"
	TrendBearish TrendState = "BEARISH"
	TrendNeutral TrendState = "NEUTRAL"
)

// Allows reports whether a signal in direction d may be emitted under this trend
func (t TrendState) Allows(d Direction) bool {
	switch t {
	case TrendBullish:
		return d == DirectionBullish
	case TrendBearish:
		return d == DirectionBearish
	default:
		return true
	}
}

// TradingSignal is immutable once built by the pipeline.
type TradingSignal struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	Direction    Direction `json:"direction"`
	Pattern      string    `json:"pattern"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	PositionSize float64   `json:"position_size"`
	Leverage     int       `json:"leverage"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
}

// LogLevel is the severity recorded in the signal store's log table
type LogLevel string

const (
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

// Valid reports whether the level is one the store accepts
func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarning, LogError, LogCritical:
		return true
	}
	return false
}

// LogEntry is one row of the store's log table
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// SignalIDFor derives a stable ID from the candle a signal was built on, so
// re-detecting the same candle on a later tick persists only once.
func SignalIDFor(symbol, timeframe, pattern string, candleTime time.Time) string {
	name := symbol + "|" + timeframe + "|" + pattern + "|" + candleTime.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
