package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pinbar-signal-bot/config"
	"pinbar-signal-bot/internal/binance"
	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
	"pinbar-signal-bot/internal/patterns"
	"pinbar-signal-bot/internal/risk"
	"pinbar-signal-bot/internal/strategy"
)

// result is one line of output per (symbol, timeframe)
type result struct {
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"timeframe"`
	Signal    *models.TradingSignal `json:"signal,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// analyzer is the part of the pipeline a one-shot run needs
type analyzer interface {
	AnalyzeDetailed(ctx context.Context, symbol, timeframe string) (*models.TradingSignal, error)
}

func main() {
	symbols := flag.String("symbols", "", "comma separated symbols (default: configured symbols)")
	timeframes := flag.String("timeframes", "", "comma separated timeframes (default: configured timeframes)")
	mock := flag.Bool("mock", false, "use simulated candles")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     "stderr",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "analyze",
	})

	var provider binance.MarketDataProvider
	if *mock || cfg.BinanceConfig.MockMode {
		provider = binance.NewMockClient()
	} else {
		provider = binance.NewFuturesClient(binance.ClientConfig{
			APIKey:            cfg.BinanceConfig.APIKey,
			SecretKey:         cfg.BinanceConfig.SecretKey,
			Testnet:           cfg.BinanceConfig.TestNet,
			RequestsPerSecond: cfg.BinanceConfig.RateLimitPerSecond,
			MaxRetries:        cfg.BinanceConfig.MaxRetries,
		}, logger)
	}

	// No recorder: a one-shot run must not write into the bot's store
	pipeline := strategy.NewPinBarStrategy(
		provider,
		patterns.NewRegistry(cfg.Patterns()),
		nil,
		risk.NewSizer(cfg.Risk()),
		nil,
		logger,
		cfg.Strategy(),
	)

	syms := cfg.Symbols
	if *symbols != "" {
		syms = splitList(*symbols)
	}
	tfs := cfg.TimeframeLabels()
	if *timeframes != "" {
		tfs = splitList(*timeframes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed, err := analyzeAll(ctx, pipeline, syms, tfs, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ encode: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(2)
	}
}

// analyzeAll writes one JSON object per line for every (timeframe, symbol)
// pair and reports whether any analysis failed
func analyzeAll(ctx context.Context, a analyzer, syms, tfs []string, w io.Writer) (bool, error) {
	enc := json.NewEncoder(w)
	failed := false
	for _, tf := range tfs {
		for _, sym := range syms {
			r := result{Symbol: sym, Timeframe: tf}
			sig, err := a.AnalyzeDetailed(ctx, sym, tf)
			if err != nil {
				r.Error = err.Error()
				failed = true
			}
			r.Signal = sig
			if err := enc.Encode(r); err != nil {
				return failed, err
			}
		}
	}
	return failed, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
