package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
)

// ClientConfig configures the USDⓈ-M futures market data client
type ClientConfig struct {
	APIKey            string
	SecretKey         string
	Testnet           bool
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int           // attempts including the first one
	BaseBackoff       time.Duration // doubled on every retry
	HTTPTimeout       time.Duration
}

func (c *ClientConfig) applyDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
}

type klineFetcher func(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error)

// FuturesClient fetches klines from Binance futures with client-side rate
// limiting and bounded exponential backoff
type FuturesClient struct {
	config      ClientConfig
	client      *futures.Client
	rateLimiter *rate.Limiter
	fetch       klineFetcher
	logger      *logging.Logger
}

// NewFuturesClient creates a market data client
func NewFuturesClient(config ClientConfig, logger *logging.Logger) *FuturesClient {
	config.applyDefaults()
	if logger == nil {
		logger = logging.Default()
	}

	futures.UseTestnet = config.Testnet
	client := futures.NewClient(config.APIKey, config.SecretKey)
	client.HTTPClient = &http.Client{
		Timeout: config.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fc := &FuturesClient{
		config:      config,
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:      logger.WithComponent("binance"),
	}
	fc.fetch = fc.fetchKlines
	return fc
}

func (c *FuturesClient) fetchKlines(ctx context.Context, symbol, interval string, limit int) ([]*futures.Kline, error) {
	return c.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
}

// GetCandles returns up to limit most recent candles, oldest first
func (c *FuturesClient) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	sym := NormalizeSymbol(symbol)
	interval, err := NormalizeInterval(timeframe)
	if err != nil {
		return nil, err
	}

	log := logging.ExchangeContext(c.logger, sym, interval, limit)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		attempts++
		klines, err := c.fetch(ctx, sym, interval, limit)
		if err == nil {
			return convertKlines(klines)
		}
		lastErr = err

		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == c.config.MaxRetries-1 {
			break
		}

		waitTime := time.Duration(math.Pow(2, float64(attempt))) * c.config.BaseBackoff
		log.Warn("Kline fetch failed, retrying", "attempt", attempts, "backoff", waitTime, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return nil, &FetchError{Symbol: sym, Timeframe: interval, Attempts: attempts, Err: lastErr}
}

// isRetryable treats request validation errors from the exchange as final
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1100, -1120, -1121: // illegal chars, bad interval, bad symbol
			return false
		}
	}
	return true
}

func convertKlines(klines []*futures.Kline) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func convertKline(k *futures.Kline) (models.Candle, error) {
	var c models.Candle
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &c.Open},
		{k.High, &c.High},
		{k.Low, &c.Low},
		{k.Close, &c.Close},
		{k.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parse kline value %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	c.Timestamp = time.UnixMilli(k.OpenTime).UTC()
	return c, nil
}
