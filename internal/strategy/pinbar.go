package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"pinbar-signal-bot/internal/binance"
	"pinbar-signal-bot/internal/database"
	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
	"pinbar-signal-bot/internal/patterns"
	"pinbar-signal-bot/internal/risk"
)

// Config holds the pipeline's tunables
type Config struct {
	Lookback          int     `json:"lookback" yaml:"lookback" default:"100"`
	MinCandles        int     `json:"min_candles" yaml:"min_candles" default:"50"`
	TrendLookback     int     `json:"trend_lookback" yaml:"trend_lookback" default:"200"`
	PatternWindow     int     `json:"pattern_window" yaml:"pattern_window" default:"3"`
	ATRPeriod         int     `json:"atr_period" yaml:"atr_period" default:"14"`
	StopATRMultiple   float64 `json:"stop_atr_multiple" yaml:"stop_atr_multiple" default:"0.5"`
	RewardATRMultiple float64 `json:"reward_atr_multiple" yaml:"reward_atr_multiple" default:"3"`
	MinConfidence     float64 `json:"min_confidence" yaml:"min_confidence" default:"0.3"`
	MaxConfidence     float64 `json:"max_confidence" yaml:"max_confidence" default:"0.9"`

	// Rejects signals whose ATR is below MinATRRatio of the entry price
	MinVolatilityFilter bool    `json:"min_volatility_filter" yaml:"min_volatility_filter" default:"true"`
	MinATRRatio         float64 `json:"min_atr_ratio" yaml:"min_atr_ratio" default:"0.005"`

	// Scan timeframe -> trend timeframe. Unmapped timeframes trade against a
	// NEUTRAL trend.
	HigherTimeframes map[string]string `json:"higher_timeframes" yaml:"higher_timeframes"`

	// Per-timeframe sizing; missing entries use risk.DefaultParams
	RiskParams map[string]risk.Params `json:"-" yaml:"-"`
}

// DefaultHigherTimeframes maps each scan timeframe to its trend timeframe
func DefaultHigherTimeframes() map[string]string {
	return map[string]string{
		"15m": "4h",
		"1h":  "4h",
		"4h":  "1d",
		"1d":  "1w",
	}
}

// DefaultConfig returns the standard pipeline settings
func DefaultConfig() Config {
	return Config{
		Lookback:            100,
		MinCandles:          50,
		TrendLookback:       200,
		PatternWindow:       3,
		ATRPeriod:           14,
		StopATRMultiple:     0.5,
		RewardATRMultiple:   3.0,
		MinConfidence:       0.3,
		MaxConfidence:       0.9,
		MinVolatilityFilter: true,
		MinATRRatio:         0.005,
		HigherTimeframes:    DefaultHigherTimeframes(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.MinCandles <= 0 {
		c.MinCandles = d.MinCandles
	}
	if c.TrendLookback <= 0 {
		c.TrendLookback = d.TrendLookback
	}
	if c.PatternWindow <= 0 {
		c.PatternWindow = d.PatternWindow
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	if c.StopATRMultiple <= 0 {
		c.StopATRMultiple = d.StopATRMultiple
	}
	if c.RewardATRMultiple <= 0 {
		c.RewardATRMultiple = d.RewardATRMultiple
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MaxConfidence <= 0 || c.MaxConfidence < c.MinConfidence {
		c.MaxConfidence = d.MaxConfidence
	}
	if c.MinATRRatio <= 0 {
		c.MinATRRatio = d.MinATRRatio
	}
	if c.HigherTimeframes == nil {
		c.HigherTimeframes = d.HigherTimeframes
	}
	return c
}

// PinBarStrategy runs the reversal-pattern pipeline for one (symbol, timeframe)
type PinBarStrategy struct {
	provider   binance.MarketDataProvider
	registry   *patterns.Registry
	classifier *TrendClassifier
	sizer      *risk.Sizer
	recorder   database.Recorder
	logger     *logging.Logger
	config     Config
	now        func() time.Time
}

// NewPinBarStrategy wires the pipeline. Nil registry and classifier fall
// back to the defaults; a nil recorder disables persistence.
func NewPinBarStrategy(
	provider binance.MarketDataProvider,
	registry *patterns.Registry,
	classifier *TrendClassifier,
	sizer *risk.Sizer,
	recorder database.Recorder,
	logger *logging.Logger,
	config Config,
) *PinBarStrategy {
	if registry == nil {
		registry = patterns.NewRegistry(patterns.DefaultConfig())
	}
	if classifier == nil {
		classifier = NewTrendClassifier()
	}
	if sizer == nil {
		sizer = risk.NewSizer(risk.Config{})
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PinBarStrategy{
		provider:   provider,
		registry:   registry,
		classifier: classifier,
		sizer:      sizer,
		recorder:   recorder,
		logger:     logger.WithComponent("strategy"),
		config:     config.withDefaults(),
		now:        time.Now,
	}
}

// Name returns the strategy name
func (s *PinBarStrategy) Name() string {
	return "pinbar_reversal"
}

// Analyze returns the best signal or nil. Every error and panic is logged
// and recorded as an ERROR entry, never returned.
func (s *PinBarStrategy) Analyze(ctx context.Context, symbol, timeframe string) *models.TradingSignal {
	sig, err := s.AnalyzeDetailed(ctx, symbol, timeframe)
	if err != nil {
		logging.AnalysisContext(s.logger, symbol, timeframe).Error("analysis failed", "error", err)
		s.recordLog(models.LogError, fmt.Sprintf("%s %s 分析失败: %v", symbol, timeframe, err))
		return nil
	}
	return sig
}

// AnalyzeDetailed runs the pipeline and returns failures to the caller.
// Insufficient history on either timeframe is not a failure: it yields
// (nil, nil).
func (s *PinBarStrategy) AnalyzeDetailed(ctx context.Context, symbol, timeframe string) (sig *models.TradingSignal, err error) {
	log := logging.AnalysisContext(s.logger, symbol, timeframe)
	start := s.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("analysis panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			sig = nil
			err = fmt.Errorf("analysis panic: %v", r)
		}
	}()

	candles, err := s.provider.GetCandles(ctx, symbol, timeframe, s.config.Lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s candles: %w", symbol, timeframe, err)
	}
	if len(candles) < s.config.MinCandles {
		log.Info("not enough candles", "got", len(candles), "need", s.config.MinCandles)
		return nil, nil
	}

	trend, err := s.higherTrend(ctx, symbol, timeframe)
	if err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			log.Info("not enough higher timeframe history", "error", err)
			return nil, nil
		}
		return nil, err
	}

	atr := CalculateATR(candles, s.config.ATRPeriod)
	candidates := s.scan(symbol, timeframe, candles, trend, atr)

	var valid []*models.TradingSignal
	for _, c := range candidates {
		if s.passes(c, trend, atr) {
			valid = append(valid, c)
		}
	}

	best := selectBest(valid)
	log.Debug("analysis finished",
		"trend", string(trend),
		"atr", atr,
		"candidates", len(candidates),
		"valid", len(valid),
		"duration", s.now().Sub(start))
	if best == nil {
		return nil, nil
	}

	logging.SignalContext(log, symbol, string(best.Direction), best.Confidence).Info("signal generated",
		"pattern", best.Pattern,
		"entry", best.EntryPrice,
		"stop_loss", best.StopLoss,
		"take_profit", best.TakeProfit)

	if s.recorder != nil {
		s.recorder.RecordSignal(best)
	}
	return best, nil
}

// higherTrend classifies the trend on the mapped higher timeframe
func (s *PinBarStrategy) higherTrend(ctx context.Context, symbol, timeframe string) (models.TrendState, error) {
	higher, ok := s.config.HigherTimeframes[timeframe]
	if !ok || higher == "" {
		return models.TrendNeutral, nil
	}

	limit := s.config.TrendLookback
	if need := s.classifier.MinCandles(); need > limit {
		limit = need
	}
	candles, err := s.provider.GetCandles(ctx, symbol, higher, limit)
	if err != nil {
		return models.TrendNeutral, fmt.Errorf("fetch %s %s trend candles: %w", symbol, higher, err)
	}
	trend, err := s.classifier.Classify(candles)
	if err != nil {
		return models.TrendNeutral, fmt.Errorf("classify %s trend: %w", higher, err)
	}
	return trend, nil
}

// scan runs the registry over the last PatternWindow candles, oldest first.
// The first candle of the window is scanned without a predecessor.
func (s *PinBarStrategy) scan(symbol, timeframe string, candles []models.Candle, trend models.TrendState, atr float64) []*models.TradingSignal {
	start := len(candles) - s.config.PatternWindow
	if start < 0 {
		start = 0
	}

	var out []*models.TradingSignal
	for i := start; i < len(candles); i++ {
		var prev *models.Candle
		if i > start {
			prev = &candles[i-1]
		}
		for _, m := range s.registry.Detect(candles[i], prev) {
			logging.PatternContext(s.logger, symbol, timeframe, string(m.Type)).
				Debug("pattern detected", "direction", string(m.Direction), "index", i)
			if sig := s.createSignal(symbol, timeframe, m, candles[i], trend, atr); sig != nil {
				out = append(out, sig)
			}
		}
	}
	return out
}

// createSignal assembles a candidate, or returns nil when it runs against the trend
func (s *PinBarStrategy) createSignal(symbol, timeframe string, m patterns.Match, c models.Candle, trend models.TrendState, atr float64) *models.TradingSignal {
	if !trend.Allows(m.Direction) {
		logging.AnalysisContext(s.logger, symbol, timeframe).
			Debug("candidate against trend", "direction", string(m.Direction), "trend", string(trend))
		return nil
	}

	confidence := s.confidence(c)
	pos := s.sizer.Size(s.riskParams(timeframe), confidence)

	sig := &models.TradingSignal{
		ID:           models.SignalIDFor(symbol, timeframe, string(m.Type), c.Timestamp),
		Symbol:       symbol,
		Timeframe:    timeframe,
		Direction:    m.Direction,
		Pattern:      string(m.Type),
		EntryPrice:   c.Close,
		PositionSize: pos.Size,
		Leverage:     pos.Leverage,
		Confidence:   confidence,
		Timestamp:    s.now().UTC(),
	}
	if m.Direction == models.DirectionBullish {
		sig.StopLoss = c.Low - s.config.StopATRMultiple*atr
		sig.TakeProfit = c.Close + s.config.RewardATRMultiple*atr
	} else {
		sig.StopLoss = c.High + s.config.StopATRMultiple*atr
		sig.TakeProfit = c.Close - s.config.RewardATRMultiple*atr
	}
	return sig
}

// confidence is the body/range ratio clamped to [MinConfidence, MaxConfidence]
func (s *PinBarStrategy) confidence(c models.Candle) float64 {
	ratio := 0.0
	if r := c.Range(); r != 0 {
		ratio = c.Body() / r
	}
	return math.Min(math.Max(ratio, s.config.MinConfidence), s.config.MaxConfidence)
}

func (s *PinBarStrategy) riskParams(timeframe string) risk.Params {
	if p, ok := s.config.RiskParams[timeframe]; ok {
		return p
	}
	return risk.DefaultParams()
}

// passes applies the trend-alignment and volatility filters
func (s *PinBarStrategy) passes(sig *models.TradingSignal, trend models.TrendState, atr float64) bool {
	if !trend.Allows(sig.Direction) {
		return false
	}
	if s.config.MinVolatilityFilter {
		if sig.EntryPrice <= 0 || atr/sig.EntryPrice < s.config.MinATRRatio {
			return false
		}
	}
	return true
}

// selectBest returns the highest-confidence candidate. Candidates arrive
// oldest first and ties go to the later one.
func selectBest(candidates []*models.TradingSignal) *models.TradingSignal {
	var best *models.TradingSignal
	for _, c := range candidates {
		if best == nil || c.Confidence >= best.Confidence {
			best = c
		}
	}
	return best
}

func (s *PinBarStrategy) recordLog(level models.LogLevel, message string) {
	if s.recorder != nil {
		s.recorder.RecordLog(level, message)
	}
}
