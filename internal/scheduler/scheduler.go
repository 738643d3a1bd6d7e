package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"pinbar-signal-bot/internal/database"
	"pinbar-signal-bot/internal/events"
	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/metrics"
	"pinbar-signal-bot/internal/models"
	"pinbar-signal-bot/internal/notification"
	"pinbar-signal-bot/internal/strategy"
)

const (
	DefaultWorkerCount       = 3
	MaxWorkerCount           = 5
	DefaultHeartbeatInterval = 30 * time.Minute

	heartbeatTag = "heartbeat"
)

// ErrUnknownTimeframe is reported for ticks of a timeframe with no schedule
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Notifier delivers a formatted message; true means some channel accepted it
type Notifier interface {
	Send(ctx context.Context, title, content string) bool
}

// Config holds the schedule. Timeframes maps a label to its cron expression.
type Config struct {
	Symbols           []string
	Timeframes        map[string]string
	WorkerCount       int
	HeartbeatInterval time.Duration
	Location          *time.Location
}

// TickResult summarises one RunTimeframe call
type TickResult struct {
	Timeframe string
	Signals   []*models.TradingSignal
	Failures  int
	Skipped   bool
	Crashed   bool
	Duration  time.Duration
}

// JobStatus describes one registered job
type JobStatus struct {
	Tag      string    `json:"tag"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run"`
	RunCount int       `json:"run_count"`
	Running  bool      `json:"running"`
}

// Scheduler drives the pipeline on a cron schedule per timeframe
type Scheduler struct {
	cron     *gocron.Scheduler
	analyzer strategy.DetailedAnalyzer
	notifier Notifier
	recorder database.Recorder
	bus      *events.EventBus
	metrics  *metrics.Recorder
	logger   *logging.Logger
	config   Config

	mu       sync.Mutex
	running  map[string]bool
	started  bool
	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
}

// Option configures optional collaborators
type Option func(*Scheduler)

// WithEventBus publishes tick, signal and failure events
func WithEventBus(bus *events.EventBus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithMetrics records tick and signal metrics
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a scheduler. A nil notifier or recorder disables that sink.
func New(cfg Config, analyzer strategy.DetailedAnalyzer, notifier Notifier, recorder database.Recorder, logger *logging.Logger, opts ...Option) *Scheduler {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.WorkerCount > MaxWorkerCount {
		cfg.WorkerCount = MaxWorkerCount
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}

	cron := gocron.NewScheduler(cfg.Location)
	cron.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron,
		analyzer: analyzer,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.WithComponent("scheduler"),
		config:   cfg,
		running:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeframes returns the configured labels in sorted order
func (s *Scheduler) Timeframes() []string {
	out := make([]string, 0, len(s.config.Timeframes))
	for tf := range s.config.Timeframes {
		out = append(out, tf)
	}
	sort.Strings(out)
	return out
}

// Start registers one cron job per timeframe plus the heartbeat and starts
// the scheduler in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	for _, tf := range s.Timeframes() {
		expr := s.config.Timeframes[tf]
		if _, err := s.cron.Cron(expr).Tag(tf).Do(s.runJob, tf); err != nil {
			s.cron.Clear()
			return fmt.Errorf("schedule %s (%q): %w", tf, expr, err)
		}
		s.logger.Info("timeframe scheduled", "timeframe", tf, "cron", expr)
	}

	if _, err := s.cron.Every(s.config.HeartbeatInterval).WaitForSchedule().Tag(heartbeatTag).Do(s.Heartbeat); err != nil {
		s.cron.Clear()
		return fmt.Errorf("schedule heartbeat: %w", err)
	}

	s.cron.StartAsync()
	s.started = true
	s.logger.Info("scheduler started",
		"symbols", len(s.config.Symbols),
		"timeframes", len(s.config.Timeframes),
		"workers", s.config.WorkerCount)
	return nil
}

// Stop halts the cron loop, cancels in-flight ticks and waits for them
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasStarted := s.started
	s.started = false
	// acquire refuses new ticks from here on, so Wait cannot race an Add
	s.cancel()
	s.mu.Unlock()

	if wasStarted {
		s.cron.Stop()
	}
	s.inflight.Wait()
	s.logger.Info("scheduler stopped")
	s.recordLog(models.LogInfo, "系统正常关闭")
}

// IsRunning reports whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	return s.cron.IsRunning()
}

// Status lists every registered job
func (s *Scheduler) Status() []JobStatus {
	jobs := s.cron.Jobs()
	out := make([]JobStatus, 0, len(jobs))
	for _, j := range jobs {
		tag := ""
		if tags := j.Tags(); len(tags) > 0 {
			tag = tags[0]
		}
		out = append(out, JobStatus{
			Tag:      tag,
			NextRun:  j.NextRun(),
			LastRun:  j.LastRun(),
			RunCount: j.RunCount(),
			Running:  j.IsRunning(),
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Tag < out[k].Tag })
	return out
}

func (s *Scheduler) runJob(timeframe string) {
	s.RunTimeframe(s.ctx, timeframe)
}

// Heartbeat records that the process is alive
func (s *Scheduler) Heartbeat() {
	s.logger.Info("heartbeat")
	s.recordLog(models.LogInfo, "系统运行正常")
	s.bus.PublishHeartbeat()
}

// RunTimeframe runs one tick: every symbol is analysed on a bounded worker
// pool. A failing symbol never stops its siblings and a failing tick never
// stops the scheduler.
func (s *Scheduler) RunTimeframe(ctx context.Context, timeframe string) (result TickResult) {
	result.Timeframe = timeframe
	start := s.now()

	if !s.acquire(timeframe) {
		if s.ctx.Err() != nil {
			s.logger.Warn("scheduler stopped, tick refused", "timeframe", timeframe)
		} else {
			s.logger.Warn("previous tick still running, skipping", "timeframe", timeframe)
		}
		result.Skipped = true
		s.metrics.RecordTick(timeframe, "skipped", 0)
		return result
	}
	defer func() {
		s.release(timeframe)
		s.inflight.Done()
	}()

	// One trace ID per tick
	ctx, log := logging.WithTraceContext(logging.NewContext(ctx, s.logger.WithField("timeframe", timeframe)))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick panic: %v", r)
			result.Crashed = true
			result.Duration = s.now().Sub(start)
			s.crashed(ctx, log, timeframe, err, debug.Stack())
		}
	}()

	s.recordLog(models.LogInfo, fmt.Sprintf("开始检查 %s 级别信号", timeframe))
	log.Info("tick started", "symbols", len(s.config.Symbols))

	if _, ok := s.config.Timeframes[timeframe]; !ok {
		log.Warn("no configuration for timeframe", "error", ErrUnknownTimeframe)
		s.recordLog(models.LogWarning, fmt.Sprintf("未找到 %s 的时间框架配置", timeframe))
		result.Duration = s.now().Sub(start)
		return result
	}
	s.bus.PublishTick(events.EventTickStarted, timeframe, map[string]interface{}{"symbols": len(s.config.Symbols)})

	signals, failures := s.fanOut(ctx, timeframe)
	for _, sig := range signals {
		s.processSignal(ctx, sig)
	}

	result.Signals = signals
	result.Failures = failures
	result.Duration = s.now().Sub(start)

	log.Info("tick completed", "signals", len(signals), "failures", failures, "duration", result.Duration)
	s.metrics.RecordTick(timeframe, "ok", result.Duration)
	s.bus.PublishTick(events.EventTickCompleted, timeframe, map[string]interface{}{
		"signals":  len(signals),
		"failures": failures,
	})
	return result
}

// fanOut analyses every symbol and returns the signals in symbol order
func (s *Scheduler) fanOut(ctx context.Context, timeframe string) ([]*models.TradingSignal, int) {
	symbols := s.config.Symbols
	found := make([]*models.TradingSignal, len(symbols))
	failed := make([]bool, len(symbols))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.config.WorkerCount
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				found[i], failed[i] = s.runSymbol(ctx, symbols[i], timeframe)
			}
		}()
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var signals []*models.TradingSignal
	failures := 0
	for i := range symbols {
		if failed[i] {
			failures++
		}
		if found[i] != nil {
			signals = append(signals, found[i])
		}
	}
	return signals, failures
}

// runSymbol analyses one symbol and reports a failure. A panic anywhere in
// here, failure reporting included, stays inside this worker iteration.
func (s *Scheduler) runSymbol(ctx context.Context, symbol, timeframe string) (sig *models.TradingSignal, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.AnalysisContext(logging.FromContext(ctx), symbol, timeframe).
				Error("symbol worker panic", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			sig, failed = nil, true
		}
	}()

	found, err := s.analyzeSymbol(ctx, symbol, timeframe)
	if err != nil {
		s.symbolFailed(ctx, symbol, timeframe, err)
		return nil, true
	}
	return found, false
}

func (s *Scheduler) analyzeSymbol(ctx context.Context, symbol, timeframe string) (sig *models.TradingSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.analyzer.AnalyzeDetailed(ctx, symbol, timeframe)
}

func (s *Scheduler) symbolFailed(ctx context.Context, symbol, timeframe string, err error) {
	logging.AnalysisContext(logging.FromContext(ctx), symbol, timeframe).Error("symbol analysis failed", "error", err)
	s.recordLog(models.LogError, fmt.Sprintf("%s %s 分析失败: %v", symbol, timeframe, err))
	s.metrics.RecordAnalysisError(timeframe)
	s.bus.PublishAnalysisFailed(symbol, timeframe, err)

	title, body := notification.FormatErrorMessage(symbol, timeframe, err)
	s.notify(ctx, title, body)
}

func (s *Scheduler) processSignal(ctx context.Context, sig *models.TradingSignal) {
	// the pipeline may have recorded it already; the store dedupes by ID
	if s.recorder != nil {
		s.recorder.RecordSignal(sig)
	}
	s.metrics.RecordSignal(sig)
	s.bus.PublishSignal(sig)

	title, body := notification.FormatSignalMessage(sig)
	s.notify(ctx, title, body)
}

func (s *Scheduler) crashed(ctx context.Context, log *logging.Logger, timeframe string, err error, stack []byte) {
	log.Critical("tick failed", "error", err, "stack", string(stack))
	// the store may be what panicked
	s.safely("record crash", func() {
		s.recordLog(models.LogCritical, fmt.Sprintf("全局检查失败: %v", err))
	})
	s.metrics.RecordTick(timeframe, "crashed", 0)
	s.bus.PublishTick(events.EventTickCrashed, timeframe, map[string]interface{}{"error": err.Error()})

	title, body := notification.FormatCrashMessage(timeframe, err)
	s.notify(ctx, title, body)
}

// safely runs fn and logs a panic instead of propagating it
func (s *Scheduler) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic", "in", what, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *Scheduler) notify(ctx context.Context, title, body string) {
	if s.notifier == nil {
		return
	}
	delivered := false
	s.safely("notify", func() {
		delivered = s.notifier.Send(ctx, title, body)
	})
	s.metrics.RecordNotification(delivered)
	if !delivered {
		s.logger.Warn("notification not delivered", "title", title)
	}
}

func (s *Scheduler) recordLog(level models.LogLevel, message string) {
	if s.recorder != nil {
		s.recorder.RecordLog(level, message)
	}
}

func (s *Scheduler) acquire(timeframe string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil || s.running[timeframe] {
		return false
	}
	s.running[timeframe] = true
	s.inflight.Add(1)
	return true
}

func (s *Scheduler) release(timeframe string) {
	s.mu.Lock()
	delete(s.running, timeframe)
	s.mu.Unlock()
}
