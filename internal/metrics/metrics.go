package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pinbar-signal-bot/internal/models"
)

const namespace = "pinbar"

// Recorder exposes the bot's Prometheus metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	signalsTotal       *prometheus.CounterVec
	analysisErrors     *prometheus.CounterVec
	tickDuration       *prometheus.HistogramVec
	ticksTotal         *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	breakerOpen        *prometheus.GaugeVec
	lastConfidence     *prometheus.GaugeVec
}

// New creates a recorder with Go runtime and process collectors attached
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Trading signals emitted",
			},
			[]string{"timeframe", "direction", "pattern"},
		),
		analysisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_errors_total",
				Help:      "Per-symbol analysis failures",
			},
			[]string{"timeframe"},
		),
		tickDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of one timeframe tick across all symbols",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"timeframe"},
		),
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Scheduler ticks by outcome",
			},
			[]string{"timeframe", "result"},
		),
		notificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification fan-outs by outcome",
			},
			[]string{"result"},
		),
		breakerOpen: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_open",
				Help:      "1 while the named circuit breaker is open",
			},
			[]string{"name"},
		),
		lastConfidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_signal_confidence",
				Help:      "Confidence of the most recent signal per symbol",
			},
			[]string{"symbol", "timeframe"},
		),
	}
}

// RecordSignal counts an emitted signal
func (r *Recorder) RecordSignal(sig *models.TradingSignal) {
	if r == nil || sig == nil {
		return
	}
	r.signalsTotal.WithLabelValues(sig.Timeframe, string(sig.Direction), sig.Pattern).Inc()
	r.lastConfidence.WithLabelValues(sig.Symbol, sig.Timeframe).Set(sig.Confidence)
}

// RecordAnalysisError counts a per-symbol failure
func (r *Recorder) RecordAnalysisError(timeframe string) {
	if r == nil {
		return
	}
	r.analysisErrors.WithLabelValues(timeframe).Inc()
}

// RecordTick records a finished tick. result is "ok", "skipped" or "crashed".
func (r *Recorder) RecordTick(timeframe, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.ticksTotal.WithLabelValues(timeframe, result).Inc()
	r.tickDuration.WithLabelValues(timeframe).Observe(d.Seconds())
}

// RecordNotification counts a Manager.Send outcome
func (r *Recorder) RecordNotification(delivered bool) {
	if r == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	r.notificationsTotal.WithLabelValues(result).Inc()
}

// SetBreakerOpen tracks a circuit breaker's state
func (r *Recorder) SetBreakerOpen(name string, open bool) {
	if r == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	r.breakerOpen.WithLabelValues(name).Set(v)
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
