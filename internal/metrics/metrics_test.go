package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pinbar-signal-bot/internal/models"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	sig := &models.TradingSignal{Symbol: "BTCUSDT", Timeframe: "1h", Direction: models.DirectionBullish, Pattern: "pin_bar", Confidence: 0.45}

	r.RecordSignal(sig)
	r.RecordSignal(sig)
	r.RecordAnalysisError("1h")
	r.RecordNotification(true)
	r.RecordNotification(false)
	r.RecordTick("1h", "ok", 150*time.Millisecond)
	r.SetBreakerOpen("binance", true)

	if got := testutil.ToFloat64(r.signalsTotal.WithLabelValues("1h", "BULLISH", "pin_bar")); got != 2 {
		t.Errorf("signals_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lastConfidence.WithLabelValues("BTCUSDT", "1h")); got != 0.45 {
		t.Errorf("last confidence = %v", got)
	}
	if got := testutil.ToFloat64(r.analysisErrors.WithLabelValues("1h")); got != 1 {
		t.Errorf("analysis errors = %v", got)
	}
	if got := testutil.ToFloat64(r.notificationsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed notifications = %v", got)
	}
	if got := testutil.ToFloat64(r.breakerOpen.WithLabelValues("binance")); got != 1 {
		t.Errorf("breaker gauge = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordTick("4h", "ok", time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pinbar_ticks_total{result="ok",timeframe="4h"} 1`) {
		t.Errorf("metrics output missing tick counter:\n%s", body)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordSignal(&models.TradingSignal{})
	r.RecordAnalysisError("1h")
	r.RecordTick("1h", "ok", 0)
}
