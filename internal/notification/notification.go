package notification

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
)

const defaultHTTPTimeout = 10 * time.Second

// Notifier interface for different notification providers
type Notifier interface {
	Send(ctx context.Context, title, content string) error
	Name() string
	IsEnabled() bool
}

// Manager fans a message out to every enabled provider
type Manager struct {
	mu        sync.RWMutex
	notifiers []Notifier
	logger    *logging.Logger
}

// NewManager creates a new notification manager
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		notifiers: make([]Notifier, 0),
		logger:    logger.WithComponent("notification"),
	}
}

// AddNotifier adds a notification provider. Disabled providers are kept so
// they show up in Names but are never called.
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	m.notifiers = append(m.notifiers, n)
	m.mu.Unlock()
}

// Names lists the enabled providers
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			names = append(names, n.Name())
		}
	}
	return names
}

// Send delivers to all enabled providers and reports whether at least one
// of them accepted the message. Provider failures are logged, never returned.
func (m *Manager) Send(ctx context.Context, title, content string) bool {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	delivered := false
	for _, n := range notifiers {
		if !n.IsEnabled() {
			continue
		}
		log := logging.NotificationContext(m.logger, n.Name())
		if err := n.Send(ctx, title, content); err != nil {
			log.Error("notification failed", "title", title, "error", err)
			continue
		}
		log.Debug("notification sent", "title", title)
		delivered = true
	}
	return delivered
}

// FormatSignalMessage renders the title and body pushed for a signal
func FormatSignalMessage(sig *models.TradingSignal) (string, string) {
	title := fmt.Sprintf("%s %s 信号", sig.Symbol, sig.Timeframe)

	direction := "空⬇️"
	if sig.Direction == models.DirectionBullish {
		direction = "多⬆️"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "交易对：%s\n", sig.Symbol)
	fmt.Fprintf(&b, "时间级别：%s，交易方向：%s\n", sig.Timeframe, direction)
	fmt.Fprintf(&b, "形态：%s\n", sig.Pattern)
	fmt.Fprintf(&b, "入场点位：%s\n", formatPrice(sig.EntryPrice))
	fmt.Fprintf(&b, "止盈点位：%s\n", formatPrice(sig.TakeProfit))
	fmt.Fprintf(&b, "盈利点数：%s\n", formatPrice(math.Abs(sig.TakeProfit-sig.EntryPrice)))
	fmt.Fprintf(&b, "止损点位：%s\n", formatPrice(sig.StopLoss))
	fmt.Fprintf(&b, "亏损点数：%s\n", formatPrice(math.Abs(sig.StopLoss-sig.EntryPrice)))
	fmt.Fprintf(&b, "置信度：%.2f\n", sig.Confidence)
	fmt.Fprintf(&b, "仓位：%.2f，杠杆：%dx\n", sig.PositionSize, sig.Leverage)
	return title, b.String()
}

// FormatErrorMessage renders a per-symbol analysis failure
func FormatErrorMessage(symbol, timeframe string, err error) (string, string) {
	return "分析错误", fmt.Sprintf("%s %s 分析失败: %v", symbol, timeframe, err)
}

// FormatCrashMessage renders a tick-level failure
func FormatCrashMessage(timeframe string, err error) (string, string) {
	return "分析错误", fmt.Sprintf("%s 定时任务崩溃: %v", timeframe, err)
}

func formatPrice(v float64) string {
	s := fmt.Sprintf("%.8f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func newHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}
