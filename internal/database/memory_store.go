package database

import (
	"context"
	"sort"
	"sync"

	"pinbar-signal-bot/internal/models"
)

// MemoryStore keeps signals and logs in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	signals []models.TradingSignal
	seen    map[string]bool
	logs    []models.LogEntry
	maxLogs int
	closed  bool
}

// NewMemoryStore creates an empty store. maxLogs bounds the log buffer (0 = 10000).
func NewMemoryStore(maxLogs int) *MemoryStore {
	if maxLogs <= 0 {
		maxLogs = 10000
	}
	return &MemoryStore{seen: make(map[string]bool), maxLogs: maxLogs}
}

// SaveSignal stores a copy of the signal, ignoring duplicates by ID
func (m *MemoryStore) SaveSignal(_ context.Context, sig *models.TradingSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if sig.ID != "" && m.seen[sig.ID] {
		return nil
	}
	m.seen[sig.ID] = true
	m.signals = append(m.signals, *sig)
	return nil
}

// SaveLog appends a log entry, evicting the oldest beyond maxLogs
func (m *MemoryStore) SaveLog(_ context.Context, entry models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.logs = append(m.logs, entry)
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
	return nil
}

// RecentSignals returns the newest signals first
func (m *MemoryStore) RecentSignals(_ context.Context, limit int) ([]models.TradingSignal, error) {
	m.mu.RLock()
	out := append([]models.TradingSignal(nil), m.signals...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentLogs returns the newest log entries first
func (m *MemoryStore) RecentLogs(_ context.Context, limit int) ([]models.LogEntry, error) {
	m.mu.RLock()
	out := make([]models.LogEntry, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0; i-- {
		out = append(out, m.logs[i])
	}
	m.mu.RUnlock()

	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close marks the store closed
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
