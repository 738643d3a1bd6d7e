package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/models"
)

// AsyncConfig sizes the write queue
type AsyncConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

func (c *AsyncConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

type writeJob struct {
	signal *models.TradingSignal
	entry  models.LogEntry
}

// AsyncStats counts recorder outcomes
type AsyncStats struct {
	Submitted int64 `json:"submitted"`
	Written   int64 `json:"written"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// AsyncStore submits writes to a bounded queue drained by a small worker pool.
// Record* never blocks: a full queue drops the write and logs it.
type AsyncStore struct {
	store    Store
	config   AsyncConfig
	logger   *logging.Logger
	fallback io.Writer
	now      func() time.Time

	queue  chan writeJob
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	submitted int64
	written   int64
	failed    int64
	dropped   int64
}

// NewAsyncStore starts the workers
func NewAsyncStore(store Store, config AsyncConfig, logger *logging.Logger) *AsyncStore {
	config.applyDefaults()
	if logger == nil {
		logger = logging.Default()
	}

	a := &AsyncStore{
		store:    store,
		config:   config,
		logger:   logger.WithComponent("store"),
		fallback: os.Stderr,
		now:      time.Now,
		queue:    make(chan writeJob, config.QueueSize),
	}

	for i := 0; i < config.Workers; i++ {
		a.wg.Add(1)
		go a.worker()
	}
	return a
}

// Store returns the backend, used for reads
func (a *AsyncStore) Store() Store {
	return a.store
}

// RecordSignal queues a signal write
func (a *AsyncStore) RecordSignal(signal *models.TradingSignal) {
	if signal == nil {
		return
	}
	a.enqueue(writeJob{signal: signal})
}

// RecordLog queues a log entry stamped with the submission time
func (a *AsyncStore) RecordLog(level models.LogLevel, message string) {
	if !level.Valid() {
		level = models.LogInfo
	}
	a.enqueue(writeJob{entry: models.LogEntry{Timestamp: a.now(), Level: level, Message: message}})
}

func (a *AsyncStore) enqueue(job writeJob) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		atomic.AddInt64(&a.dropped, 1)
		a.writeFallback(job, ErrClosed)
		return
	}

	select {
	case a.queue <- job:
		atomic.AddInt64(&a.submitted, 1)
	default:
		atomic.AddInt64(&a.dropped, 1)
		a.logger.Warn("Store queue full, dropping write", "queue_size", a.config.QueueSize, "kind", job.kind())
		a.writeFallback(job, ErrQueueFull)
	}
}

func (a *AsyncStore) worker() {
	defer a.wg.Done()
	for job := range a.queue {
		a.write(job)
	}
}

func (a *AsyncStore) write(job writeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.WriteTimeout)
	defer cancel()

	var err error
	if job.signal != nil {
		err = a.store.SaveSignal(ctx, job.signal)
	} else {
		err = a.store.SaveLog(ctx, job.entry)
	}

	if err != nil {
		atomic.AddInt64(&a.failed, 1)
		logging.DatabaseContext(a.logger, "insert", job.kind()+"s").Error("Store write failed", "error", err)
		a.writeFallback(job, err)
		return
	}
	atomic.AddInt64(&a.written, 1)
}

// writeFallback surfaces lost log entries on stderr so they are never silently gone
func (a *AsyncStore) writeFallback(job writeJob, cause error) {
	if job.signal != nil || a.fallback == nil {
		return
	}
	fmt.Fprintf(a.fallback, "%s [%s] %s (store: %v)\n",
		job.entry.Timestamp.Format(time.RFC3339), job.entry.Level, job.entry.Message, cause)
}

func (j writeJob) kind() string {
	if j.signal != nil {
		return "signal"
	}
	return "log"
}

// Stats returns a snapshot of the counters
func (a *AsyncStore) Stats() AsyncStats {
	return AsyncStats{
		Submitted: atomic.LoadInt64(&a.submitted),
		Written:   atomic.LoadInt64(&a.written),
		Failed:    atomic.LoadInt64(&a.failed),
		Dropped:   atomic.LoadInt64(&a.dropped),
	}
}

// Close stops accepting writes, drains the queue and closes the backend.
// If ctx expires first the remaining writes are abandoned.
func (a *AsyncStore) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Store flush interrupted", "pending", len(a.queue))
		return ctx.Err()
	}

	return a.store.Close()
}
