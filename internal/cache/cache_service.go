// Package cache provides Redis-based caching for market data.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pinbar-signal-bot/internal/logging"
)

// ErrUnavailable is returned while Redis is marked unhealthy
var ErrUnavailable = errors.New("redis unavailable (circuit breaker open)")

// ErrMiss is returned when a key does not exist
var ErrMiss = errors.New("cache miss")

// Config holds Redis connection settings
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// CacheService provides Redis-based caching with graceful degradation.
// When Redis is unavailable, operations return errors that callers should handle
// by going to the exchange directly.
type CacheService struct {
	client       *redis.Client
	config       Config
	logger       *logging.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService connects to Redis. A failed initial ping returns the
// service in degraded mode rather than an error.
func NewCacheService(cfg Config, logger *logging.Logger) *CacheService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:        client,
		config:        cfg,
		logger:        logger.WithComponent("cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
		lastCheck:     time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.logger.Warn("Initial Redis connection failed, running degraded", "address", cfg.Address, "error", err)
		return cs
	}

	cs.healthy = true
	cs.logger.Info("Redis connected", "address", cfg.Address)
	return cs
}

// IsHealthy returns whether Redis is currently available.
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn("Redis marked unhealthy", "failures", cs.failureCount, "error", err)
		}
		cs.healthy = false
		cs.lastCheck = time.Now()
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info("Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth pings in the background once checkInterval has passed while unhealthy.
func (cs *CacheService) checkHealth() {
	cs.mu.Lock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	if shouldCheck {
		cs.lastCheck = time.Now()
	}
	cs.mu.Unlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a raw value from cache.
func (cs *CacheService) Get(ctx context.Context, key string) ([]byte, error) {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return nil, ErrUnavailable
	}

	result, err := cs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		cs.recordFailure(err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a raw value in cache with TTL.
func (cs *CacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cs.checkHealth()

	if !cs.IsHealthy() {
		return ErrUnavailable
	}

	if err := cs.client.Set(ctx, key, value, ttl).Err(); err != nil {
		cs.recordFailure(err)
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Delete removes keys from cache.
func (cs *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !cs.IsHealthy() {
		return ErrUnavailable
	}
	if err := cs.client.Del(ctx, keys...).Err(); err != nil {
		cs.recordFailure(err)
		return fmt.Errorf("redis del failed: %w", err)
	}
	cs.recordSuccess()
	return nil
}

// GetStatus reports connection health for the status API
func (cs *CacheService) GetStatus() map[string]interface{} {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return map[string]interface{}{
		"address":       cs.config.Address,
		"healthy":       cs.healthy,
		"failure_count": cs.failureCount,
	}
}

// Close closes the Redis client.
func (cs *CacheService) Close() error {
	return cs.client.Close()
}
