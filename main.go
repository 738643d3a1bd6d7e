package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pinbar-signal-bot/config"
	"pinbar-signal-bot/internal/api"
	"pinbar-signal-bot/internal/binance"
	"pinbar-signal-bot/internal/cache"
	"pinbar-signal-bot/internal/circuit"
	"pinbar-signal-bot/internal/database"
	"pinbar-signal-bot/internal/events"
	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/metrics"
	"pinbar-signal-bot/internal/notification"
	"pinbar-signal-bot/internal/patterns"
	"pinbar-signal-bot/internal/risk"
	"pinbar-signal-bot/internal/scheduler"
	"pinbar-signal-bot/internal/strategy"
	"pinbar-signal-bot/internal/vault"
)

func main() {
	if len(os.Args) > 2 && os.Args[1] == "init-config" {
		if err := config.GenerateSampleConfig(os.Args[2]); err != nil {
			log.Fatalf("Failed to write sample config: %v", err)
		}
		fmt.Printf("Sample configuration written to %s\n", os.Args[2])
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pull credentials from Vault before anything dials out
	if err := loadSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal("Failed to load secrets from Vault", "error", err)
	}

	eventBus := events.NewEventBus()
	recorder := metrics.New()

	// Persistence
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open signal store", "driver", cfg.StoreConfig.Driver, "error", err)
	}
	asyncStore := database.NewAsyncStore(store, database.AsyncConfig{
		QueueSize:    cfg.StoreConfig.QueueSize,
		Workers:      cfg.StoreConfig.Workers,
		WriteTimeout: time.Duration(cfg.StoreConfig.WriteTimeoutSecs) * time.Second,
	}, logger)
	logger.Info("Signal store initialized", "driver", cfg.StoreConfig.Driver)

	// Market data
	provider, breaker, closeCache := buildProvider(cfg, logger, eventBus, recorder)
	defer closeCache()

	// Notifications
	notifyManager, closeNotifiers := buildNotifier(cfg, logger)
	defer closeNotifiers()

	// Analysis pipeline
	sizer := risk.NewSizer(cfg.Risk())
	registry := patterns.NewRegistry(cfg.Patterns())
	logger.Info("Pattern detectors configured",
		"pin_bar", registry.Enabled(patterns.PinBar),
		"engulfing", registry.Enabled(patterns.Engulfing))
	pipeline := strategy.NewPinBarStrategy(
		provider,
		registry,
		strategy.NewTrendClassifier(),
		sizer,
		asyncStore,
		logger,
		cfg.Strategy(),
	)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid scheduler timezone", "error", err)
	}
	sched := scheduler.New(scheduler.Config{
		Symbols:           cfg.Symbols,
		Timeframes:        cfg.Crons(),
		WorkerCount:       cfg.SchedulerConfig.WorkerCount,
		HeartbeatInterval: time.Duration(cfg.SchedulerConfig.HeartbeatMinutes) * time.Minute,
		Location:          loc,
	}, pipeline, notifyManager, asyncStore, logger,
		scheduler.WithEventBus(eventBus),
		scheduler.WithMetrics(recorder),
	)

	// HTTP API
	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.ServerConfig{
			Port:           cfg.ServerConfig.Port,
			Host:           cfg.ServerConfig.Host,
			ProductionMode: cfg.ServerConfig.ProductionMode,
			AllowOrigins:   cfg.ServerConfig.AllowedOrigins,
			RatePerMinute:  cfg.ServerConfig.RatePerMinute,
		}, api.Deps{
			Store:     asyncStore.Store(),
			Queue:     asyncStore,
			Scheduler: sched,
			Sizer:     sizer,
			Breaker:   breaker,
			Metrics:   recorder,
			EventBus:  eventBus,
		}, logger)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Web server stopped", "error", err)
				stop()
			}
		}()
	}

	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", "error", err)
	}
	logger.Info("Pin bar signal bot started",
		"symbols", cfg.Symbols,
		"timeframes", cfg.TimeframeLabels(),
		"notifiers", notifyManager.Names(),
		"mock_mode", cfg.BinanceConfig.MockMode,
	)

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Stop scheduling first so no tick writes into a closing store
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down web server", "error", err)
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.StoreConfig.ShutdownFlushSecs)*time.Second)
	defer flushCancel()
	if err := asyncStore.Close(flushCtx); err != nil {
		logger.Error("Error flushing signal store", "error", err)
	}

	logger.Info("Shutdown complete")
}

func loadSecrets(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	client, err := vault.NewClient(vault.Config{
		Enabled:    cfg.VaultConfig.Enabled,
		Address:    cfg.VaultConfig.Address,
		Token:      cfg.VaultConfig.Token,
		MountPath:  cfg.VaultConfig.MountPath,
		SecretPath: cfg.VaultConfig.SecretPath,
		TLSEnabled: cfg.VaultConfig.TLSEnabled,
		CACert:     cfg.VaultConfig.CACert,
	})
	if err != nil {
		return err
	}
	if !client.IsEnabled() {
		return nil
	}
	if err := client.Health(ctx); err != nil {
		return err
	}

	secrets, err := client.LoadSecrets(ctx)
	if err != nil {
		return err
	}
	cfg.ApplySecrets(secrets)
	logger.Info("Secrets loaded from Vault", "path", cfg.VaultConfig.SecretPath)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (database.Store, error) {
	switch cfg.StoreConfig.Driver {
	case "postgres":
		pg := cfg.StoreConfig.Postgres
		db, err := database.NewDB(ctx, database.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
			SSLMode:  pg.SSLMode,
			MaxConns: int32(pg.MaxConns),
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return database.NewPostgresStore(db), nil
	case "sqlite":
		return database.NewSQLiteStore(cfg.StoreConfig.SQLitePath)
	default:
		return database.NewMemoryStore(cfg.StoreConfig.MemoryMaxLogs), nil
	}
}

// buildProvider assembles exchange (or mock) -> circuit breaker -> candle cache.
// The returned func closes the Redis connection if one was opened.
func buildProvider(cfg *config.Config, logger *logging.Logger, bus *events.EventBus, rec *metrics.Recorder) (binance.MarketDataProvider, *circuit.CircuitBreaker, func()) {
	var provider binance.MarketDataProvider
	if cfg.BinanceConfig.MockMode {
		provider = binance.NewMockClient()
		logger.Warn("Using simulated market data")
	} else {
		provider = binance.NewFuturesClient(binance.ClientConfig{
			APIKey:            cfg.BinanceConfig.APIKey,
			SecretKey:         cfg.BinanceConfig.SecretKey,
			Testnet:           cfg.BinanceConfig.TestNet,
			RequestsPerSecond: cfg.BinanceConfig.RateLimitPerSecond,
			MaxRetries:        cfg.BinanceConfig.MaxRetries,
			HTTPTimeout:       time.Duration(cfg.BinanceConfig.TimeoutSeconds) * time.Second,
		}, logger)
	}

	var breaker *circuit.CircuitBreaker
	if cfg.CircuitBreakerConfig.Enabled {
		breaker = circuit.NewCircuitBreaker("binance", &circuit.CircuitBreakerConfig{
			Enabled:                true,
			MaxConsecutiveFailures: cfg.CircuitBreakerConfig.MaxConsecutiveFailures,
			Cooldown:               time.Duration(cfg.CircuitBreakerConfig.CooldownSeconds) * time.Second,
		})
		breaker.OnTrip(func(name, reason string) {
			logger.Warn("Circuit breaker tripped", "breaker", name, "reason", reason)
			rec.SetBreakerOpen(name, true)
			bus.PublishCircuitBreaker(name, string(circuit.StateOpen), reason)
		})
		breaker.OnReset(func(name string) {
			logger.Info("Circuit breaker reset", "breaker", name)
			rec.SetBreakerOpen(name, false)
			bus.PublishCircuitBreaker(name, string(circuit.StateClosed), "")
		})
		provider = binance.NewGuardedProvider(provider, breaker)
	}

	ttl := time.Duration(cfg.RedisConfig.CandleTTLSeconds) * time.Second
	if !cfg.RedisConfig.Enabled {
		return binance.NewCachedProvider(provider, binance.NewMarketDataCache(), ttl), breaker, func() {}
	}

	service := cache.NewCacheService(cache.Config{
		Address:  cfg.RedisConfig.Address,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
		PoolSize: cfg.RedisConfig.PoolSize,
	}, logger)
	closeFn := func() {
		if err := service.Close(); err != nil {
			logger.Warn("Error closing Redis", "error", err)
		}
	}
	return binance.NewCachedProvider(provider, cache.NewCandleCache(service, "pinbar"), ttl), breaker, closeFn
}

// buildNotifier registers every configured channel. Disabled channels are
// skipped by the manager, so they are added regardless.
func buildNotifier(cfg *config.Config, logger *logging.Logger) (*notification.Manager, func()) {
	n := cfg.NotificationConfig
	manager := notification.NewManager(logger)

	manager.AddNotifier(notification.NewServerChanNotifier(notification.ServerChanConfig{
		SendKey: n.ServerChan.SendKey,
		Enabled: n.ServerChan.Enabled,
	}, nil))
	manager.AddNotifier(notification.NewWeChatWorkNotifier(notification.WeChatWorkConfig{
		CorpID:  n.WeChatWork.CorpID,
		Secret:  n.WeChatWork.Secret,
		AgentID: n.WeChatWork.AgentID,
		ToUser:  n.WeChatWork.ToUser,
		Enabled: n.WeChatWork.Enabled,
	}, nil))
	manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
		BotToken: n.Telegram.BotToken,
		ChatID:   n.Telegram.ChatID,
		Enabled:  n.Telegram.Enabled,
	}, nil))
	manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
		WebhookURL: n.Discord.WebhookURL,
		Enabled:    n.Discord.Enabled,
	}, nil))

	kafkaNotifier := notification.NewKafkaNotifier(notification.KafkaConfig{
		Brokers:     n.Kafka.Brokers,
		Topic:       n.Kafka.Topic,
		Compression: n.Kafka.Compression,
		Enabled:     n.Kafka.Enabled,
	})
	manager.AddNotifier(kafkaNotifier)

	return manager, func() {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Warn("Error closing Kafka writer", "error", err)
		}
	}
}
