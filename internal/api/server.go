package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pinbar-signal-bot/internal/circuit"
	"pinbar-signal-bot/internal/database"
	"pinbar-signal-bot/internal/events"
	"pinbar-signal-bot/internal/logging"
	"pinbar-signal-bot/internal/metrics"
	"pinbar-signal-bot/internal/risk"
	"pinbar-signal-bot/internal/scheduler"
)

// RateLimiter provides per-client token bucket rate limiting
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perMinute requests per client with a burst of the same size
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return l.Allow()
}

// SchedulerAPI is the part of the scheduler the API exposes
type SchedulerAPI interface {
	Status() []scheduler.JobStatus
	IsRunning() bool
	Timeframes() []string
	RunTimeframe(ctx context.Context, timeframe string) scheduler.TickResult
}

// HealthChecker is implemented by stores that can ping their backend
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// QueueStats is implemented by the asynchronous store writer
type QueueStats interface {
	Stats() database.AsyncStats
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      database.Store
	scheduler  SchedulerAPI
	sizer      *risk.Sizer
	breaker    *circuit.CircuitBreaker
	metrics    *metrics.Recorder
	eventBus   *events.EventBus
	hub        *WSHub
	queue      QueueStats
	config     ServerConfig
	logger     *logging.Logger

	rateLimiter *RateLimiter
	runCtx      context.Context
	runCancel   context.CancelFunc
	started     time.Time
	lastBeat    atomic.Int64 // unix nanos of the last scheduler heartbeat
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowOrigins   []string
	RatePerMinute  int
}

// Deps are the components the API reads from. Breaker, Metrics and Queue may
// be nil.
type Deps struct {
	Store     database.Store
	Queue     QueueStats
	Scheduler SchedulerAPI
	Sizer     *risk.Sizer
	Breaker   *circuit.CircuitBreaker
	Metrics   *metrics.Recorder
	EventBus  *events.EventBus
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps, logger *logging.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if config.RatePerMinute <= 0 {
		config.RatePerMinute = 120
	}
	if logger == nil {
		logger = logging.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.AllowOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	runCtx, runCancel := context.WithCancel(context.Background())
	server := &Server{
		router:      router,
		store:       deps.Store,
		scheduler:   deps.Scheduler,
		sizer:       deps.Sizer,
		breaker:     deps.Breaker,
		metrics:     deps.Metrics,
		eventBus:    deps.EventBus,
		queue:       deps.Queue,
		config:      config,
		logger:      logger.WithComponent("api"),
		rateLimiter: NewRateLimiter(config.RatePerMinute),
		runCtx:      runCtx,
		runCancel:   runCancel,
		started:     time.Now(),
	}
	router.Use(server.requestLogger())

	if deps.EventBus != nil {
		server.hub = InitWebSocket(deps.EventBus, server.logger)
		deps.EventBus.Subscribe(events.EventHeartbeat, func(e events.Event) {
			server.lastBeat.Store(e.Timestamp.UnixNano())
		})
	}

	server.setupRoutes()
	return server
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.hub != nil {
		s.router.GET("/ws/signals", s.handleWebSocket)
	}

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/signals", s.handleGetSignals)
		api.GET("/logs", s.handleGetLogs)
		api.GET("/scheduler", s.handleGetScheduler)
		api.POST("/scheduler/run/:timeframe", s.handleRunTimeframe)
		api.GET("/risk/drawdown", s.handleGetDrawdown)
		api.GET("/circuit", s.handleGetCircuit)
	}
}

// rateLimitMiddleware limits requests per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			errorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.runCancel()
	if s.hub != nil {
		s.hub.Stop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
