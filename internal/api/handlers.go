package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pinbar-signal-bot/internal/circuit"
	"pinbar-signal-bot/internal/risk"
)

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	if hc, ok := s.store.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			healthy = false
			components["database"] = "unhealthy"
		} else {
			components["database"] = "healthy"
		}
	}
	if s.scheduler != nil {
		components["scheduler_running"] = s.scheduler.IsRunning()
	}
	if s.breaker != nil {
		components["circuit_breaker"] = string(s.breaker.GetState())
	}
	if s.queue != nil {
		components["store_queue"] = s.queue.Stats()
	}
	if s.hub != nil {
		components["websocket_clients"] = s.hub.GetClientCount()
	}
	if beat := s.lastBeat.Load(); beat > 0 {
		components["last_heartbeat"] = time.Unix(0, beat).UTC().Format(time.RFC3339)
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}

// handleGetSignals returns the most recent signals, newest first
func (s *Server) handleGetSignals(c *gin.Context) {
	if s.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "store not configured")
		return
	}
	signals, err := s.store.RecentSignals(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.logger.Error("failed to load signals", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to load signals")
		return
	}
	successResponse(c, signals)
}

// handleGetLogs returns the most recent log entries, newest first
func (s *Server) handleGetLogs(c *gin.Context) {
	if s.store == nil {
		errorResponse(c, http.StatusServiceUnavailable, "store not configured")
		return
	}
	logs, err := s.store.RecentLogs(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.logger.Error("failed to load logs", "error", err)
		errorResponse(c, http.StatusInternalServerError, "failed to load logs")
		return
	}
	successResponse(c, logs)
}

func (s *Server) handleGetScheduler(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	successResponse(c, gin.H{
		"running":    s.scheduler.IsRunning(),
		"timeframes": s.scheduler.Timeframes(),
		"jobs":       s.scheduler.Status(),
	})
}

// handleRunTimeframe triggers an out-of-schedule tick in the background
func (s *Server) handleRunTimeframe(c *gin.Context) {
	if s.scheduler == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	tf := c.Param("timeframe")
	known := false
	for _, t := range s.scheduler.Timeframes() {
		if t == tf {
			known = true
			break
		}
	}
	if !known {
		errorResponse(c, http.StatusNotFound, "unknown timeframe: "+tf)
		return
	}

	go s.scheduler.RunTimeframe(s.runCtx, tf)
	c.JSON(http.StatusAccepted, gin.H{"success": true, "timeframe": tf})
}

// handleGetDrawdown checks ?current= against the configured capital and limit
func (s *Server) handleGetDrawdown(c *gin.Context) {
	if s.sizer == nil {
		errorResponse(c, http.StatusServiceUnavailable, "risk not configured")
		return
	}
	current, err := strconv.ParseFloat(c.Query("current"), 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "current must be a number")
		return
	}

	total := s.sizer.TotalCapital()
	successResponse(c, gin.H{
		"total_capital":   total,
		"current_capital": current,
		"drawdown":        risk.Drawdown(current, total),
		"max_drawdown":    s.sizer.MaxDrawdown(),
		"exceeded":        s.sizer.DrawdownExceeded(current),
	})
}

func (s *Server) handleGetCircuit(c *gin.Context) {
	if s.breaker == nil {
		successResponse(c, gin.H{"enabled": false, "state": string(circuit.StateClosed)})
		return
	}
	successResponse(c, s.breaker.GetStatus())
}
