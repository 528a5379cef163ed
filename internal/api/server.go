// Package api exposes the signal engine over HTTP and streams pipeline
// events over WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mt5-signal-engine/internal/database"
	"mt5-signal-engine/internal/events"
	"mt5-signal-engine/internal/marketdata"
	"mt5-signal-engine/internal/signal"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string
	RateLimitRPM   int
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	engine      *signal.Engine
	repo        *database.Repository
	eventBus    *events.EventBus
	hub         *WSHub
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewServer wires the router. repo may be nil when persistence is disabled.
func NewServer(cfg ServerConfig, eng *signal.Engine, repo *database.Repository, bus *events.EventBus, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	limit := cfg.RateLimitRPM
	if limit <= 0 {
		limit = 60
	}

	s := &Server{
		router:      router,
		engine:      eng,
		repo:        repo,
		eventBus:    bus,
		hub:         InitWebSocket(bus, logger),
		rateLimiter: NewRateLimiter(limit, time.Minute),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimit())
	{
		v1.POST("/signal", s.handleSignal)
		v1.GET("/signals/:symbol", s.handleSignalHistory)
	}
}

// rateLimit enforces the per-client request budget.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":     "ok",
		"ws_clients": s.hub.GetClientCount(),
	}
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.Ping(ctx); err != nil {
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, status)
}

// handleSignal runs the pipeline for one request. No-consensus outcomes are
// 200 responses with a nil signal; only hard failures are errors.
func (s *Server) handleSignal(c *gin.Context) {
	var req signal.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.engine.Generate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, marketdata.ErrDataUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live market data unavailable"})
			return
		}
		s.logger.Error().Err(err).Str("symbol", req.Symbol).Msg("signal generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signal generation failed"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSignalHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "persistence disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	signals, err := s.repo.RecentSignals(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("signal history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
