// Package statusapi exposes a read-only HTTP surface over the trading
// engine: health, current positions, trade history, and live signal push.
// Adapted from the teacher's internal/api Server (gin + CORS + rate limiter
// idiom), narrowed to read-only status reporting -- this engine has no
// user accounts, so everything auth.Service/billing/license covered there
// is gone; a single bearer token gates every route except /health instead.
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/persistence"
	"github.com/buzzkillb/tirade-engine/internal/registry"
)

// Config holds the server's own bind/auth settings.
type Config struct {
	Host      string
	Port      int
	AuthToken string // empty disables auth -- every request is treated as authorized
}

// Dependencies the server reports on but never mutates.
type Deps struct {
	Pair        string
	Store       domain.Store
	Registry    *registry.Registry
	Persistence *persistence.Manager
}

// Server is the read-only status HTTP surface.
type Server struct {
	cfg        Config
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
	hub        *Hub
	log        zerolog.Logger
}

// NewServer builds the router and registers routes; call Start to listen.
func NewServer(cfg Config, deps Deps, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, deps: deps, router: router, hub: newHub(), log: log.With().Str("component", "statusapi").Logger()}

	router.Use(s.requestIDMiddleware())
	router.Use(s.accessLogMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Authorization"}
	router.Use(cors.New(corsConfig))

	s.setupRoutes()
	go s.hub.run()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	authorized := s.router.Group("/")
	authorized.Use(s.authMiddleware())
	{
		authorized.GET("/positions", s.handlePositions)
		authorized.GET("/trades", s.handleTrades)
		authorized.GET("/status", s.handleConfig)
		authorized.GET("/ws/signals", s.handleWebSocket)
	}
}

// Start listens until the process is asked to stop; ListenAndServe's
// ErrServerClosed from a graceful Shutdown is swallowed, matching the
// teacher's Start/Shutdown split.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("status api listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// SetRegistry attaches the position registry once the engine has built it.
// NewServer must run before engine.New (so OnSignal can be wired into
// engine.Deps), so the registry -- which the engine owns -- arrives later.
func (s *Server) SetRegistry(reg *registry.Registry) {
	s.deps.Registry = reg
}

// BroadcastSignal pushes a signal to every connected websocket client. Safe
// to call from the engine's cycle goroutine; a full broadcast buffer drops
// the message rather than blocking the cycle.
func (s *Server) BroadcastSignal(sig domain.Signal) {
	s.hub.broadcastSignal(sig)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.deps.Persistence != nil {
		report := s.deps.Persistence.LastReport()
		if report.Status == persistence.Critical {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": report.Status, "detail": report.Detail})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": report.Status, "learning_rows": report.LearningRows})
		return
	}

	if err := s.deps.Store.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "critical", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions := make([]*domain.Position, 0, s.deps.Registry.Len())
	for i := 0; i < s.deps.Registry.Len(); i++ {
		if s.deps.Registry.Has(i) {
			positions = append(positions, s.deps.Registry.Get(i))
		}
	}
	successResponse(c, positions)
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 50
	ctx := c.Request.Context()
	trades, err := s.deps.Store.TradeHistory(ctx, s.deps.Pair, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to fetch trade history")
		return
	}
	successResponse(c, trades)
}

func (s *Server) handleConfig(c *gin.Context) {
	successResponse(c, gin.H{
		"pair":            s.deps.Pair,
		"request_id":      requestID(c),
		"connected_peers": s.hub.clientCount(),
	})
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": true, "message": message})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

const requestIDKey = "request_id"

func newRequestID() string {
	return uuid.New().String()
}
