// Package server exposes the investment ledger over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/server/handler"
	"github.com/danielokoye/vestpool/internal/server/middleware"
	"github.com/danielokoye/vestpool/internal/server/ws"
)

// replayNonceTTL is how long a request nonce stays reserved. Long enough to
// cover client retry windows, short enough to keep the key space small.
const replayNonceTTL = 10 * time.Minute

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting even when a limiter is supplied.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Pools       *handler.PoolHandler
	Investments *handler.InvestmentHandler
	Portfolio   *handler.PortfolioHandler
	Settlements *handler.SettlementHandler
	Audit       *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API for the investment ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limit, replay guard, auth, logging, CORS)
// applied. limiter and nonces may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, nonces domain.NonceStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required in the middleware below).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pool catalog with derived funding state.
	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("GET /api/pools/{id}", handlers.Pools.GetPool)

	// Deposit-to-investment recording.
	mux.HandleFunc("POST /api/investments", handlers.Investments.RecordInvestment)

	// Investor portfolio view.
	mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.GetPortfolio)

	// Manual settlement trigger.
	mux.HandleFunc("POST /api/settlements/run", handlers.Settlements.RunSettlement)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if nonces != nil {
		h = middleware.ReplayGuard(nonces, replayNonceTTL, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
