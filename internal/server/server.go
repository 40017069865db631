package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/metrics"
	"github.com/oddsrow/oddsrow/internal/server/handler"
	"github.com/oddsrow/oddsrow/internal/server/middleware"
	"github.com/oddsrow/oddsrow/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Predictions *handler.PredictionHandler
	Stakes      *handler.StakeHandler
	Users       *handler.UserHandler
	Leaderboard *handler.LeaderboardHandler
	Audit       *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server for the staking ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, metrics, logging, auth, rate limit) applied.
// sessions resolves Bearer tokens to caller identities; limiter may be nil
// to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, sessions domain.SessionStore, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Account endpoints.
	mux.HandleFunc("POST /api/users/register", handlers.Users.Register)
	mux.HandleFunc("POST /api/users/login", handlers.Users.Login)
	mux.HandleFunc("POST /api/users/logout", handlers.Users.Logout)
	mux.HandleFunc("GET /api/users/me", handlers.Users.Me)
	mux.HandleFunc("GET /api/users/me/votes", handlers.Users.MyVotes)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.GetProfile)

	// Prediction feed and lifecycle.
	mux.HandleFunc("GET /api/predictions", handlers.Predictions.List)
	mux.HandleFunc("POST /api/predictions", handlers.Predictions.Create)
	mux.HandleFunc("GET /api/predictions/{id}", handlers.Predictions.Get)
	mux.HandleFunc("GET /api/predictions/{id}/votes", handlers.Predictions.Votes)
	mux.HandleFunc("POST /api/predictions/{id}/stake", handlers.Stakes.Place)
	mux.HandleFunc("POST /api/predictions/{id}/resolve", handlers.Predictions.Resolve)

	// Leaderboard and audit log.
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.Top)
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Auth(sessions)(h)
	h = middleware.Logging(logger)(h)
	h = metrics.Middleware(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

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

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Token")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
