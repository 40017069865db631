package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsrow/oddsrow/internal/server"
	"github.com/oddsrow/oddsrow/internal/server/handler"
	"github.com/oddsrow/oddsrow/internal/server/ws"
	"github.com/oddsrow/oddsrow/internal/service"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

// ServeMode runs the HTTP + WebSocket API server until the context is
// cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "mode: serve")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// SweepMode runs only the deadline sweeper. Useful for a dedicated worker
// that shares Postgres and Redis with one or more serve-mode instances.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "mode: sweep")

	g, ctx := errgroup.WithContext(ctx)
	a.startSweeper(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and the sweeper in one process. Each can be
// disabled independently via configuration.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "mode: full",
		slog.Bool("server_enabled", a.cfg.Server.Enabled),
		slog.Bool("sweep_enabled", a.cfg.Sweep.Enabled),
	)

	if !a.cfg.Server.Enabled && !a.cfg.Sweep.Enabled {
		return fmt.Errorf("app: full mode with both server and sweeper disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	if a.cfg.Sweep.Enabled {
		a.startSweeper(ctx, g, deps)
	}
	return g.Wait()
}

// startServer builds the service layer, handlers, and WebSocket hub, then
// adds the server goroutines to the errgroup. The server shuts down
// gracefully when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	stakeSvc := service.NewStakeService(
		deps.Ledger, deps.SignalBus, deps.Audit, deps.Leaderboard,
		a.cfg.Game.MaxStake, a.logger,
	)
	settlementSvc := service.NewSettlementService(
		deps.Ledger, deps.Users, deps.SignalBus, deps.Audit, deps.Leaderboard,
		deps.Notifier, a.logger,
	)
	predictionSvc := service.NewPredictionService(
		deps.Predictions, deps.Votes, deps.Audit, a.logger,
	)
	userSvc := service.NewUserService(
		deps.Users, deps.Votes, deps.Sessions, deps.Leaderboard,
		a.cfg.Game.StartingBalance, a.cfg.Server.SessionTTL.Duration, a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Predictions: handler.NewPredictionHandler(predictionSvc, settlementSvc, a.logger),
		Stakes:      handler.NewStakeHandler(stakeSvc, a.logger),
		Users:       handler.NewUserHandler(userSvc, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(userSvc, a.logger),
		Audit:       handler.NewAuditHandler(deps.Audit, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.Sessions, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("HTTP server shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startSweeper adds the deadline sweeper goroutine to the errgroup.
func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sweeper := service.NewSweeper(
		deps.Predictions, deps.LockManager, deps.Notifier,
		a.cfg.Sweep.Interval.Duration, a.cfg.Sweep.LockTTL.Duration, a.logger,
	)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})
}
