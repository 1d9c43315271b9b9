package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielokoye/vestpool/internal/domain"
	"github.com/danielokoye/vestpool/internal/server"
	"github.com/danielokoye/vestpool/internal/server/handler"
	"github.com/danielokoye/vestpool/internal/server/ws"
	"github.com/danielokoye/vestpool/internal/service"
)

// services bundles the domain services built on top of the wired
// dependencies. All modes construct the full set; they are cheap and
// stateless apart from their injected dependencies.
type services struct {
	funding     *service.FundingService
	investments *service.InvestmentService
	portfolio   *service.PortfolioService
	settlements *service.SettlementService
}

// buildServices constructs the domain services from wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	return &services{
		funding: service.NewFundingService(deps.PoolStore, deps.InvestmentStore, a.logger),
		investments: service.NewInvestmentService(
			deps.PoolStore,
			deps.InvestmentStore,
			deps.Verifier,
			deps.Escrow,
			deps.AuditStore,
			deps.SignalBus,
			deps.Notifier,
			a.cfg.Ledger.StableTokenID,
			int32(a.cfg.Ledger.Decimals),
			a.logger,
		),
		portfolio: service.NewPortfolioService(deps.PoolStore, deps.InvestmentStore, a.logger),
		settlements: service.NewSettlementService(
			deps.InvestmentStore,
			deps.Escrow,
			deps.AuditStore,
			deps.SignalBus,
			deps.Archiver,
			int32(a.cfg.Ledger.Decimals),
			a.logger,
		),
	}
}

// ServerMode runs the HTTP and WebSocket API without the settlement
// scheduler. Settlements can still be triggered manually through the API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// SettleMode runs one settlement pass over all matured investments and exits.
// Intended for cron-style deployments where the scheduler lives outside the
// process.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	svcs := a.buildServices(deps)

	settled, err := svcs.settlements.SettleMatured(ctx)
	if err != nil {
		return fmt.Errorf("settle mode: %w", err)
	}
	a.logger.InfoContext(ctx, "settlement pass complete",
		slog.Int("settled", settled),
	)

	if settled > 0 {
		msg := fmt.Sprintf("%d matured investment(s) settled", settled)
		if err := deps.Notifier.Notify(ctx, domain.EventSettlementRun, "Settlement run complete", msg); err != nil {
			a.logger.WarnContext(ctx, "settlement run notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// FullMode runs the HTTP server, the WebSocket hub, and the periodic
// settlement scheduler together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)

	if a.cfg.Settlement.Enabled {
		runner := service.NewSettlementRunner(
			svcs.settlements,
			deps.LockManager,
			a.cfg.Settlement.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return runner.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "settlement scheduler disabled; matured investments settle only on manual runs")
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Pools:       handler.NewPoolHandler(svcs.funding, deps.PoolStore, a.logger),
		Investments: handler.NewInvestmentHandler(svcs.investments, a.logger),
		Portfolio:   handler.NewPortfolioHandler(svcs.portfolio, a.logger),
		Settlements: handler.NewSettlementHandler(svcs.settlements, a.logger),
		Audit:       handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, deps.NonceStore, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
