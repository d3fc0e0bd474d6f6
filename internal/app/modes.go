package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/bidhub/internal/archive"
	"github.com/alanyoungcy/bidhub/internal/auction"
	"github.com/alanyoungcy/bidhub/internal/server"
	"github.com/alanyoungcy/bidhub/internal/server/handler"
	"github.com/alanyoungcy/bidhub/internal/server/ws"
)

// ServeMode runs the HTTP API and the propagation hub without the archival
// consumers. Useful when the worker runs as its own deployment.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startServing(ctx, g, deps); err != nil {
		return err
	}
	return g.Wait()
}

// ArchiveMode runs only the archival worker (and the cold archiver when
// enabled). The per-deployment worker drains all auctions' accepted bids.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiving(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything in one process: HTTP API, hub, archival worker,
// and cold archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startServing(ctx, g, deps); err != nil {
		return err
	}
	a.startArchiving(ctx, g, deps)
	return g.Wait()
}

// startServing builds the bidding service, the hub, and the HTTP server,
// and registers their goroutines on the group.
func (a *App) startServing(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	svc := auction.NewService(deps.AuctionStore, deps.Resolver, deps.LiveCache, deps.Clock, a.logger)
	if err := svc.LoadCatalog(ctx); err != nil {
		return err
	}

	hub := ws.NewHub(deps.Bus, svc, a.cfg.Bidding.Channel, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Redis, a.logger),
		Auctions: handler.NewAuctionHandler(svc, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return nil
}

// startArchiving registers the archival worker and, when configured, the
// cold archiver on the group.
func (a *App) startArchiving(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	worker := archive.NewWorker(deps.BidLog, deps.BidArchive, archive.WorkerConfig{
		BatchSize: a.cfg.Archive.BatchSize,
		Block:     a.cfg.Archive.Block.Duration,
		RetryMin:  a.cfg.Archive.RetryMin.Duration,
		RetryMax:  a.cfg.Archive.RetryMax.Duration,
	}, a.logger)
	g.Go(func() error {
		return worker.Run(ctx)
	})

	if a.cfg.ColdArchive.Enabled && deps.BlobWriter != nil {
		cold := archive.NewColdArchiver(deps.BidArchive, deps.BlobWriter, archive.ColdArchiverConfig{
			RetentionDays: a.cfg.ColdArchive.RetentionDays,
			ExportLimit:   a.cfg.ColdArchive.ExportLimit,
		}, a.logger)
		g.Go(func() error {
			return cold.RunCron(ctx, a.cfg.ColdArchive.Cron)
		})
	}
}
