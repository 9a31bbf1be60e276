package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/prophyt-api/internal/pipeline"
	"github.com/alanyoungcy/prophyt-api/internal/platform/coingecko"
	"github.com/alanyoungcy/prophyt-api/internal/server"
	"github.com/alanyoungcy/prophyt-api/internal/server/handler"
	"github.com/alanyoungcy/prophyt-api/internal/server/ws"
	"github.com/alanyoungcy/prophyt-api/internal/service"
)

// Serve builds the services and handlers on top of deps and runs the HTTP
// server, price updater, archiver and WebSocket hub until ctx is cancelled.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	cfg := a.cfg
	proxies, err := cfg.Server.RateLimit.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	marketSvc := service.NewMarketService(deps.MarketStore, deps.MarketCache, a.logger)
	betSvc := service.NewBetService(deps.BetStore, deps.MarketStore, a.logger)
	protocolSvc := service.NewProtocolService(deps.ProtocolStore)
	oracleSvc := service.NewOracleService(deps.OracleStore, deps.PriceCache, cfg.Oracle.StaleAfter.Duration, a.logger)

	oracleH := handler.NewOracleHandler(oracleSvc, cfg.Oracle.Asset, a.logger)
	healthH := handler.NewHealthHandler(deps.Database, deps.Cache, a.logger)

	// --- Price updater ---
	if cfg.Oracle.Enabled {
		updater := pipeline.NewPriceUpdater(pipeline.PriceUpdaterDeps{
			Feed:    coingecko.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey),
			Store:   deps.OracleStore,
			Cache:   deps.PriceCache,
			Bus:     deps.SignalBus,
			Locks:   deps.LockManager,
			Alerter: deps.Notifier,
		}, pipeline.PriceUpdaterConfig{
			Asset:        cfg.Oracle.Asset,
			VsCurrency:   cfg.Oracle.VsCurrency,
			Interval:     cfg.Oracle.Interval.Duration,
			FetchTimeout: cfg.Oracle.FetchTimeout.Duration,
			StaleAfter:   cfg.Oracle.StaleAfter.Duration,
			MaxBackoff:   cfg.Oracle.MaxBackoff.Duration,
		}, a.logger)
		oracleH.WithTrigger(updater)
		healthH.WithUpdater(updater)

		g.Go(func() error {
			return updater.Run(ctx)
		})
	}

	// --- Archiver ---
	if cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, []string{cfg.Oracle.Asset}, cfg.Archive.RetentionDays, deps.Notifier, a.logger)
		g.Go(func() error {
			return archiver.RunCron(ctx, cfg.Archive.Cron)
		})
	}

	// --- WebSocket hub (requires the Redis signal bus) ---
	var hub *ws.Hub
	if cfg.Server.WebSocket && deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			AllowedOrigins: cfg.Server.CORSOrigins,
			Version:        handler.Version,
			StartedAt:      time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	// --- HTTP server ---
	srvCfg := server.Config{
		Port:               cfg.Server.Port,
		CORSOrigins:        cfg.Server.CORSOrigins,
		ExposeErrorDetails: cfg.Server.ExposeErrorDetails,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
	}
	if cfg.Server.RateLimit.Enabled && deps.RateLimiter != nil {
		srvCfg.RateLimiter = deps.RateLimiter
		srvCfg.RateLimit = cfg.Server.RateLimit.Requests
		srvCfg.RateLimitWindow = cfg.Server.RateLimit.Window.Duration
		srvCfg.TrustedProxies = proxies
	}

	srv := server.NewServer(srvCfg, server.Handlers{
		Health:       healthH,
		Markets:      handler.NewMarketHandler(marketSvc, a.logger),
		Users:        handler.NewUserHandler(betSvc, a.logger),
		Bets:         handler.NewBetHandler(betSvc, a.logger),
		Protocols:    handler.NewProtocolHandler(protocolSvc, a.logger),
		Oracle:       oracleH,
		Charts:       handler.NewChartHandler(betSvc, a.logger),
		AllowRefresh: cfg.Oracle.Enabled && cfg.Oracle.AllowManualRefresh,
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	})

	return g.Wait()
}
