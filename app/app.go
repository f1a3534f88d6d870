// Package app boots the battle engine: config, logging, Postgres, the event
// bus, the battle module, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/cypher-arena/battle-engine/app/eventbus"
	"github.com/cypher-arena/battle-engine/app/handlers"
	"github.com/cypher-arena/battle-engine/app/modules/battle"
	"github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/changefeed"
	battlejwt "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/jwt"
	"github.com/cypher-arena/battle-engine/config"
	"github.com/cypher-arena/battle-engine/db/bundb"
)

// App is the assembled battle engine.
type App struct {
	Cfg          *config.Config
	Logger       *slog.Logger
	BattleModule *battle.Module

	db            *bundb.DBService
	eventBus      eventbus.EventBus
	wmRouter      *message.Router
	httpServer    *http.Server
	metricsServer *http.Server
}

// Initialize wires every component. NATS is optional; without it the engine
// runs on the in-process bus.
func (app *App) Initialize(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app.Cfg = cfg
	app.Logger = logger

	var bus eventbus.EventBus
	var err error
	if cfg.NATS.URL != "" {
		bus, err = eventbus.NewNATSEventBus(ctx, cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
	} else {
		logger.Warn("NATS URL not set, using in-memory event bus")
		bus = eventbus.NewInMemoryEventBus(logger)
	}
	app.eventBus = bus

	feed := changefeed.NewWatermillFeed(bus, logger)

	app.db, err = bundb.NewBunDBService(ctx, cfg.Postgres, feed, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database service: %w", err)
	}

	app.wmRouter, err = message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create watermill router: %w", err)
	}

	registry := prometheus.NewRegistry()
	tracer := otel.Tracer("battle-engine")

	app.BattleModule, err = battle.NewBattleModule(ctx, cfg, logger, app.db, feed, bus, app.wmRouter, registry, tracer)
	if err != nil {
		return fmt.Errorf("failed to initialize battle module: %w", err)
	}

	jwtProvider := battlejwt.NewProvider(cfg.JWT.Secret)
	battleHandler := handlers.NewBattleHandler(app.BattleModule.BattleService, logger)

	mux := chi.NewRouter()
	mux.Mount("/api/v1", battleHandler.Routes(jwtProvider))
	app.httpServer = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Observability.MetricsAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		app.metricsServer = &http.Server{
			Addr:              cfg.Observability.MetricsAddress,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return nil
}

// Run blocks until ctx is cancelled, then shuts everything down.
func (app *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.wmRouter.Run(ctx); err != nil {
			app.Logger.Error("Watermill router stopped", slog.Any("error", err))
		}
	}()

	wg.Add(1)
	go app.BattleModule.Run(ctx, &wg)

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Logger.Info("HTTP server listening", slog.String("address", app.httpServer.Addr))
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("HTTP server stopped", slog.Any("error", err))
		}
	}()

	if app.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	app.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Metrics shutdown failed", slog.Any("error", err))
		}
	}

	app.Close()
	wg.Wait()
	return nil
}

// Close releases the module, bus, and database.
func (app *App) Close() {
	if app.BattleModule != nil {
		if err := app.BattleModule.Close(); err != nil {
			app.Logger.Error("Failed to close battle module", slog.Any("error", err))
		}
	}
	if app.wmRouter != nil {
		if err := app.wmRouter.Close(); err != nil {
			app.Logger.Error("Failed to close watermill router", slog.Any("error", err))
		}
	}
	if app.eventBus != nil {
		if err := app.eventBus.Close(); err != nil {
			app.Logger.Error("Failed to close event bus", slog.Any("error", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.Logger.Error("Failed to close database", slog.Any("error", err))
		}
	}
}
