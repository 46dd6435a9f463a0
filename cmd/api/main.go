package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/trailmap/internal/adapters/http"
	"github.com/samirrijal/trailmap/internal/adapters/icons"
	"github.com/samirrijal/trailmap/internal/adapters/mapview"
	natsadapter "github.com/samirrijal/trailmap/internal/adapters/nats"
	"github.com/samirrijal/trailmap/internal/adapters/postgres"
	"github.com/samirrijal/trailmap/internal/adapters/upstream"
	"github.com/samirrijal/trailmap/internal/adapters/valkey"
	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/core/usecases"
	"github.com/samirrijal/trailmap/internal/pkg/config"
	"github.com/samirrijal/trailmap/internal/pkg/logging"
	"github.com/samirrijal/trailmap/internal/pkg/telemetry"
	"github.com/samirrijal/trailmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("trailmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Cache
	var (
		cacheSvc  ports.CacheService
		positions ports.PositionStore
	)
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, caching and position restore disabled", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		positions = valkey.NewPositionStore(cache, cfg.Map.PositionTTL)
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, map events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Drain()
	}

	// Submissions
	var submissions ports.SubmissionStarter
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		slog.Warn("temporal unavailable, location submissions disabled", "error", err)
	} else {
		defer tc.Close()
		submissions = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
	}

	// Marker source
	var (
		db        *postgres.DB
		locations *usecases.LocationService
		markers   ports.MarkerProvider
	)
	switch cfg.Provider.Mode {
	case "http":
		markers = upstream.New(cfg.Provider.URL, time.Duration(cfg.Provider.Timeout)*time.Second)
		slog.Info("markers served from upstream", "url", cfg.Provider.URL)
	default:
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		locations = usecases.NewLocationService(postgres.NewLocationRepo(db), cacheSvc, submissions, cfg.Map.MarkerLimit, cfg.Map.CacheTTL)
		markers = locations
	}

	// Sessions
	sessions := usecases.NewSessionService(
		markers,
		icons.NewTable(cfg.Map.IconBaseURL),
		positions,
		events,
		mapview.Factory(events),
		usecases.SessionOptions{
			DefaultView: domain.Viewport{
				Center: domain.GeoPoint{Lat: cfg.Map.DefaultLat, Lon: cfg.Map.DefaultLon},
				Zoom:   cfg.Map.DefaultZoom,
			},
			MinZoom: cfg.Map.MinZoom,
			MaxZoom: cfg.Map.MaxZoom,
			Cluster: usecases.ClusterOptions{
				Radius:        cfg.Map.ClusterRadius,
				DisableAtZoom: cfg.Map.DisableClusteringAtZoom,
			},
		},
		slog.Default(),
	)
	defer sessions.CloseAll()

	// Signals from other services
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable, session signals disabled", "error", err)
	} else {
		defer sub.Close()
		if err := sub.SubscribeSignals(ctx, func(ctx context.Context, sig *domain.SessionSignal) error {
			return ignoreGone(sessions.HandleSignal(ctx, sig))
		}); err != nil {
			slog.Warn("subscribe signals failed", "error", err)
		}
		if err := sub.SubscribeLocationSaved(ctx, sessions.HandleLocationSaved); err != nil {
			slog.Warn("subscribe location events failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Markers:   markers,
		Locations: locations,
		Sessions:  sessions,
		NATS:      natsConn,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "TrailMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "provider", cfg.Provider.Mode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped", "sessions", sessions.Count())
}

// ignoreGone acks signals for sessions living in another instance.
func ignoreGone(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}
