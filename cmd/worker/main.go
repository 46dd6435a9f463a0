package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/trailmap/internal/adapters/nats"
	"github.com/samirrijal/trailmap/internal/adapters/postgres"
	"github.com/samirrijal/trailmap/internal/adapters/valkey"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/core/usecases"
	"github.com/samirrijal/trailmap/internal/pkg/config"
	"github.com/samirrijal/trailmap/internal/pkg/logging"
	"github.com/samirrijal/trailmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("trailmap-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	repo := postgres.NewLocationRepo(db)

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, marker cache will expire on its own", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	activities := &workflows.SubmissionActivities{
		Locations: repo,
		Markers:   usecases.NewLocationService(repo, cache, nil, cfg.Map.MarkerLimit, cfg.Map.CacheTTL),
	}
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, saves will not be announced", "error", err)
	} else {
		defer pub.Close()
		activities.Events = pub
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SubmissionWorkflow)
	w.RegisterActivity(activities)

	slog.Info("submission worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
