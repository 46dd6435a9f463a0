package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/samirrijal/trailmap/internal/adapters/postgres"
	"github.com/samirrijal/trailmap/internal/adapters/valkey"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/core/usecases"
	"github.com/samirrijal/trailmap/internal/pkg/config"
	"github.com/samirrijal/trailmap/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: importer <file.geojson|url>")
	}
	source := os.Args[1]

	cfg, err := config.Load("trailmap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, "text")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		log.Printf("valkey unavailable, cached markers expire on their own: %v", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	data, err := read(source)
	if err != nil {
		log.Fatalf("read %s: %v", source, err)
	}

	locs, skipped, err := parseLocations(data)
	if err != nil {
		log.Fatalf("parse %s: %v", source, err)
	}
	log.Printf("TrailMap importer: %d features from %s (%d skipped)", len(locs)+skipped, source, skipped)

	svc := usecases.NewLocationService(postgres.NewLocationRepo(db), cache, nil, cfg.Map.MarkerLimit, cfg.Map.CacheTTL)
	n, err := svc.Import(ctx, locs)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("import complete: %d locations stored, %d rejected", n, len(locs)-n)
}

func read(source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Get(source)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, source)
	}
	return io.ReadAll(resp.Body)
}
