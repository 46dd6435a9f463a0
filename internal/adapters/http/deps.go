package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/trailmap/internal/adapters/postgres"
	"github.com/samirrijal/trailmap/internal/adapters/valkey"
	"github.com/samirrijal/trailmap/internal/core/ports"
	"github.com/samirrijal/trailmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Markers   ports.MarkerProvider       // serves /v1/locations
	Locations *usecases.LocationService  // nil when markers come from an upstream API
	Sessions  *usecases.SessionService
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
