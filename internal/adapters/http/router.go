package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Gestures arrive in bursts while panning, so the limit is generous.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	const reqTimeout = 15 * time.Second
	v1 := app.Group("/v1")

	// Locations
	v1.Get("/locations", timeout.NewWithContext(ListLocationsHandler(deps), reqTimeout))
	v1.Get("/locations/clusters", timeout.NewWithContext(ClusterLocationsHandler(deps), reqTimeout))
	v1.Get("/locations/types", LocationTypesHandler())
	v1.Get("/locations/:id", timeout.NewWithContext(GetLocationHandler(deps), reqTimeout))
	v1.Post("/locations", timeout.NewWithContext(SubmitLocationHandler(deps), reqTimeout))

	// Map sessions
	s := v1.Group("/sessions")
	s.Post("/", CreateSessionHandler(deps))
	s.Get("/:id", GetSessionHandler(deps))
	s.Delete("/:id", CloseSessionHandler(deps))
	s.Get("/:id/geojson", SessionGeoJSONHandler(deps))
	s.Put("/:id/permissions", SetPermissionsHandler(deps))
	s.Put("/:id/display", SetDisplayHandler(deps))
	s.Post("/:id/move-end", timeout.NewWithContext(MoveEndHandler(deps), reqTimeout))
	s.Post("/:id/reload", timeout.NewWithContext(ReloadHandler(deps), reqTimeout))
	s.Post("/:id/click", ClickHandler(deps))
	s.Post("/:id/context-menu", ContextMenuHandler(deps))
	s.Post("/:id/confirm-add", ConfirmAddHandler(deps))
	s.Post("/:id/drag-end", DragEndHandler(deps))
	s.Post("/:id/marker-click", MarkerClickHandler(deps))
	s.Put("/:id/active-marker", SetActiveMarkerHandler(deps))
	s.Post("/:id/reset", ResetHandler(deps))
	s.Post("/:id/recenter", RecenterHandler(deps))
	s.Post("/:id/fly-to", FlyToHandler(deps))
	s.Put("/:id/current-location", CurrentLocationHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, "api/openapi.yaml")

	// WebSocket event stream of one session: /ws?session=<id>
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("session", c.Query("session"))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
