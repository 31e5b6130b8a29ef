package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
)

const (
	requestTimeout  = 15 * time.Second
	dispatchTimeout = 90 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler())
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/region", RegionHandler(deps))

	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), requestTimeout))
	v1.Get("/sessions/:id", timeout.NewWithContext(GetSessionHandler(deps), requestTimeout))
	v1.Post("/sessions/:id/location", timeout.NewWithContext(SubmitLocationHandler(deps), requestTimeout))
	v1.Post("/sessions/:id/confirm", timeout.NewWithContext(ConfirmSessionHandler(deps), dispatchTimeout))
	v1.Delete("/sessions/:id", timeout.NewWithContext(CancelSessionHandler(deps), requestTimeout))

	v1.Post("/batch/runs", timeout.NewWithContext(BatchRunHandler(deps), dispatchTimeout))
	v1.Post("/tiles", TilesHandler(deps))

	v1.Get("/detections", timeout.NewWithContext(RecentDetectionsHandler(deps), requestTimeout))
	v1.Get("/dispatches", timeout.NewWithContext(RecentDispatchesHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
