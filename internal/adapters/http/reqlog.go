package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type loggerKey struct{}

// RequestIDLogMiddleware puts a request-scoped logger carrying the request ID
// into the user context, so services log with it through slog.*Context.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		logger := slog.Default().With("request_id", rid)
		ctx := context.WithValue(c.UserContext(), loggerKey{}, logger)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// LoggerFromCtx returns the request logger, or the default logger outside
// a request.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
