package http

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	sessionIDKey ctxKey = "session_id"
	loggerKey    ctxKey = "logger"
)

// sessionIDFromRequest returns the map session a request addresses, taken from
// /v1/sessions/<id>/... or the ?session= parameter of the event stream.
func sessionIDFromRequest(c *fiber.Ctx) string {
	if rest, ok := strings.CutPrefix(c.Path(), "/v1/sessions/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		return id
	}
	return c.Query("session")
}

// RequestIDLogMiddleware stores a request-scoped logger in the user context,
// tagged with the request ID and, for session routes, the session ID.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var attrs []any
		ctx := c.UserContext()

		if rid, _ := c.Locals("requestid").(string); rid != "" {
			attrs = append(attrs, "request_id", rid)
			ctx = context.WithValue(ctx, requestIDKey, rid)
		}
		if sid := sessionIDFromRequest(c); sid != "" {
			attrs = append(attrs, "session_id", sid)
			ctx = context.WithValue(ctx, sessionIDKey, sid)
		}
		if len(attrs) == 0 {
			return c.Next()
		}

		ctx = context.WithValue(ctx, loggerKey, slog.Default().With(attrs...))
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// SessionIDFromCtx returns the session a request addressed, if any.
func SessionIDFromCtx(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}
