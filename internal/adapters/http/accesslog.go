package http

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// gestureFromPath names the session command of a request: the last segment of
// /v1/sessions/<id>/<gesture>. Session CRUD has none.
func gestureFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/sessions/")
	if !ok {
		return ""
	}
	_, gesture, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return gesture
}

// AccessLogMiddleware logs HTTP requests with structured slog output.
// Session requests also carry the session id and the gesture; the route
// template keeps per-session paths groupable.
func AccessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		path := c.Path()
		method := c.Method()
		requestID := c.Get(fiber.HeaderXRequestID, "unknown")
		sessionID := sessionIDFromRequest(c)

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.String("route", c.Route().Path),
			slog.Int("status", status),
			slog.String("latency", time.Since(start).String()),
			slog.Int("bytes_out", len(c.Response().Body())),
			slog.String("request_id", requestID),
		}
		if sessionID != "" {
			attrs = append(attrs, slog.String("session_id", sessionID))
			if g := gestureFromPath(path); g != "" {
				attrs = append(attrs, slog.String("gesture", g))
			}
		}

		// Gestures and frame polls are frequent; successful ones go to debug.
		level := slog.LevelInfo
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level = slog.LevelError
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case sessionID != "":
			level = slog.LevelDebug
		}

		slog.LogAttrs(c.UserContext(), level, fmt.Sprintf("%s %s", method, path), attrs...)
		return err
	}
}
