package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RouteLogger writes one line per request with status, duration and the caller's role.
// Server errors log at error level.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logger := zerolog.Ctx(c.UserContext())
		ev := logger.Info()
		if status >= fiber.StatusInternalServerError {
			ev = logger.Error().Err(err)
		}
		ev = ev.Str("method", c.Method()).Str("path", c.Path()).Int("status", status).
			Int64("ms", time.Since(start).Milliseconds())
		if actor, ok := resolveActor(c); ok {
			ev = ev.Str("role", actor.Role)
		}
		ev.Msg("request")
		return err
	}
}
