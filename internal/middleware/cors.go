package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig holds CORS configuration (suffix + dev password).
type CORSConfig struct {
	AllowedSuffix string
	DevPassword   string
}

const (
	corsAllowHeaders = "Content-Type, Authorization, dev-password, " + traceIDHeader
	corsAllowMethods = "GET, POST, PATCH, DELETE, OPTIONS"
)

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}

func (cfg CORSConfig) allows(c *fiber.Ctx, origin string) bool {
	if cfg.AllowedSuffix != "" && strings.HasSuffix(strings.ToLower(origin), strings.ToLower(cfg.AllowedSuffix)) {
		return true
	}
	return cfg.DevPassword != "" && c.Get("dev-password") == cfg.DevPassword
}

// CORS allows origins ending with AllowedSuffix, requests carrying the dev password,
// and localhost preflights. Requests without an Origin pass through.
func CORS(cfg CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		if origin == "" {
			return c.Next()
		}
		preflight := c.Method() == fiber.MethodOptions
		switch {
		case cfg.allows(c, origin):
			setCORSHeaders(c, origin)
			if preflight {
				return c.SendStatus(fiber.StatusNoContent)
			}
			return c.Next()
		case preflight && isLocalOrigin(origin):
			setCORSHeaders(c, origin)
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status": "error",
			"error": fiber.Map{
				"message":    "Not allowed by CORS",
				"statusCode": fiber.StatusForbidden,
				"details":    fiber.Map{},
			},
		})
	}
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set("Access-Control-Allow-Origin", origin)
	c.Set("Access-Control-Allow-Credentials", "true")
	c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	c.Set("Access-Control-Allow-Methods", corsAllowMethods)
	c.Set("Access-Control-Expose-Headers", traceIDHeader)
	c.Set("Vary", "Origin")
}
