package middleware

import (
	"strings"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	userLocal  = "user"
	actorLocal = "actor"
)

// TokenVerifier resolves a bearer token to an actor.
type TokenVerifier interface {
	Verify(token string) (domain.Actor, error)
}

// Bearer accepts "Authorization: Bearer <jwt>" as an alternative to the session cookie.
// An invalid token is rejected outright rather than falling back to the session.
func Bearer(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || v == nil {
			return c.Next()
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return response.Unauthorized(c, "Unsupported authorization scheme")
		}
		actor, err := v.Verify(token)
		if err != nil {
			return response.Unauthorized(c, err.Error())
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

// RequireAuth ensures the request carries an identity, from the session or a bearer token.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := resolveActor(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

// ActorFromCtx returns the identity RequireAuth resolved.
func ActorFromCtx(c *fiber.Ctx) (domain.Actor, bool) {
	return resolveActor(c)
}

func resolveActor(c *fiber.Ctx) (domain.Actor, bool) {
	if a, ok := c.Locals(actorLocal).(domain.Actor); ok {
		return a, true
	}
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return domain.Actor{}, false
	}
	idStr, _ := m["user_id"].(string)
	role, _ := m["role"].(string)
	id, err := uuid.Parse(idStr)
	if err != nil || role == "" {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: role}, true
}
