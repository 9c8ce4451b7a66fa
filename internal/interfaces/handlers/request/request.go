// Package request holds the parsing helpers shared by the HTTP handlers.
package request

import (
	"strconv"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when no actor was resolved for the request.
var ErrUnauthenticated = fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")

// Actor returns the caller resolved by middleware.RequireAuth.
func Actor(c *fiber.Ctx) (domain.Actor, error) {
	a, ok := middleware.ActorFromCtx(c)
	if !ok {
		return domain.Actor{}, ErrUnauthenticated
	}
	return a, nil
}

// UUIDParam parses a path parameter as a UUID.
func UUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Field: name, Rule: "must be a valid UUID"}
	}
	return id, nil
}

// Body decodes the JSON body into dst.
func Body(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return &domain.ValidationError{Rule: "request body must be valid JSON"}
	}
	return nil
}

// IntQuery parses an optional integer query parameter; absent means 0.
func IntQuery(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Rule: "must be an integer"}
	}
	return n, nil
}
