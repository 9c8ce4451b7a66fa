package middleware

import (
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders errors that handlers return instead of writing, in the standard format.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return response.FromError(c, err)
}
