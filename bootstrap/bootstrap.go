package bootstrap

import (
	"ghg-workflow-backend/internal/config"
	"ghg-workflow-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for serverless deployments (the api handler imports this package, not internal).
// The totals sweep is not started here; a function instance does not live long enough to run it.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	app, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return app.Fiber, nil
}
