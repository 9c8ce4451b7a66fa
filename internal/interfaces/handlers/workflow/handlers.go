// Package workflow exposes the four lane surfaces of the project lifecycle.
package workflow

import (
	"ghg-workflow-backend/internal/application/evidence"
	"ghg-workflow-backend/internal/application/lifecycle"
	"ghg-workflow-backend/internal/application/reporting"
	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Orchestrator *lifecycle.Orchestrator
	Evidence     *evidence.Service
	Reporting    *reporting.Service
}

// CommentsRequest is the body of every transition endpoint.
type CommentsRequest struct {
	Comments   string `json:"comments"`
	ReasonCode string `json:"reason_code"`
}

// call resolves the actor, the :id param and an optional body in that order.
func call(c *fiber.Ctx, body interface{}) (domain.Actor, uuid.UUID, error) {
	actor, err := request.Actor(c)
	if err != nil {
		return domain.Actor{}, uuid.Nil, err
	}
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return domain.Actor{}, uuid.Nil, err
	}
	if body != nil {
		if err := request.Body(c, body); err != nil {
			return domain.Actor{}, uuid.Nil, err
		}
	}
	return actor, id, nil
}

func transitioned(c *fiber.Ctx, message string, a *workflow.Applied) error {
	return response.Success(c, message, fiber.Map{
		"project":    a.Project,
		"transition": a.Entry,
	}, nil)
}
