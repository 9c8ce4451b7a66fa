package workflow

import (
	"ghg-workflow-backend/internal/application/lifecycle"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/interfaces/handlers/request"
	"ghg-workflow-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CollectRequest struct {
	CriteriaID int             `json:"criteria_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	Notes      string          `json:"notes"`
}

type UpdateRecordRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Unit     *string          `json:"unit"`
	Notes    *string          `json:"notes"`
}

type EvidenceRequest struct {
	RecordID string `json:"record_id"`
	FileName string `json:"file_name"`
}

// Collect POST /collection/:id/collect
func (h *Handlers) Collect(c *fiber.Ctx) error {
	var req CollectRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	rec, err := h.Orchestrator.CollectActivity(c.UserContext(), id, actor, lifecycle.CollectInput(req))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Activity data recorded", fiber.Map{"record": rec}, nil)
}

// Records GET /collection/:id/records
func (h *Handlers) Records(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	recs, err := h.Orchestrator.ListActivity(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Activity records retrieved", recs, fiber.Map{"count": len(recs)})
}

// UpdateRecord PATCH /collection/:id/records/:recordId
func (h *Handlers) UpdateRecord(c *fiber.Ctx) error {
	var req UpdateRecordRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	recordID, err := request.UUIDParam(c, "recordId")
	if err != nil {
		return response.FromError(c, err)
	}
	rec, err := h.Orchestrator.UpdateActivity(c.UserContext(), id, recordID, actor, lifecycle.UpdateActivityInput(req))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Activity record updated", fiber.Map{"record": rec}, nil)
}

// DeleteRecord DELETE /collection/:id/records/:recordId
func (h *Handlers) DeleteRecord(c *fiber.Ctx) error {
	actor, id, err := call(c, nil)
	if err != nil {
		return response.FromError(c, err)
	}
	recordID, err := request.UUIDParam(c, "recordId")
	if err != nil {
		return response.FromError(c, err)
	}
	if err := h.Orchestrator.DeleteActivity(c.UserContext(), id, recordID, actor); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Activity record deleted", nil, nil)
}

// Aggregate GET /collection/:id/aggregate
func (h *Handlers) Aggregate(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	agg, err := h.Orchestrator.AggregateData(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Activity data aggregated", agg, nil)
}

// QualityCheck POST /collection/:id/quality-check
func (h *Handlers) QualityCheck(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	q, err := h.Orchestrator.RunQualityCheck(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Quality check completed", q, nil)
}

func parseRecordID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Field: "record_id", Rule: "must be a valid UUID"}
	}
	return id, nil
}

// RequestEvidence POST /collection/:id/evidence
func (h *Handlers) RequestEvidence(c *fiber.Ctx) error {
	var req EvidenceRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	recordID, err := parseRecordID(req.RecordID)
	if err != nil {
		return response.FromError(c, err)
	}
	ticket, err := h.Evidence.RequestUpload(c.UserContext(), id, recordID, actor, req.FileName)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Upload URL issued", ticket, nil)
}

// ListEvidence GET /collection/:id/evidence
func (h *Handlers) ListEvidence(c *fiber.Ctx) error {
	id, err := request.UUIDParam(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	items, err := h.Evidence.List(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Evidence retrieved", items, fiber.Map{"count": len(items)})
}

// Submit POST /collection/:id/submit
func (h *Handlers) Submit(c *fiber.Ctx) error {
	var req CommentsRequest
	actor, id, err := call(c, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Orchestrator.SubmitForCalculation(c.UserContext(), id, actor, req.Comments)
	if err != nil {
		return response.FromError(c, err)
	}
	return transitioned(c, "Project submitted for calculation", a)
}
