package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ghg-workflow-backend/internal/application/calculation"
	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot is the frozen content of a project at final approval.
type Snapshot struct {
	ProjectID     uuid.UUID            `json:"project_id"`
	ProjectName   string               `json:"project_name"`
	ReportingYear int                  `json:"reporting_year"`
	Totals        calculation.Totals   `json:"totals"`
	Calculations  []domain.Calculation `json:"calculations"`
	TakenAt       time.Time            `json:"taken_at"`
}

type Approval struct {
	Record     domain.ApprovalRecord `json:"record"`
	Transition *workflow.Applied     `json:"-"`
}

// FinalApprove stores an approval record with a deep snapshot of the calculations and
// totals, then locks the project. Both happen in one transaction.
func (o *Orchestrator) FinalApprove(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments string) (*Approval, error) {
	if err := authorize(actor, constants.FinalApproval); err != nil {
		return nil, err
	}
	out := &Approval{}
	applied, err := o.inTx(ctx, "final approval", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := o.machine.Graph().Check(p.Status, domain.StatusLocked, actor.Role); err != nil {
			return nil, err
		}
		calcs, err := listCalculations(tx, projectID)
		if err != nil {
			return nil, err
		}
		now := o.now().UTC()
		snap, err := json.Marshal(Snapshot{
			ProjectID:     p.ID,
			ProjectName:   p.Name,
			ReportingYear: p.ReportingYear,
			Totals:        totalsOf(calcs),
			Calculations:  calcs,
			TakenAt:       now,
		})
		if err != nil {
			return nil, err
		}
		out.Record = domain.ApprovalRecord{
			ProjectID:  projectID,
			ApproverID: actor.ID,
			Comments:   strings.TrimSpace(comments),
			Snapshot:   snap,
			ApprovedAt: now,
		}
		if err := tx.Create(&out.Record).Error; err != nil {
			return nil, &domain.PersistenceError{Op: "save approval record", Err: err}
		}
		return o.machine.Apply(tx, p, workflow.Request{Target: domain.StatusLocked, Actor: actor, Comments: out.Record.Comments})
	})
	if err != nil {
		return nil, err
	}
	out.Transition = applied
	o.logEvent("final_approved", projectID, actor)
	return out, nil
}

type ArchiveReceipt struct {
	ArchiveID  string        `json:"archive_id"`
	ProjectID  uuid.UUID     `json:"project_id"`
	Status     string        `json:"status"`
	LockedAt   *time.Time    `json:"locked_at"`
	ArchivedAt time.Time     `json:"archived_at"`
	Project    domain.Status `json:"project_status"`
}

// Archive issues a receipt for a locked project. Nothing is written.
func (o *Orchestrator) Archive(ctx context.Context, projectID uuid.UUID) (*ArchiveReceipt, error) {
	p, err := loadProject(o.db.WithContext(ctx), projectID)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(p, "archive", domain.StatusLocked); err != nil {
		return nil, err
	}
	now := o.now().UTC()
	return &ArchiveReceipt{
		ArchiveID:  fmt.Sprintf("ARCH-%s-%s", p.ID, now.Format("20060102150405")),
		ProjectID:  p.ID,
		Status:     "ARCHIVED",
		LockedAt:   p.LockedAt,
		ArchivedAt: now,
		Project:    p.Status,
	}, nil
}
