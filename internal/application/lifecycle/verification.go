package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ghg-workflow-backend/internal/application/calculation"
	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Protocols are the standards the compliance check is written against.
var Protocols = []string{"GHG Protocol", "ISO 14064-1"}

type IntegrityReport struct {
	ProjectID        uuid.UUID      `json:"project_id"`
	RecordCount      int            `json:"record_count"`
	CalculationCount int            `json:"calculation_count"`
	Issues           []domain.Issue `json:"issues"`
}

// VerifyIntegrity cross-checks records against calculations. Findings are warnings only.
func (o *Orchestrator) VerifyIntegrity(ctx context.Context, projectID uuid.UUID) (*IntegrityReport, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	records, err := listRecords(db, projectID)
	if err != nil {
		return nil, err
	}
	calcs, err := listCalculations(db, projectID)
	if err != nil {
		return nil, err
	}
	perRecord := make(map[uuid.UUID]int, len(calcs))
	for _, c := range calcs {
		perRecord[c.ActivityRecordID]++
	}
	known := make(map[uuid.UUID]domain.ActivityRecord, len(records))
	r := &IntegrityReport{ProjectID: projectID, RecordCount: len(records), CalculationCount: len(calcs), Issues: []domain.Issue{}}
	for _, rec := range records {
		known[rec.ID] = rec
		if perRecord[rec.ID] == 0 {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityWarning, Code: "MISSING_CALCULATION", RecordID: rec.ID.String(), Message: "No calculation for activity record"})
		}
	}
	for _, c := range calcs {
		rec, ok := known[c.ActivityRecordID]
		switch {
		case !ok:
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityWarning, Code: "ORPHAN_CALCULATION", RecordID: c.ID.String(), Message: "Calculation has no activity record"})
		case !rec.Quantity.Equal(c.ActivityData):
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityWarning, Code: "STALE_CALCULATION", Field: "activity_data", RecordID: c.ID.String(), Message: "Activity record changed after it was calculated"})
		}
		if !c.EmissionFactor.IsPositive() {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityWarning, Code: "INVALID_EMISSION_FACTOR", Field: "emission_factor", RecordID: c.ID.String(), Message: "Emission factor must be positive"})
		}
	}
	return r, nil
}

type ComplianceReport struct {
	ProjectID uuid.UUID      `json:"project_id"`
	Protocols []string       `json:"protocols"`
	Compliant bool           `json:"compliant"`
	Issues    []domain.Issue `json:"issues"`
}

// CheckProtocolCompliance applies the GHG Protocol minimums: at least one calculation and
// non-zero scope 1 or scope 2 emissions. A missing factor source is a warning.
func (o *Orchestrator) CheckProtocolCompliance(ctx context.Context, projectID uuid.UUID) (*ComplianceReport, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	calcs, err := listCalculations(db, projectID)
	if err != nil {
		return nil, err
	}
	r := &ComplianceReport{ProjectID: projectID, Protocols: Protocols, Issues: []domain.Issue{}}
	if len(calcs) == 0 {
		r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "GHG-000", Message: "No calculations found"})
	} else {
		totals := totalsOf(calcs)
		if totals.Scope1.Add(totals.Scope2).IsZero() {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "GHG-001", Message: "Scope 1 or Scope 2 emissions must be reported"})
		}
	}
	for _, c := range calcs {
		if strings.TrimSpace(c.FactorSource) == "" {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityWarning, Code: "GHG-002", Field: "emission_factor_source", RecordID: c.ID.String(), Message: "Emission factor source not documented"})
		}
	}
	r.Compliant = true
	for _, issue := range r.Issues {
		if issue.Severity == domain.SeverityError {
			r.Compliant = false
		}
	}
	return r, nil
}

// ReviewOutcome pairs the stored decision with the transition it caused.
type ReviewOutcome struct {
	Decision   domain.ReviewDecision `json:"decision"`
	Transition *workflow.Applied     `json:"-"`
}

func (o *Orchestrator) ApproveReview(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments string) (*ReviewOutcome, error) {
	return o.review(ctx, projectID, actor, domain.DecisionApproved, strings.TrimSpace(comments), nil)
}

// RejectReview sends the project back to data collection. Comments and an active
// catalogued reason code are required.
func (o *Orchestrator) RejectReview(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments, reasonCode string) (*ReviewOutcome, error) {
	comments = strings.TrimSpace(comments)
	reasonCode = strings.ToUpper(strings.TrimSpace(reasonCode))
	if comments == "" {
		return nil, &domain.ValidationError{Field: "comments", Rule: "required when rejecting"}
	}
	if reasonCode == "" {
		return nil, &domain.ValidationError{Field: "reason_code", Rule: "required when rejecting"}
	}
	return o.review(ctx, projectID, actor, domain.DecisionRejected, comments, &reasonCode)
}

func (o *Orchestrator) review(ctx context.Context, projectID uuid.UUID, actor domain.Actor, decision, comments string, reasonCode *string) (*ReviewOutcome, error) {
	if err := authorize(actor, constants.ReviewDecision); err != nil {
		return nil, err
	}
	target := domain.StatusApproved
	if decision == domain.DecisionRejected {
		target = domain.StatusRejected
	}
	out := &ReviewOutcome{}
	applied, err := o.inTx(ctx, "review decision", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := o.machine.Graph().Check(p.Status, target, actor.Role); err != nil {
			return nil, err
		}
		if reasonCode != nil {
			if err := requireReasonCode(tx, *reasonCode); err != nil {
				return nil, err
			}
		}
		out.Decision = domain.ReviewDecision{
			ProjectID:  projectID,
			Decision:   decision,
			ReasonCode: reasonCode,
			Comments:   comments,
			ReviewerID: actor.ID,
			ReviewedAt: o.now().UTC(),
		}
		if err := tx.Create(&out.Decision).Error; err != nil {
			return nil, &domain.PersistenceError{Op: "save review decision", Err: err}
		}
		return o.machine.Apply(tx, p, workflow.Request{Target: target, Actor: actor, Comments: comments, ReasonCode: reasonCode})
	})
	if err != nil {
		return nil, err
	}
	out.Transition = applied
	o.logEvent("review_"+strings.ToLower(decision), projectID, actor)
	return out, nil
}

func requireReasonCode(tx *gorm.DB, code string) error {
	var rc domain.ReasonCode
	err := tx.Where("code = ?", code).First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !rc.IsActive) {
		return &domain.ValidationError{Field: "reason_code", Rule: "unknown_reason_code", Message: fmt.Sprintf("reason code %s is not in the catalog", code)}
	}
	if err != nil {
		return &domain.PersistenceError{Op: "load reason code", Err: err}
	}
	return nil
}

// CalculationSummary is a compact per-scope view used by verification screens.
func (o *Orchestrator) CalculationSummary(ctx context.Context, projectID uuid.UUID) (*calculation.Totals, error) {
	calcs, err := o.ListCalculations(ctx, projectID)
	if err != nil {
		return nil, err
	}
	t := totalsOf(calcs)
	return &t, nil
}
