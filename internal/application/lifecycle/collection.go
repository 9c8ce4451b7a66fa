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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CollectInput struct {
	CriteriaID int
	Quantity   decimal.Decimal
	Unit       string
	Notes      string
}

func (in CollectInput) validate() error {
	if in.CriteriaID <= 0 {
		return &domain.ValidationError{Field: "criteria_id", Rule: "must be a positive integer"}
	}
	return validQuantity(in.Quantity)
}

func validQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return &domain.ValidationError{Field: "quantity", Rule: "must be greater than zero"}
	}
	if !calculation.FitsPlaces(q, calculation.ActivityPlaces) {
		return placesError("quantity", calculation.ActivityPlaces)
	}
	return nil
}

// CollectActivity records one activity line while the project is still editable.
func (o *Orchestrator) CollectActivity(ctx context.Context, projectID uuid.UUID, actor domain.Actor, in CollectInput) (*domain.ActivityRecord, error) {
	if err := authorize(actor, constants.CollectData); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	rec := &domain.ActivityRecord{
		ProjectID:  projectID,
		CriteriaID: in.CriteriaID,
		Quantity:   in.Quantity,
		Unit:       strings.TrimSpace(in.Unit),
		Notes:      strings.TrimSpace(in.Notes),
		EnteredBy:  actor.ID,
		EnteredAt:  o.now().UTC(),
	}
	_, err := o.inTx(ctx, "collect activity", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(p, "collect activity", domain.EditableStatuses...); err != nil {
			return nil, err
		}
		if err := requireCriteria(tx, in.CriteriaID); err != nil {
			return nil, err
		}
		return nil, tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	o.logEvent("activity_collected", projectID, actor)
	return rec, nil
}

// UpdateActivityInput changes only the fields that are set.
type UpdateActivityInput struct {
	Quantity *decimal.Decimal
	Unit     *string
	Notes    *string
}

func (o *Orchestrator) UpdateActivity(ctx context.Context, projectID, recordID uuid.UUID, actor domain.Actor, in UpdateActivityInput) (*domain.ActivityRecord, error) {
	if err := authorize(actor, constants.CollectData); err != nil {
		return nil, err
	}
	if in.Quantity != nil {
		if err := validQuantity(*in.Quantity); err != nil {
			return nil, err
		}
	}
	var rec domain.ActivityRecord
	_, err := o.inTx(ctx, "update activity", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(p, "update activity", domain.EditableStatuses...); err != nil {
			return nil, err
		}
		if rec, err = loadRecord(tx, projectID, recordID); err != nil {
			return nil, err
		}
		upd := map[string]interface{}{}
		if in.Quantity != nil && !in.Quantity.Equal(rec.Quantity) {
			// the old calculation no longer matches the record
			if err := deleteCalculations(tx, recordID); err != nil {
				return nil, err
			}
			upd["quantity"] = *in.Quantity
			rec.Quantity = *in.Quantity
		}
		if in.Unit != nil {
			upd["unit"] = strings.TrimSpace(*in.Unit)
			rec.Unit = strings.TrimSpace(*in.Unit)
		}
		if in.Notes != nil {
			upd["notes"] = strings.TrimSpace(*in.Notes)
			rec.Notes = strings.TrimSpace(*in.Notes)
		}
		if len(upd) == 0 {
			return nil, &domain.ValidationError{Rule: "no fields to update"}
		}
		return nil, tx.Model(&domain.ActivityRecord{}).Where("id = ?", recordID).Updates(upd).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteActivity removes a record with its evidence metadata and calculation while the
// project is editable.
func (o *Orchestrator) DeleteActivity(ctx context.Context, projectID, recordID uuid.UUID, actor domain.Actor) error {
	if err := authorize(actor, constants.CollectData); err != nil {
		return err
	}
	_, err := o.inTx(ctx, "delete activity", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(p, "delete activity", domain.EditableStatuses...); err != nil {
			return nil, err
		}
		if _, err := loadRecord(tx, projectID, recordID); err != nil {
			return nil, err
		}
		if err := tx.Where("activity_record_id = ?", recordID).Delete(&domain.Evidence{}).Error; err != nil {
			return nil, err
		}
		if err := deleteCalculations(tx, recordID); err != nil {
			return nil, err
		}
		return nil, tx.Where("id = ?", recordID).Delete(&domain.ActivityRecord{}).Error
	})
	return err
}

func deleteCalculations(tx *gorm.DB, recordID uuid.UUID) error {
	return tx.Where("activity_record_id = ?", recordID).Delete(&domain.Calculation{}).Error
}

func requireCriteria(tx *gorm.DB, criteriaID int) error {
	var n int64
	if err := tx.Model(&domain.Criteria{}).Where("id = ? AND is_active = ?", criteriaID, true).Count(&n).Error; err != nil {
		return &domain.PersistenceError{Op: "load criteria", Err: err}
	}
	if n == 0 {
		return &domain.ValidationError{Field: "criteria_id", Rule: "unknown_criteria", Message: fmt.Sprintf("criterion %d does not exist or is retired", criteriaID)}
	}
	return nil
}

func loadRecord(tx *gorm.DB, projectID, recordID uuid.UUID) (domain.ActivityRecord, error) {
	var rec domain.ActivityRecord
	err := tx.Where("id = ? AND project_id = ?", recordID, projectID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, &domain.NotFoundError{Entity: "activity record", ID: recordID.String()}
	}
	if err != nil {
		return rec, &domain.PersistenceError{Op: "load activity record", Err: err}
	}
	return rec, nil
}

func listRecords(tx *gorm.DB, projectID uuid.UUID) ([]domain.ActivityRecord, error) {
	records := []domain.ActivityRecord{}
	if err := tx.Where("project_id = ?", projectID).Order("entered_at ASC").Find(&records).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list activity records", Err: err}
	}
	return records, nil
}

// ListActivity returns a project's activity records in entry order.
func (o *Orchestrator) ListActivity(ctx context.Context, projectID uuid.UUID) ([]domain.ActivityRecord, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	return listRecords(db, projectID)
}

// Aggregate summarizes collected activity data per unit.
type Aggregate struct {
	ProjectID     uuid.UUID         `json:"project_id"`
	RecordCount   int               `json:"record_count"`
	EvidenceCount int               `json:"evidence_count"`
	TotalByUnit   map[string]string `json:"total_by_unit"`
	Records       []EmissionRecord  `json:"records"`
}

// EmissionRecord is the read-only shape of an activity line handed to reviewers.
type EmissionRecord struct {
	ActivityRecordID uuid.UUID       `json:"activity_record_id"`
	CriteriaID       int             `json:"criteria_id"`
	ActivityData     decimal.Decimal `json:"activity_data"`
	Unit             string          `json:"unit"`
	Notes            string          `json:"notes"`
	HasEvidence      int             `json:"has_evidence"`
	EnteredAt        string          `json:"entered_at"`
}

func emissionRecord(r domain.ActivityRecord) EmissionRecord {
	return EmissionRecord{
		ActivityRecordID: r.ID,
		CriteriaID:       r.CriteriaID,
		ActivityData:     r.Quantity,
		Unit:             r.Unit,
		Notes:            r.Notes,
		HasEvidence:      r.EvidenceCount,
		EnteredAt:        r.EnteredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (o *Orchestrator) AggregateData(ctx context.Context, projectID uuid.UUID) (*Aggregate, error) {
	records, err := o.ListActivity(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sums := map[string]decimal.Decimal{}
	agg := &Aggregate{ProjectID: projectID, RecordCount: len(records), TotalByUnit: map[string]string{}, Records: make([]EmissionRecord, 0, len(records))}
	for _, r := range records {
		sums[r.Unit] = sums[r.Unit].Add(r.Quantity)
		agg.EvidenceCount += r.EvidenceCount
		agg.Records = append(agg.Records, emissionRecord(r))
	}
	for unit, total := range sums {
		agg.TotalByUnit[unit] = total.String()
	}
	return agg, nil
}

// QualityReport is the result of the collection-lane quality check.
type QualityReport struct {
	ProjectID    uuid.UUID      `json:"project_id"`
	RecordCount  int            `json:"record_count"`
	ErrorCount   int            `json:"error_count"`
	WarningCount int            `json:"warning_count"`
	Passed       bool           `json:"passed"`
	Issues       []domain.Issue `json:"issues"`
}

func (q *QualityReport) add(issue domain.Issue) {
	q.Issues = append(q.Issues, issue)
	if issue.Severity == domain.SeverityError {
		q.ErrorCount++
	} else {
		q.WarningCount++
	}
}

// RunQualityCheck scans activity records. Negative quantities and an empty project are
// blocking errors; a missing unit or missing evidence is a warning.
func (o *Orchestrator) RunQualityCheck(ctx context.Context, projectID uuid.UUID) (*QualityReport, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	return qualityCheck(db, projectID)
}

func qualityCheck(tx *gorm.DB, projectID uuid.UUID) (*QualityReport, error) {
	records, err := listRecords(tx, projectID)
	if err != nil {
		return nil, err
	}
	q := &QualityReport{ProjectID: projectID, RecordCount: len(records), Issues: []domain.Issue{}}
	if len(records) == 0 {
		q.add(domain.Issue{Severity: domain.SeverityError, Code: "NO_DATA", Message: "No data records found"})
	}
	for _, r := range records {
		id := r.ID.String()
		if r.Quantity.IsNegative() {
			q.add(domain.Issue{Severity: domain.SeverityError, Code: "NEGATIVE_ACTIVITY", Field: "quantity", RecordID: id, Message: "Negative activity data"})
		}
		if r.Unit == "" {
			q.add(domain.Issue{Severity: domain.SeverityWarning, Code: "MISSING_UNIT", Field: "unit", RecordID: id, Message: "Missing unit of measurement"})
		}
		if r.EvidenceCount == 0 {
			q.add(domain.Issue{Severity: domain.SeverityWarning, Code: "NO_EVIDENCE", RecordID: id, Message: "No supporting evidence attached"})
		}
	}
	q.Passed = q.ErrorCount == 0
	return q, nil
}

// SubmitForCalculation hands the project to the calculation lane. The quality check runs in
// the same transaction as the transition and must pass.
func (o *Orchestrator) SubmitForCalculation(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments string) (*workflow.Applied, error) {
	if err := authorize(actor, constants.SubmitData); err != nil {
		return nil, err
	}
	applied, err := o.inTx(ctx, "submit for calculation", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := o.machine.Graph().Check(p.Status, domain.StatusSubmitted, actor.Role); err != nil {
			return nil, err
		}
		q, err := qualityCheck(tx, projectID)
		if err != nil {
			return nil, err
		}
		if !q.Passed {
			return nil, &domain.ValidationError{Rule: "quality_check", Message: "quality check failed", Issues: q.Issues}
		}
		return o.machine.Apply(tx, p, workflow.Request{Target: domain.StatusSubmitted, Actor: actor, Comments: comments})
	})
	if err != nil {
		return nil, err
	}
	o.logEvent("submitted_for_calculation", projectID, actor)
	return applied, nil
}

var returnEdges = map[domain.Status]domain.Status{
	domain.StatusSubmitted:        domain.StatusDraft,
	domain.StatusUnderCalculation: domain.StatusSubmitted,
}

// ReturnProject sends a project one lane back: SUBMITTED to DRAFT, or UNDER_CALCULATION to SUBMITTED.
func (o *Orchestrator) ReturnProject(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments string) (*workflow.Applied, error) {
	if err := authorize(actor, constants.ReturnProject); err != nil {
		return nil, err
	}
	applied, err := o.inTx(ctx, "return project", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		target, ok := returnEdges[p.Status]
		if !ok {
			return nil, &domain.InvalidStateError{Operation: "return project", Status: p.Status, Allowed: []domain.Status{domain.StatusSubmitted, domain.StatusUnderCalculation}}
		}
		return o.machine.Apply(tx, p, workflow.Request{Target: target, Actor: actor, Comments: comments})
	})
	if err != nil {
		return nil, err
	}
	o.logEvent("returned", projectID, actor)
	return applied, nil
}
