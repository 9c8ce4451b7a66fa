package lifecycle

import (
	"context"
	"encoding/json"
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

// unitScale maps a source unit to the normalized unit and its multiplier.
var unitScale = map[string]struct {
	to     string
	factor decimal.Decimal
}{
	"kg": {"tonnes", decimal.New(1, -3)},
	"g":  {"kg", decimal.New(1, -3)},
	"wh": {"kWh", decimal.New(1, -3)},
}

// MappedRecord is an activity record shaped for calculation input. Normalization is
// applied here only; the stored record is never changed.
type MappedRecord struct {
	EmissionRecord
	NormalizedQuantity decimal.Decimal `json:"normalized_quantity"`
	NormalizedUnit     string          `json:"normalized_unit"`
}

type Mapping struct {
	ProjectID   uuid.UUID         `json:"project_id"`
	Status      domain.Status     `json:"status"`
	Transition  *workflow.Applied `json:"-"`
	Records     []MappedRecord    `json:"records"`
	RecordCount int               `json:"record_count"`
}

func normalize(qty decimal.Decimal, unit string) (decimal.Decimal, string) {
	if s, ok := unitScale[strings.ToLower(unit)]; ok {
		return qty.Mul(s.factor), s.to
	}
	return qty, unit
}

// MapToCalculationSchema moves a SUBMITTED project into UNDER_CALCULATION and returns its
// records in calculation shape. Calling it again while UNDER_CALCULATION only re-reads.
func (o *Orchestrator) MapToCalculationSchema(ctx context.Context, projectID uuid.UUID, actor domain.Actor) (*Mapping, error) {
	if err := authorize(actor, constants.TransformData); err != nil {
		return nil, err
	}
	var records []domain.ActivityRecord
	var status domain.Status
	applied, err := o.inTx(ctx, "map to calculation schema", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		var a *workflow.Applied
		switch p.Status {
		case domain.StatusSubmitted:
			if a, err = o.machine.Apply(tx, p, workflow.Request{Target: domain.StatusUnderCalculation, Actor: actor}); err != nil {
				return nil, err
			}
			status = a.Project.Status
		case domain.StatusUnderCalculation:
			status = p.Status
		default:
			return nil, &domain.InvalidStateError{Operation: "map to calculation schema", Status: p.Status, Allowed: []domain.Status{domain.StatusSubmitted, domain.StatusUnderCalculation}}
		}
		records, err = listRecords(tx, projectID)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	m := &Mapping{ProjectID: projectID, Status: status, Transition: applied, Records: make([]MappedRecord, 0, len(records)), RecordCount: len(records)}
	for _, r := range records {
		qty, unit := normalize(r.Quantity, r.Unit)
		m.Records = append(m.Records, MappedRecord{EmissionRecord: emissionRecord(r), NormalizedQuantity: qty, NormalizedUnit: unit})
	}
	return m, nil
}

// ComputeInput describes one calculation. GWP and UnitConversion default to 1.
type ComputeInput struct {
	ActivityRecordID uuid.UUID
	Factor           decimal.Decimal
	FactorSource     string
	Scope            int
	Category         string
	GWP              *decimal.Decimal
	UnitConversion   *decimal.Decimal
	Notes            string
}

func (in *ComputeInput) validate() error {
	one := decimal.NewFromInt(1)
	if in.GWP == nil {
		in.GWP = &one
	}
	if in.UnitConversion == nil {
		in.UnitConversion = &one
	}
	switch {
	case in.ActivityRecordID == uuid.Nil:
		return &domain.ValidationError{Field: "activity_record_id", Rule: "is required"}
	case !in.Factor.IsPositive():
		return &domain.ValidationError{Field: "emission_factor", Rule: "must be greater than zero"}
	case in.GWP.IsNegative():
		return &domain.ValidationError{Field: "gwp", Rule: "must not be negative"}
	case in.UnitConversion.IsNegative():
		return &domain.ValidationError{Field: "unit_conversion", Rule: "must not be negative"}
	case !calculation.ValidScope(in.Scope):
		return &domain.ValidationError{Field: "scope", Rule: "must be 1, 2 or 3"}
	case strings.TrimSpace(in.Category) == "":
		return &domain.ValidationError{Field: "category", Rule: "is required"}
	case !calculation.FitsPlaces(in.Factor, calculation.FactorPlaces):
		return placesError("emission_factor", calculation.FactorPlaces)
	case !calculation.FitsPlaces(*in.UnitConversion, calculation.FactorPlaces):
		return placesError("unit_conversion", calculation.FactorPlaces)
	case !calculation.FitsPlaces(*in.GWP, calculation.GWPPlaces):
		return placesError("gwp", calculation.GWPPlaces)
	}
	return nil
}

func placesError(field string, places int) error {
	return &domain.ValidationError{Field: field, Rule: fmt.Sprintf("at most %d decimal places", places)}
}

// ComputeCalculation derives and stores the emissions for one activity record, replacing
// any earlier calculation for it. Project totals are left alone until a recompute.
func (o *Orchestrator) ComputeCalculation(ctx context.Context, projectID uuid.UUID, actor domain.Actor, in ComputeInput) (*domain.Calculation, error) {
	if err := authorize(actor, constants.TransformData); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var calc domain.Calculation
	_, err := o.inTx(ctx, "compute calculation", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := requireStatus(p, "compute calculation", domain.StatusUnderCalculation); err != nil {
			return nil, err
		}
		rec, err := loadRecord(tx, projectID, in.ActivityRecordID)
		if err != nil {
			return nil, err
		}
		res, err := calculation.CalculateEmissions(rec.Quantity, in.Factor, *in.GWP, *in.UnitConversion)
		if err != nil {
			return nil, err
		}
		res.Scope = in.Scope
		res.Category = strings.TrimSpace(in.Category)
		breakdown, err := json.Marshal(res.Breakdown())
		if err != nil {
			return nil, err
		}
		kg, t := res.Persisted()
		calc = domain.Calculation{
			ProjectID:        projectID,
			ActivityRecordID: rec.ID,
			CriteriaID:       rec.CriteriaID,
			ActivityData:     rec.Quantity,
			EmissionFactor:   in.Factor,
			FactorSource:     strings.TrimSpace(in.FactorSource),
			GWP:              *in.GWP,
			UnitConversion:   *in.UnitConversion,
			EmissionsKg:      kg,
			EmissionsTCO2e:   t,
			Scope:            in.Scope,
			Category:         res.Category,
			Formula:          calculation.FormulaText,
			Breakdown:        breakdown,
			Notes:            strings.TrimSpace(in.Notes),
			CalculatedBy:     actor.ID,
			CalculatedAt:     o.now().UTC(),
		}
		if err := tx.Where("project_id = ? AND activity_record_id = ?", projectID, rec.ID).Delete(&domain.Calculation{}).Error; err != nil {
			return nil, err
		}
		return nil, tx.Create(&calc).Error
	})
	if err != nil {
		return nil, err
	}
	o.logEvent("calculation_computed", projectID, actor)
	return &calc, nil
}

func listCalculations(tx *gorm.DB, projectID uuid.UUID) ([]domain.Calculation, error) {
	calcs := []domain.Calculation{}
	if err := tx.Where("project_id = ?", projectID).Order("calculated_at ASC").Find(&calcs).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list calculations", Err: err}
	}
	return calcs, nil
}

// ListCalculations returns the current calculations of a project.
func (o *Orchestrator) ListCalculations(ctx context.Context, projectID uuid.UUID) ([]domain.Calculation, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	return listCalculations(db, projectID)
}

func totalsOf(calcs []domain.Calculation) calculation.Totals {
	lines := make([]calculation.Line, 0, len(calcs))
	for _, c := range calcs {
		lines = append(lines, calculation.Line{Scope: c.Scope, EmissionsTCO2e: c.EmissionsTCO2e})
	}
	return calculation.Aggregate(lines)
}

// UpdateTotals is RecomputeTotals on behalf of a user, who must hold RecomputeTotals.
func (o *Orchestrator) UpdateTotals(ctx context.Context, projectID uuid.UUID, actor domain.Actor) (*calculation.Totals, error) {
	if err := authorize(actor, constants.RecomputeTotals); err != nil {
		return nil, err
	}
	totals, err := o.RecomputeTotals(ctx, projectID)
	if err != nil {
		return nil, err
	}
	o.logEvent("totals_updated", projectID, actor)
	return totals, nil
}

// RecomputeTotals overwrites the project's cached totals with the sum of its calculations.
// It does not bump the version and is safe to repeat. It carries no actor; the scheduled
// sweep calls it directly and user requests go through UpdateTotals.
func (o *Orchestrator) RecomputeTotals(ctx context.Context, projectID uuid.UUID) (*calculation.Totals, error) {
	var totals calculation.Totals
	_, err := o.inTx(ctx, "recompute totals", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		totals, err = recomputeTx(tx, p)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func recomputeTx(tx *gorm.DB, p domain.Project) (calculation.Totals, error) {
	if p.Status.Frozen() {
		return calculation.Totals{}, &domain.InvalidStateError{
			Operation: "recompute totals",
			Status:    p.Status,
			Allowed:   []domain.Status{domain.StatusDraft, domain.StatusSubmitted, domain.StatusUnderCalculation, domain.StatusPendingReview, domain.StatusRejected},
		}
	}
	calcs, err := listCalculations(tx, p.ID)
	if err != nil {
		return calculation.Totals{}, err
	}
	totals := totalsOf(calcs)
	err = tx.Model(&domain.Project{}).Where("id = ?", p.ID).UpdateColumns(map[string]interface{}{
		"total_scope1":    totals.Scope1,
		"total_scope2":    totals.Scope2,
		"total_scope3":    totals.Scope3,
		"total_emissions": totals.Total,
	}).Error
	if err != nil {
		return calculation.Totals{}, &domain.PersistenceError{Op: "update totals", Err: err}
	}
	return totals, nil
}

// ValidationReport is the result of re-checking every stored calculation.
type ValidationReport struct {
	ProjectID        uuid.UUID      `json:"project_id"`
	CalculationCount int            `json:"calculation_count"`
	Tolerance        string         `json:"tolerance_kg"`
	Compliant        bool           `json:"compliant"`
	Issues           []domain.Issue `json:"issues"`
}

func (o *Orchestrator) ValidateCalculations(ctx context.Context, projectID uuid.UUID) (*ValidationReport, error) {
	db := o.db.WithContext(ctx)
	if _, err := loadProject(db, projectID); err != nil {
		return nil, err
	}
	return o.validateTx(db, projectID)
}

// recordsByID indexes a project's activity records.
func recordsByID(tx *gorm.DB, projectID uuid.UUID) (map[uuid.UUID]domain.ActivityRecord, error) {
	records, err := listRecords(tx, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]domain.ActivityRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out, nil
}

func (o *Orchestrator) validateTx(tx *gorm.DB, projectID uuid.UUID) (*ValidationReport, error) {
	calcs, err := listCalculations(tx, projectID)
	if err != nil {
		return nil, err
	}
	records, err := recordsByID(tx, projectID)
	if err != nil {
		return nil, err
	}
	r := &ValidationReport{ProjectID: projectID, CalculationCount: len(calcs), Tolerance: o.tolerance.String(), Issues: []domain.Issue{}}
	if len(calcs) == 0 {
		r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "NO_CALCULATIONS", Message: "No calculations found"})
	}
	for _, c := range calcs {
		id := c.ID.String()
		rec, ok := records[c.ActivityRecordID]
		switch {
		case !ok:
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "ORPHAN_CALCULATION", Field: "activity_record_id", RecordID: id, Message: "Calculation has no activity record"})
		case !rec.Quantity.Equal(c.ActivityData):
			r.Issues = append(r.Issues, domain.Issue{
				Severity: domain.SeverityError,
				Code:     "STALE_CALCULATION",
				Field:    "activity_data",
				RecordID: id,
				Message:  fmt.Sprintf("Calculated from %s but the record now holds %s", c.ActivityData, rec.Quantity),
			})
		}
		res, err := calculation.CalculateEmissions(c.ActivityData, c.EmissionFactor, c.GWP, c.UnitConversion)
		if err != nil {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "CALC_INVALID_INPUT", RecordID: id, Message: err.Error()})
			continue
		}
		expectedKg, _ := res.Persisted()
		if diff := expectedKg.Sub(c.EmissionsKg).Abs(); diff.GreaterThan(o.tolerance) {
			r.Issues = append(r.Issues, domain.Issue{
				Severity: domain.SeverityError,
				Code:     "CALC_MISMATCH",
				Field:    "emissions_kg",
				RecordID: id,
				Message:  fmt.Sprintf("Calculation mismatch: expected %s kg, stored %s kg", expectedKg, c.EmissionsKg),
			})
		}
		if !c.EmissionsKg.Shift(-3).Equal(c.EmissionsTCO2e) {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "UNIT_MISMATCH", Field: "emissions_tco2e", RecordID: id, Message: "tCO2e does not equal kg / 1000"})
		}
		if !calculation.ValidScope(c.Scope) {
			r.Issues = append(r.Issues, domain.Issue{Severity: domain.SeverityError, Code: "INVALID_SCOPE", Field: "scope", RecordID: id, Message: fmt.Sprintf("Invalid scope: %d", c.Scope)})
		}
	}
	r.Compliant = len(r.Issues) == 0
	return r, nil
}

// SubmitForReview recomputes totals and moves the project to PENDING_REVIEW in one
// transaction, provided every calculation validates.
func (o *Orchestrator) SubmitForReview(ctx context.Context, projectID uuid.UUID, actor domain.Actor, comments string) (*workflow.Applied, error) {
	if err := authorize(actor, constants.SubmitForReview); err != nil {
		return nil, err
	}
	applied, err := o.inTx(ctx, "submit for review", projectID, func(tx *gorm.DB) (*workflow.Applied, error) {
		p, err := lockProject(tx, projectID)
		if err != nil {
			return nil, err
		}
		if err := o.machine.Graph().Check(p.Status, domain.StatusPendingReview, actor.Role); err != nil {
			return nil, err
		}
		report, err := o.validateTx(tx, projectID)
		if err != nil {
			return nil, err
		}
		if !report.Compliant {
			return nil, &domain.ValidationError{Rule: "calculation_validation", Message: "calculations failed validation", Issues: report.Issues}
		}
		totals, err := recomputeTx(tx, p)
		if err != nil {
			return nil, err
		}
		p.TotalScope1, p.TotalScope2, p.TotalScope3, p.TotalEmissions = totals.Scope1, totals.Scope2, totals.Scope3, totals.Total
		return o.machine.Apply(tx, p, workflow.Request{Target: domain.StatusPendingReview, Actor: actor, Comments: comments})
	})
	if err != nil {
		return nil, err
	}
	o.logEvent("submitted_for_review", projectID, actor)
	return applied, nil
}
