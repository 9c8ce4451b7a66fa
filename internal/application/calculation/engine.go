// Package calculation holds the emission arithmetic. Everything here is pure and
// deterministic; all math is fixed-point decimal.
package calculation

import (
	"fmt"
	"math"

	"ghg-workflow-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// FormulaText is stored with every calculation.
const FormulaText = "Activity Data × Emission Factor × GWP × Unit Conversion ÷ 1000"

// PersistPlaces is the number of decimal places kept for tCO2e at persistence.
const PersistPlaces = 4

// Column scales of the stored inputs. An input with more places would be rounded by the
// database and no longer reproduce the stored result.
const (
	ActivityPlaces = 4
	FactorPlaces   = 6
	GWPPlaces      = 4
)

// FitsPlaces reports whether d has at most places decimal places.
func FitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

const (
	Scope1 = 1
	Scope2 = 2
	Scope3 = 3
)

// ValidScope reports whether scope is 1, 2 or 3.
func ValidScope(scope int) bool {
	return scope >= Scope1 && scope <= Scope3
}

// Input holds the four factors of the emission formula.
type Input struct {
	ActivityData   decimal.Decimal `json:"activity_data"`
	EmissionFactor decimal.Decimal `json:"emission_factor"`
	GWP            decimal.Decimal `json:"gwp"`
	UnitConversion decimal.Decimal `json:"unit_conversion"`
}

// Result is an unrounded calculation plus the metadata a helper attached to it.
type Result struct {
	Input          Input             `json:"input"`
	EmissionsKg    decimal.Decimal   `json:"emissions_kg"`
	EmissionsTCO2e decimal.Decimal   `json:"emissions_tco2e"`
	Scope          int               `json:"scope,omitempty"`
	Category       string            `json:"category,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CalculateEmissions computes kg = activity × factor × gwp × conversion and tCO2e = kg / 1000
// at full precision. Rounding happens only in Persisted.
func CalculateEmissions(activity, factor, gwp, unitConversion decimal.Decimal) (Result, error) {
	in := Input{ActivityData: activity, EmissionFactor: factor, GWP: gwp, UnitConversion: unitConversion}
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	kg := activity.Mul(factor).Mul(gwp).Mul(unitConversion)
	return Result{
		Input:          in,
		EmissionsKg:    kg,
		EmissionsTCO2e: kg.Shift(-3),
	}, nil
}

func (in Input) validate() error {
	fields := []struct {
		name string
		v    decimal.Decimal
	}{
		{"activity_data", in.ActivityData},
		{"emission_factor", in.EmissionFactor},
		{"gwp", in.GWP},
		{"unit_conversion", in.UnitConversion},
	}
	for _, f := range fields {
		if f.v.IsNegative() {
			return &domain.CalculationError{Field: f.name, Message: "must not be negative"}
		}
	}
	return nil
}

// Persisted returns the pair that is stored: tCO2e rounded half-up to PersistPlaces,
// and kg derived from it so that tCO2e == kg / 1000 holds exactly.
func (r Result) Persisted() (kg, tco2e decimal.Decimal) {
	tco2e = RoundPersist(r.EmissionsTCO2e)
	return tco2e.Shift(3), tco2e
}

// RoundPersist rounds half-up (away from zero) to PersistPlaces.
func RoundPersist(d decimal.Decimal) decimal.Decimal {
	return d.Round(PersistPlaces)
}

// Breakdown is the JSON snapshot of how a result was produced.
func (r Result) Breakdown() map[string]interface{} {
	kg, t := r.Persisted()
	out := map[string]interface{}{
		"activity_data":   r.Input.ActivityData.String(),
		"emission_factor": r.Input.EmissionFactor.String(),
		"gwp":             r.Input.GWP.String(),
		"unit_conversion": r.Input.UnitConversion.String(),
		"emissions_kg":    kg.String(),
		"emissions_tco2e": t.String(),
		"formula":         FormulaText,
		"calculation": fmt.Sprintf("%s × %s × %s × %s ÷ 1000 = %s tCO2e",
			r.Input.ActivityData, r.Input.EmissionFactor, r.Input.GWP, r.Input.UnitConversion, t),
	}
	if r.Scope != 0 {
		out["scope"] = r.Scope
	}
	if r.Category != "" {
		out["category"] = r.Category
	}
	for k, v := range r.Metadata {
		out[k] = v
	}
	return out
}

// ParseFloat converts a transport-level float into a decimal, refusing NaN and infinities.
func ParseFloat(field string, v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, &domain.CalculationError{Field: field, Message: "must be a finite number"}
	}
	return decimal.NewFromFloat(v), nil
}

// ParseString converts a decimal literal.
func ParseString(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.CalculationError{Field: field, Message: "must be numeric"}
	}
	return d, nil
}

// Line is the part of a calculation that aggregation needs.
type Line struct {
	Scope          int
	EmissionsTCO2e decimal.Decimal
}

// Totals are per-scope sums in tCO2e.
type Totals struct {
	Scope1 decimal.Decimal `json:"scope1"`
	Scope2 decimal.Decimal `json:"scope2"`
	Scope3 decimal.Decimal `json:"scope3"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"breakdown_count"`
}

// Aggregate sums lines per scope. Decimal addition is exact, so the result does not
// depend on input order; each total is rounded only after summation. Lines with an
// unknown scope count toward Total only.
func Aggregate(lines []Line) Totals {
	var s1, s2, s3, all decimal.Decimal
	for _, l := range lines {
		switch l.Scope {
		case Scope1:
			s1 = s1.Add(l.EmissionsTCO2e)
		case Scope2:
			s2 = s2.Add(l.EmissionsTCO2e)
		case Scope3:
			s3 = s3.Add(l.EmissionsTCO2e)
		}
		all = all.Add(l.EmissionsTCO2e)
	}
	return Totals{
		Scope1: RoundPersist(s1),
		Scope2: RoundPersist(s2),
		Scope3: RoundPersist(s3),
		Total:  RoundPersist(all),
		Count:  len(lines),
	}
}
