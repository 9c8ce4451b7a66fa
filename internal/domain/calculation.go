package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Calculation is the emission result derived from one activity record.
// EmissionsTCO2e is always exactly EmissionsKg / 1000.
type Calculation struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID        uuid.UUID       `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	ActivityRecordID uuid.UUID       `gorm:"column:activity_record_id;type:uuid;not null;index" json:"activity_record_id"`
	CriteriaID       int             `gorm:"column:criteria_id;not null" json:"criteria_id"`
	ActivityData     decimal.Decimal `gorm:"column:activity_data;type:decimal(20,4);not null" json:"activity_data"`
	EmissionFactor   decimal.Decimal `gorm:"column:emission_factor;type:decimal(20,6);not null" json:"emission_factor"`
	FactorSource     string          `gorm:"column:emission_factor_source" json:"emission_factor_source"`
	GWP              decimal.Decimal `gorm:"column:gwp;type:decimal(20,4);not null" json:"gwp"`
	UnitConversion   decimal.Decimal `gorm:"column:unit_conversion;type:decimal(20,6);not null" json:"unit_conversion"`
	EmissionsKg      decimal.Decimal `gorm:"column:emissions_kg;type:decimal(24,4);not null" json:"emissions_kg"`
	EmissionsTCO2e   decimal.Decimal `gorm:"column:emissions_tco2e;type:decimal(20,4);not null" json:"emissions_tco2e"`
	Scope            int             `gorm:"column:scope;not null;index" json:"scope"`
	Category         string          `gorm:"column:category;not null" json:"category"`
	Formula          string          `gorm:"column:formula;not null" json:"formula"`
	Breakdown        datatypes.JSON  `gorm:"column:breakdown" json:"breakdown"`
	Notes            string          `gorm:"column:notes" json:"notes"`
	CalculatedBy     uuid.UUID       `gorm:"column:calculated_by;type:uuid;not null" json:"calculated_by"`
	CalculatedAt     time.Time       `gorm:"column:calculated_at;not null" json:"calculated_at"`
}

func (Calculation) TableName() string {
	return "Calculations"
}

func (c *Calculation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CalculatedAt.IsZero() {
		c.CalculatedAt = time.Now().UTC()
	}
	return nil
}
