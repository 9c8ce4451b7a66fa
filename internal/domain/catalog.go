package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReasonCode is a catalogued justification for rejecting a review.
type ReasonCode struct {
	Code        string `gorm:"column:code;primaryKey" json:"code" yaml:"code"`
	Description string `gorm:"column:description;not null" json:"description" yaml:"description"`
	Category    string `gorm:"column:category;not null" json:"category" yaml:"category"`
	IsActive    bool   `gorm:"column:is_active;not null;default:true" json:"is_active" yaml:"is_active"`
}

func (ReasonCode) TableName() string {
	return "ReasonCodes"
}

// EmissionFactor is one entry of the emission factor library.
type EmissionFactor struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string          `gorm:"column:name;not null;index" json:"name"`
	Category  string          `gorm:"column:category;not null;index" json:"category"`
	Scope     int             `gorm:"column:scope;not null;index" json:"scope"`
	Value     decimal.Decimal `gorm:"column:value;type:decimal(20,6);not null" json:"value"`
	Unit      string          `gorm:"column:unit;not null" json:"unit"`
	GWP       decimal.Decimal `gorm:"column:gwp;type:decimal(20,4);not null;default:1" json:"gwp"`
	Region    string          `gorm:"column:region" json:"region"`
	Source    string          `gorm:"column:source;not null" json:"source"`
	Year      int             `gorm:"column:year" json:"year"`
	CreatedAt time.Time       `json:"created_at"`
}

func (EmissionFactor) TableName() string {
	return "EmissionFactors"
}

func (f *EmissionFactor) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Criteria is one of the reporting categories activity data is entered against.
// ID is the category number, so it is stable across seeds.
type Criteria struct {
	ID          int    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Scope       int    `gorm:"column:scope;not null;index" json:"scope" yaml:"scope"`
	Category    string `gorm:"column:category;not null" json:"category" yaml:"category"`
	Subcategory string `gorm:"column:subcategory" json:"subcategory" yaml:"subcategory"`
	Unit        string `gorm:"column:unit" json:"unit" yaml:"unit"`
	HelpText    string `gorm:"column:help_text" json:"help_text" yaml:"help_text"`
	IsActive    bool   `gorm:"column:is_active;not null;default:true" json:"is_active" yaml:"-"`
}

func (Criteria) TableName() string {
	return "Criteria"
}
