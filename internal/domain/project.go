package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status is a node of the project workflow graph.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusUnderCalculation Status = "UNDER_CALCULATION"
	StatusPendingReview    Status = "PENDING_REVIEW"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusLocked           Status = "LOCKED"
)

// AllStatuses lists every workflow status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderCalculation,
	StatusPendingReview,
	StatusApproved,
	StatusRejected,
	StatusLocked,
}

// EditableStatuses are the statuses in which activity data may be created or changed.
var EditableStatuses = []Status{StatusDraft, StatusSubmitted, StatusRejected}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Editable reports whether activity data may be changed in this status.
func (s Status) Editable() bool {
	for _, v := range EditableStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Frozen reports whether calculations and totals are immutable in this status.
func (s Status) Frozen() bool {
	return s == StatusApproved || s == StatusLocked
}

// Lane names the workflow lane a project is in for a given status.
func (s Status) Lane() string {
	switch s {
	case StatusDraft, StatusSubmitted, StatusRejected:
		return "DATA_COLLECTION"
	case StatusUnderCalculation:
		return "DATA_TRANSFORMATION"
	case StatusPendingReview:
		return "DATA_VERIFICATION"
	case StatusApproved:
		return "FINAL_REVIEW"
	case StatusLocked:
		return "COMPLETED"
	}
	return "UNKNOWN"
}

// Project is a GHG inventory for one organization and reporting year.
// Status, milestone timestamps and Version change only through the workflow machine;
// the totals only through a recompute.
type Project struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	Organization   string          `gorm:"column:organization;not null;index" json:"organization"`
	Description    string          `gorm:"column:description" json:"description"`
	ReportingYear  int             `gorm:"column:reporting_year;not null;index" json:"reporting_year"`
	Status         Status          `gorm:"column:status;type:varchar(32);not null;default:'DRAFT';index" json:"status"`
	Version        int64           `gorm:"column:version;not null;default:1" json:"version"`
	TotalScope1    decimal.Decimal `gorm:"column:total_scope1;type:decimal(20,4);not null;default:0" json:"total_scope1"`
	TotalScope2    decimal.Decimal `gorm:"column:total_scope2;type:decimal(20,4);not null;default:0" json:"total_scope2"`
	TotalScope3    decimal.Decimal `gorm:"column:total_scope3;type:decimal(20,4);not null;default:0" json:"total_scope3"`
	TotalEmissions decimal.Decimal `gorm:"column:total_emissions;type:decimal(20,4);not null;default:0" json:"total_emissions"`
	SubmittedAt    *time.Time      `gorm:"column:submitted_at" json:"submitted_at"`
	CalculatedAt   *time.Time      `gorm:"column:calculated_at" json:"calculated_at"`
	ReviewedAt     *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at"`
	ApprovedAt     *time.Time      `gorm:"column:approved_at" json:"approved_at"`
	LockedAt       *time.Time      `gorm:"column:locked_at" json:"locked_at"`
	CreatedBy      uuid.UUID       `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Project) TableName() string {
	return "Projects"
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}
