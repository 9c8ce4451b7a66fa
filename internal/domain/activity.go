package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ActivityRecord is one line of raw activity data (fuel burned, kWh bought, km driven)
// entered against a reporting criterion.
type ActivityRecord struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID       `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	CriteriaID    int             `gorm:"column:criteria_id;not null" json:"criteria_id"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:decimal(20,4);not null" json:"quantity"`
	Unit          string          `gorm:"column:unit" json:"unit"`
	Notes         string          `gorm:"column:notes" json:"notes"`
	EvidenceCount int             `gorm:"column:evidence_count;not null;default:0" json:"evidence_count"`
	EnteredBy     uuid.UUID       `gorm:"column:entered_by;type:uuid;not null" json:"entered_by"`
	EnteredAt     time.Time       `gorm:"column:entered_at;not null" json:"entered_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (ActivityRecord) TableName() string {
	return "ActivityRecords"
}

func (r *ActivityRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.EnteredAt.IsZero() {
		r.EnteredAt = time.Now().UTC()
	}
	return nil
}

// Evidence is a supporting document uploaded for an activity record.
type Evidence struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID        uuid.UUID `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	ActivityRecordID uuid.UUID `gorm:"column:activity_record_id;type:uuid;not null;index" json:"activity_record_id"`
	FileName         string    `gorm:"column:file_name;not null" json:"file_name"`
	StoragePath      string    `gorm:"column:storage_path;not null" json:"storage_path"`
	PublicURL        string    `gorm:"column:public_url" json:"public_url"`
	UploadedBy       uuid.UUID `gorm:"column:uploaded_by;type:uuid;not null" json:"uploaded_by"`
	UploadedAt       time.Time `gorm:"column:uploaded_at;not null" json:"uploaded_at"`
}

func (Evidence) TableName() string {
	return "Evidence"
}

func (e *Evidence) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}
	return nil
}
