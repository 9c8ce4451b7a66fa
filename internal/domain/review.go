package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// ReviewDecision records one verification attempt. Rows are never overwritten.
type ReviewDecision struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	Decision   string    `gorm:"column:decision;type:varchar(16);not null" json:"decision"`
	ReasonCode *string   `gorm:"column:reason_code" json:"reason_code"`
	Comments   string    `gorm:"column:comments" json:"comments"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null" json:"reviewer_id"`
	ReviewedAt time.Time `gorm:"column:reviewed_at;not null" json:"reviewed_at"`
}

func (ReviewDecision) TableName() string {
	return "ReviewDecisions"
}

func (r *ReviewDecision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.ReviewedAt.IsZero() {
		r.ReviewedAt = time.Now().UTC()
	}
	return nil
}

// ApprovalRecord is the final sign-off with a frozen copy of every calculation and the totals.
type ApprovalRecord struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID      `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	ApproverID uuid.UUID      `gorm:"column:approver_id;type:uuid;not null" json:"approver_id"`
	Comments   string         `gorm:"column:comments" json:"comments"`
	Snapshot   datatypes.JSON `gorm:"column:snapshot;not null" json:"snapshot"`
	ApprovedAt time.Time      `gorm:"column:approved_at;not null" json:"approved_at"`
}

func (ApprovalRecord) TableName() string {
	return "ApprovalRecords"
}

func (a *ApprovalRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.ApprovedAt.IsZero() {
		a.ApprovedAt = time.Now().UTC()
	}
	return nil
}
