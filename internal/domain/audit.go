package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by the model hooks on any attempt to change an audit row.
var ErrAuditImmutable = errors.New("audit entries are append-only")

// AuditEntry records one successful status transition.
type AuditEntry struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID `gorm:"column:project_id;type:uuid;not null;index" json:"project_id"`
	Action     string    `gorm:"column:action;not null" json:"action"`
	FromStatus Status    `gorm:"column:from_status;type:varchar(32)" json:"from_status"`
	ToStatus   Status    `gorm:"column:to_status;type:varchar(32);not null" json:"to_status"`
	ActorID    uuid.UUID `gorm:"column:actor_id;type:uuid;not null" json:"actor_id"`
	ActorRole  string    `gorm:"column:actor_role;not null" json:"actor_role"`
	Comments   string    `gorm:"column:comments" json:"comments"`
	ReasonCode *string   `gorm:"column:reason_code" json:"reason_code"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "AuditEntries"
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (a *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

func (a *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
