// Package audit is the read side of the transition log. Rows are written only by the
// workflow machine and cannot be updated or deleted.
package audit

import (
	"context"
	"errors"
	"time"

	"ghg-workflow-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

// Filter narrows a trail query. Zero values match everything.
type Filter struct {
	Action  string
	ActorID *uuid.UUID
	Since   *time.Time
	Limit   int
}

// Trail returns a project's audit entries, oldest first.
func (s *Service) Trail(ctx context.Context, projectID uuid.UUID, f Filter) ([]domain.AuditEntry, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Where("project_id = ?", projectID)
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	entries := []domain.AuditEntry{}
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list audit entries", Err: err}
	}
	return entries, nil
}

// Latest returns the most recent entry for a project, or nil if it never transitioned.
func (s *Service) Latest(ctx context.Context, projectID uuid.UUID) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load latest audit entry", Err: err}
	}
	return &e, nil
}

// Count returns how many transitions a project has gone through.
func (s *Service) Count(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.AuditEntry{}).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, &domain.PersistenceError{Op: "count audit entries", Err: err}
	}
	return n, nil
}

func (s *Service) requireProject(ctx context.Context, projectID uuid.UUID) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
		return &domain.PersistenceError{Op: "load project", Err: err}
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: "project", ID: projectID.String()}
	}
	return nil
}
