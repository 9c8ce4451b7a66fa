// Package factors serves the reference catalogues: the emission factor library, the
// reporting criteria and the review reason codes.
package factors

import (
	"context"
	"errors"
	"strings"

	"ghg-workflow-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultLimit = 50

type Service struct {
	DB *gorm.DB
}

type Query struct {
	Text     string
	Scope    int
	Category string
	Region   string
	Limit    int
}

// Search matches Text against name, category and source, case-insensitively.
func (s *Service) Search(ctx context.Context, q Query) ([]domain.EmissionFactor, error) {
	if q.Scope != 0 && (q.Scope < 1 || q.Scope > 3) {
		return nil, &domain.ValidationError{Field: "scope", Rule: "must be 1, 2 or 3"}
	}
	db := s.DB.WithContext(ctx).Model(&domain.EmissionFactor{})
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		like := "%" + text + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(category) LIKE ? OR LOWER(source) LIKE ?", like, like, like)
	}
	if q.Scope != 0 {
		db = db.Where("scope = ?", q.Scope)
	}
	if q.Category != "" {
		db = db.Where("LOWER(category) = ?", strings.ToLower(q.Category))
	}
	if q.Region != "" {
		db = db.Where("LOWER(region) = ?", strings.ToLower(q.Region))
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = defaultLimit
	}
	out := []domain.EmissionFactor{}
	if err := db.Order("scope ASC, name ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "search emission factors", Err: err}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.EmissionFactor, error) {
	var f domain.EmissionFactor
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "emission factor", ID: id.String()}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load emission factor", Err: err}
	}
	return &f, nil
}

// ReasonCodes lists the rejection reasons, active ones only unless all is set.
func (s *Service) ReasonCodes(ctx context.Context, all bool) ([]domain.ReasonCode, error) {
	db := s.DB.WithContext(ctx)
	if !all {
		db = db.Where("is_active = ?", true)
	}
	out := []domain.ReasonCode{}
	if err := db.Order("category ASC, code ASC").Find(&out).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list reason codes", Err: err}
	}
	return out, nil
}

// Criteria lists reporting categories by number, optionally for one scope.
func (s *Service) Criteria(ctx context.Context, scope int, all bool) ([]domain.Criteria, error) {
	if scope != 0 && (scope < 1 || scope > 3) {
		return nil, &domain.ValidationError{Field: "scope", Rule: "must be 1, 2 or 3"}
	}
	db := s.DB.WithContext(ctx)
	if scope != 0 {
		db = db.Where("scope = ?", scope)
	}
	if !all {
		db = db.Where("is_active = ?", true)
	}
	out := []domain.Criteria{}
	if err := db.Order("id ASC").Find(&out).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list criteria", Err: err}
	}
	return out, nil
}
