package projects

import (
	"context"
	"errors"
	"strings"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinReportingYear = 1990
	MaxReportingYear = 2100
	DefaultPageSize  = 20
	MaxPageSize      = 100
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Name          string
	Organization  string
	Description   string
	ReportingYear int
}

func validateYear(year int) error {
	if year < MinReportingYear || year > MaxReportingYear {
		return &domain.ValidationError{Field: "reporting_year", Rule: "must be between 1990 and 2100"}
	}
	return nil
}

func permit(actor domain.Actor, permission string) error {
	if constants.AllowedRole(permission, actor.Role) {
		return nil
	}
	return &domain.PermissionError{Permission: permission, Role: actor.Role}
}

// Create opens a new inventory in DRAFT owned by actor.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Project, error) {
	if err := permit(actor, constants.CreateProject); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	org := strings.TrimSpace(in.Organization)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Rule: "is required"}
	}
	if org == "" {
		return nil, &domain.ValidationError{Field: "organization", Rule: "is required"}
	}
	if err := validateYear(in.ReportingYear); err != nil {
		return nil, err
	}
	p := &domain.Project{
		Name:          name,
		Organization:  org,
		Description:   strings.TrimSpace(in.Description),
		ReportingYear: in.ReportingYear,
		Status:        domain.StatusDraft,
		CreatedBy:     actor.ID,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "create project", Err: err}
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var p domain.Project
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.NotFoundError{Entity: "project", ID: id.String()}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load project", Err: err}
	}
	return &p, nil
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Status        domain.Status
	ReportingYear int
	Organization  string
	Page          int
	PageSize      int
}

type Page struct {
	Items    []domain.Project `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// List returns projects newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Rule: "unknown status"}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	q := s.DB.WithContext(ctx).Model(&domain.Project{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ReportingYear != 0 {
		q = q.Where("reporting_year = ?", f.ReportingYear)
	}
	if org := strings.TrimSpace(f.Organization); org != "" {
		q = q.Where("LOWER(organization) LIKE ?", "%"+strings.ToLower(org)+"%")
	}
	out := &Page{Items: []domain.Project{}, Page: f.Page, PageSize: f.PageSize}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "count projects", Err: err}
	}
	if err := q.Order("created_at DESC").Offset((f.Page - 1) * f.PageSize).Limit(f.PageSize).Find(&out.Items).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list projects", Err: err}
	}
	return out, nil
}

// UpdateInput changes project metadata. Status and totals are not editable here.
type UpdateInput struct {
	Name          *string
	Organization  *string
	Description   *string
	ReportingYear *int
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, actor domain.Actor, in UpdateInput) (*domain.Project, error) {
	if err := permit(actor, constants.EditProject); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, &domain.ValidationError{Field: "name", Rule: "is required"}
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Organization != nil {
		if strings.TrimSpace(*in.Organization) == "" {
			return nil, &domain.ValidationError{Field: "organization", Rule: "is required"}
		}
		updates["organization"] = strings.TrimSpace(*in.Organization)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.ReportingYear != nil {
		if err := validateYear(*in.ReportingYear); err != nil {
			return nil, err
		}
		updates["reporting_year"] = *in.ReportingYear
	}
	if len(updates) == 0 {
		return nil, &domain.ValidationError{Rule: "no fields to update"}
	}

	var p domain.Project
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Entity: "project", ID: id.String()}
			}
			return err
		}
		if !p.Status.Editable() {
			return &domain.InvalidStateError{Operation: "update project", Status: p.Status, Allowed: domain.EditableStatuses}
		}
		if err := tx.Model(&domain.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err != nil {
		return nil, domain.Persistence("update project", err)
	}
	return &p, nil
}

// Delete removes a DRAFT project that never transitioned, with its activity data.
// Projects with audit history stay, since audit rows are permanent.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor domain.Actor) error {
	if err := permit(actor, constants.EditProject); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &domain.NotFoundError{Entity: "project", ID: id.String()}
			}
			return err
		}
		if p.Status != domain.StatusDraft {
			return &domain.InvalidStateError{Operation: "delete project", Status: p.Status, Allowed: []domain.Status{domain.StatusDraft}}
		}
		var history int64
		if err := tx.Model(&domain.AuditEntry{}).Where("project_id = ?", id).Count(&history).Error; err != nil {
			return err
		}
		if history > 0 {
			return &domain.InvalidStateError{Operation: "delete project with audit history", Status: p.Status}
		}
		for _, model := range []interface{}{&domain.Calculation{}, &domain.Evidence{}, &domain.ActivityRecord{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&domain.Project{}).Error
	})
	return domain.Persistence("delete project", err)
}
