package projects

import (
	"context"
	"testing"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	l1 = domain.Actor{ID: uuid.New(), Role: constants.RoleDataEntry}
	l3 = domain.Actor{ID: uuid.New(), Role: constants.RoleReviewer}
)

func setupProjects(t *testing.T) (*Service, *gorm.DB) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return &Service{DB: db}, db
}

func TestCreate(t *testing.T) {
	svc, _ := setupProjects(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, l1, CreateInput{Name: " FY26 ", Organization: "Acme", ReportingYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, "FY26", p.Name)
	assert.Equal(t, domain.StatusDraft, p.Status)
	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, l1.ID, p.CreatedBy)

	_, err = svc.Create(ctx, l1, CreateInput{Name: "x", Organization: "Acme", ReportingYear: 1989})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
	_, err = svc.Create(ctx, l1, CreateInput{Organization: "Acme", ReportingYear: 2026})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
	_, err = svc.Create(ctx, l3, CreateInput{Name: "x", Organization: "Acme", ReportingYear: 2026})
	assert.Equal(t, domain.KindPermission, domain.Kind(err))
}

func TestList_FiltersAndPaginates(t *testing.T) {
	svc, db := setupProjects(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, l1, CreateInput{Name: "P", Organization: "Acme Corp", ReportingYear: 2025})
		require.NoError(t, err)
	}
	other, err := svc.Create(ctx, l1, CreateInput{Name: "Q", Organization: "Globex", ReportingYear: 2026})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Project{}).Where("id = ?", other.ID).Update("status", domain.StatusLocked).Error)

	page, err := svc.List(ctx, ListFilter{Organization: "acme", PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 2)

	page, err = svc.List(ctx, ListFilter{Status: domain.StatusLocked})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Globex", page.Items[0].Organization)

	page, err = svc.List(ctx, ListFilter{ReportingYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = svc.List(ctx, ListFilter{Status: "ARCHIVED"})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
}

func TestUpdate_EditableStatesOnly(t *testing.T) {
	svc, db := setupProjects(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, l1, CreateInput{Name: "P", Organization: "Acme", ReportingYear: 2025})
	require.NoError(t, err)

	name := "Renamed"
	updated, err := svc.Update(ctx, p.ID, l1, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, db.Model(&domain.Project{}).Where("id = ?", p.ID).Update("status", domain.StatusPendingReview).Error)
	_, err = svc.Update(ctx, p.ID, l1, UpdateInput{Name: &name})
	assert.Equal(t, domain.KindInvalidState, domain.Kind(err))

	_, err = svc.Update(ctx, uuid.New(), l1, UpdateInput{Name: &name})
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))

	_, err = svc.Update(ctx, p.ID, l1, UpdateInput{})
	assert.Equal(t, domain.KindValidation, domain.Kind(err))
}

func TestDelete(t *testing.T) {
	svc, db := setupProjects(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, l1, CreateInput{Name: "P", Organization: "Acme", ReportingYear: 2025})
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.ActivityRecord{ProjectID: p.ID, CriteriaID: 1, Quantity: decimal.NewFromInt(1), EnteredBy: l1.ID}).Error)

	require.NoError(t, svc.Delete(ctx, p.ID, l1))
	var n int64
	require.NoError(t, db.Model(&domain.ActivityRecord{}).Where("project_id = ?", p.ID).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	_, err = svc.Get(ctx, p.ID)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))

	withHistory, err := svc.Create(ctx, l1, CreateInput{Name: "P", Organization: "Acme", ReportingYear: 2025})
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.AuditEntry{ProjectID: withHistory.ID, Action: "DRAFT", FromStatus: domain.StatusSubmitted, ToStatus: domain.StatusDraft, ActorID: l1.ID, ActorRole: l1.Role}).Error)
	err = svc.Delete(ctx, withHistory.ID, l1)
	assert.Equal(t, domain.KindInvalidState, domain.Kind(err))

	submitted, err := svc.Create(ctx, l1, CreateInput{Name: "P", Organization: "Acme", ReportingYear: 2025})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.Project{}).Where("id = ?", submitted.ID).Update("status", domain.StatusSubmitted).Error)
	err = svc.Delete(ctx, submitted.ID, l1)
	assert.Equal(t, domain.KindInvalidState, domain.Kind(err))
}
