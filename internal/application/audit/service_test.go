package audit

import (
	"context"
	"testing"
	"time"

	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAudit(t *testing.T) (*Service, *workflow.Machine, *gorm.DB) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	m, err := workflow.New(workflow.Config{DB: db})
	require.NoError(t, err)
	return &Service{DB: db}, m, db
}

func TestTrail_FollowsLifecycle(t *testing.T) {
	svc, m, db := setupAudit(t)
	ctx := context.Background()
	p := domain.Project{Name: "P", Organization: "Org", ReportingYear: 2025, CreatedBy: uuid.New()}
	require.NoError(t, db.Create(&p).Error)

	l1 := domain.Actor{ID: uuid.New(), Role: constants.RoleDataEntry}
	l2 := domain.Actor{ID: uuid.New(), Role: constants.RoleCalculation}

	a, err := m.Transition(ctx, p, workflow.Request{Target: domain.StatusSubmitted, Actor: l1})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = m.Transition(ctx, a.Project, workflow.Request{Target: domain.StatusUnderCalculation, Actor: l2})
	require.NoError(t, err)

	trail, err := svc.Trail(ctx, p.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.StatusDraft, trail[0].FromStatus)
	assert.Equal(t, domain.StatusSubmitted, trail[1].FromStatus)
	assert.Equal(t, domain.StatusUnderCalculation, trail[1].ToStatus)

	byL2, err := svc.Trail(ctx, p.ID, Filter{ActorID: &l2.ID})
	require.NoError(t, err)
	require.Len(t, byL2, 1)
	assert.Equal(t, "UNDER_CALCULATION", byL2[0].Action)

	latest, err := svc.Latest(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.StatusUnderCalculation, latest.ToStatus)

	n, err := svc.Count(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTrail_UnknownProject(t *testing.T) {
	svc, _, _ := setupAudit(t)
	_, err := svc.Trail(context.Background(), uuid.New(), Filter{})
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestLatest_NoHistory(t *testing.T) {
	svc, _, db := setupAudit(t)
	p := domain.Project{Name: "P", Organization: "Org", ReportingYear: 2025, CreatedBy: uuid.New()}
	require.NoError(t, db.Create(&p).Error)
	latest, err := svc.Latest(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)
}
