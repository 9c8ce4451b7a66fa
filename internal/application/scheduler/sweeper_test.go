package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ghg-workflow-backend/internal/application/calculation"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRecomputer struct {
	mu    sync.Mutex
	seen  []uuid.UUID
	fails map[uuid.UUID]error
}

func (f *fakeRecomputer) RecomputeTotals(ctx context.Context, id uuid.UUID) (*calculation.Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, id)
	if err := f.fails[id]; err != nil {
		return nil, err
	}
	return &calculation.Totals{}, nil
}

func seedProject(t *testing.T, db *gorm.DB, status domain.Status) uuid.UUID {
	p := domain.Project{Name: "P", Organization: "Acme", ReportingYear: 2026, Status: status, CreatedBy: uuid.New()}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}

func setupSweeper(t *testing.T) (*gorm.DB, *fakeRecomputer) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db, &fakeRecomputer{fails: map[uuid.UUID]error{}}
}

func TestRunOnce_OnlyUnderCalculation(t *testing.T) {
	db, rec := setupSweeper(t)
	a := seedProject(t, db, domain.StatusUnderCalculation)
	b := seedProject(t, db, domain.StatusUnderCalculation)
	seedProject(t, db, domain.StatusDraft)
	seedProject(t, db, domain.StatusLocked)

	s, err := NewTotalsSweeper(SweeperConfig{DB: db, Recomputer: rec})
	require.NoError(t, err)
	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, rec.seen)
}

func TestRunOnce_SkipsMovedProjectsAndJoinsFailures(t *testing.T) {
	db, rec := setupSweeper(t)
	moved := seedProject(t, db, domain.StatusUnderCalculation)
	broken := seedProject(t, db, domain.StatusUnderCalculation)
	ok := seedProject(t, db, domain.StatusUnderCalculation)
	rec.fails[moved] = &domain.InvalidStateError{Operation: "recompute totals", Status: domain.StatusApproved}
	rec.fails[broken] = &domain.PersistenceError{Op: "update totals", Err: errors.New("disk full")}

	s, err := NewTotalsSweeper(SweeperConfig{DB: db, Recomputer: rec})
	require.NoError(t, err)
	n, err := s.RunOnce(context.Background())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Equal(t, domain.KindPersistence, domain.Kind(err))
	assert.Contains(t, err.Error(), broken.String())
	assert.NotContains(t, err.Error(), moved.String())
	assert.Contains(t, rec.seen, ok)
}

func TestNewTotalsSweeper_Validates(t *testing.T) {
	db, rec := setupSweeper(t)
	_, err := NewTotalsSweeper(SweeperConfig{DB: db, Recomputer: rec, Spec: "every day"})
	require.Error(t, err)
	_, err = NewTotalsSweeper(SweeperConfig{DB: db})
	require.Error(t, err)

	s, err := NewTotalsSweeper(SweeperConfig{DB: db, Recomputer: rec, Spec: "*/30 * * * * *"})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	s.Stop()
	s.Stop()
}
