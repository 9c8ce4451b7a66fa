package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ghg-workflow-backend/internal/application/notifications"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	got  []notifications.Notification
	fail error
}

func (r *recordingNotifier) Notify(ctx context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.fail
}

func (r *recordingNotifier) all() []notifications.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Notification(nil), r.got...)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupMachine(t *testing.T, n notifications.Notifier) (*Machine, *gorm.DB) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	m, err := New(Config{DB: db, Notifier: n, NotifyTimeout: time.Second, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return m, db
}

func seedProject(t *testing.T, db *gorm.DB, status domain.Status) domain.Project {
	p := domain.Project{
		Name:          "FY26 inventory",
		Organization:  "Acme",
		ReportingYear: 2026,
		Status:        status,
		CreatedBy:     uuid.New(),
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func actor(role string) domain.Actor {
	return domain.Actor{ID: uuid.New(), Role: role}
}

func auditCount(t *testing.T, db *gorm.DB, projectID uuid.UUID) int64 {
	var n int64
	require.NoError(t, db.Model(&domain.AuditEntry{}).Where("project_id = ?", projectID).Count(&n).Error)
	return n
}

func TestTransition_UpdatesStatusStampsAndAudits(t *testing.T) {
	rec := &recordingNotifier{}
	m, db := setupMachine(t, rec)
	p := seedProject(t, db, domain.StatusDraft)
	l1 := actor(constants.RoleDataEntry)

	applied, err := m.Transition(context.Background(), p, Request{Target: domain.StatusSubmitted, Actor: l1, Comments: "ready"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, applied.Project.Status)
	assert.Equal(t, int64(2), applied.Project.Version)

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.StatusSubmitted, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
	require.NotNil(t, stored.SubmittedAt)
	assert.True(t, stored.SubmittedAt.Equal(fixedNow))
	assert.Nil(t, stored.LockedAt)

	var entries []domain.AuditEntry
	require.NoError(t, db.Where("project_id = ?", p.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.StatusDraft, entries[0].FromStatus)
	assert.Equal(t, domain.StatusSubmitted, entries[0].ToStatus)
	assert.Equal(t, "SUBMITTED", entries[0].Action)
	assert.Equal(t, l1.ID, entries[0].ActorID)
	assert.Equal(t, constants.RoleDataEntry, entries[0].ActorRole)
	assert.Equal(t, "ready", entries[0].Comments)

	m.Wait()
	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "DRAFT_to_SUBMITTED", got[0].TransitionKey)
	assert.Equal(t, p.ID, got[0].ProjectID)
}

func TestTransition_ApprovedStampsReviewAndApproval(t *testing.T) {
	m, db := setupMachine(t, nil)
	p := seedProject(t, db, domain.StatusPendingReview)

	_, err := m.Transition(context.Background(), p, Request{Target: domain.StatusApproved, Actor: actor(constants.RoleReviewer)})
	require.NoError(t, err)

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	require.NotNil(t, stored.ReviewedAt)
	require.NotNil(t, stored.ApprovedAt)
	assert.Nil(t, stored.SubmittedAt)
}

func TestTransition_EveryEdgeWritesExactlyOneAuditEntry(t *testing.T) {
	m, db := setupMachine(t, nil)
	for _, e := range DefaultEdges {
		p := seedProject(t, db, e.From)
		applied, err := m.Transition(context.Background(), p, Request{Target: e.To, Actor: actor(e.Roles[0])})
		require.NoError(t, err, "%s -> %s", e.From, e.To)
		assert.Equal(t, e.From, applied.Entry.FromStatus)
		assert.Equal(t, e.To, applied.Entry.ToStatus)
		assert.Equal(t, int64(1), auditCount(t, db, p.ID))
	}
}

func TestTransition_InvalidEdgeHasNoSideEffects(t *testing.T) {
	rec := &recordingNotifier{}
	m, db := setupMachine(t, rec)
	p := seedProject(t, db, domain.StatusDraft)

	_, err := m.Transition(context.Background(), p, Request{Target: domain.StatusLocked, Actor: actor(constants.RoleApprover)})
	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.DenialNoSuchEdge, ite.Denial)

	_, err = m.Transition(context.Background(), p, Request{Target: domain.StatusSubmitted, Actor: actor(constants.RoleReviewer)})
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.DenialRoleNotPermitted, ite.Denial)
	assert.Equal(t, []string{constants.RoleDataEntry}, ite.RequiredRoles)

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, int64(0), auditCount(t, db, p.ID))
	m.Wait()
	assert.Empty(t, rec.all())
}

func TestTransition_StaleVersionConflicts(t *testing.T) {
	m, db := setupMachine(t, nil)
	p := seedProject(t, db, domain.StatusSubmitted)
	l2 := actor(constants.RoleCalculation)

	_, err := m.Transition(context.Background(), p, Request{Target: domain.StatusUnderCalculation, Actor: l2})
	require.NoError(t, err)

	// p still carries version 1 and status SUBMITTED
	_, err = m.Transition(context.Background(), p, Request{Target: domain.StatusDraft, Actor: l2})
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), auditCount(t, db, p.ID))
}

func TestTransition_MissingProject(t *testing.T) {
	m, _ := setupMachine(t, nil)
	ghost := domain.Project{ID: uuid.New(), Status: domain.StatusDraft, Version: 1}
	_, err := m.Transition(context.Background(), ghost, Request{Target: domain.StatusSubmitted, Actor: actor(constants.RoleDataEntry)})
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestTransition_ConcurrentCallsOneWins(t *testing.T) {
	m, db := setupMachine(t, nil)
	p := seedProject(t, db, domain.StatusPendingReview)
	l3 := actor(constants.RoleReviewer)

	targets := []domain.Status{domain.StatusApproved, domain.StatusRejected}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target domain.Status) {
			defer wg.Done()
			<-start
			_, errs[i] = m.Transition(context.Background(), p, Request{Target: target, Actor: l3})
		}(i, target)
	}
	close(start)
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case domain.Kind(err) == domain.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, int64(1), auditCount(t, db, p.ID))

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, int64(2), stored.Version)
}

func TestTransition_NotificationFailureKeepsTransition(t *testing.T) {
	rec := &recordingNotifier{fail: errors.New("smtp down")}
	m, db := setupMachine(t, rec)
	p := seedProject(t, db, domain.StatusApproved)

	_, err := m.Transition(context.Background(), p, Request{Target: domain.StatusLocked, Actor: actor(constants.RoleApprover)})
	require.NoError(t, err)
	m.Wait()

	require.Len(t, rec.all(), 1)
	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.StatusLocked, stored.Status)
	require.NotNil(t, stored.LockedAt)
}

func TestTransition_AuditFailureRollsBackStatus(t *testing.T) {
	m, db := setupMachine(t, nil)
	p := seedProject(t, db, domain.StatusDraft)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "AuditEntries" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := m.Transition(context.Background(), p, Request{Target: domain.StatusSubmitted, Actor: actor(constants.RoleDataEntry)})
	var pe *domain.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.NotContains(t, pe.Error(), "disk full")

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Nil(t, stored.SubmittedAt)
}

func TestApply_ComposesWithCallerTransaction(t *testing.T) {
	rec := &recordingNotifier{}
	m, db := setupMachine(t, rec)
	p := seedProject(t, db, domain.StatusDraft)

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := m.Apply(tx, p, Request{Target: domain.StatusSubmitted, Actor: actor(constants.RoleDataEntry)}); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	var stored domain.Project
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.StatusDraft, stored.Status)
	assert.Equal(t, int64(0), auditCount(t, db, p.ID))
	m.Wait()
	assert.Empty(t, rec.all())
}
