package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/infrastructure/database"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func setupReporting(t *testing.T) (*Service, *gorm.DB, *miniredis.Miniredis) {
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	svc := &Service{DB: db, Cache: rdb, TTL: time.Minute, Graph: workflow.MustDefaultGraph(), Now: func() time.Time { return fixedNow }}
	return svc, db, mr
}

func seed(t *testing.T, db *gorm.DB, status domain.Status) domain.Project {
	p := domain.Project{
		Name:           "FY26 inventory",
		Organization:   "Acme",
		ReportingYear:  2026,
		Status:         status,
		CreatedBy:      uuid.New(),
		TotalScope1:    decimal.RequireFromString("0.268"),
		TotalScope3:    decimal.RequireFromString("0.031"),
		TotalEmissions: decimal.RequireFromString("0.299"),
	}
	require.NoError(t, db.Create(&p).Error)
	rec := domain.ActivityRecord{ProjectID: p.ID, CriteriaID: 1, Quantity: decimal.NewFromInt(100), Unit: "litres", EnteredBy: p.CreatedBy}
	require.NoError(t, db.Create(&rec).Error)
	calcs := []domain.Calculation{
		{ProjectID: p.ID, ActivityRecordID: rec.ID, CriteriaID: 1, ActivityData: decimal.NewFromInt(100), EmissionFactor: decimal.RequireFromString("2.68"), GWP: decimal.NewFromInt(1), UnitConversion: decimal.NewFromInt(1), EmissionsKg: decimal.NewFromInt(268), EmissionsTCO2e: decimal.RequireFromString("0.268"), Scope: 1, Category: "Stationary Combustion", Formula: "f", CalculatedBy: p.CreatedBy},
		{ProjectID: p.ID, ActivityRecordID: rec.ID, CriteriaID: 1, ActivityData: decimal.NewFromInt(500), EmissionFactor: decimal.RequireFromString("0.062"), GWP: decimal.NewFromInt(1), UnitConversion: decimal.NewFromInt(1), EmissionsKg: decimal.NewFromInt(31), EmissionsTCO2e: decimal.RequireFromString("0.031"), Scope: 3, Category: "Transportation", Formula: "f", CalculatedBy: p.CreatedBy},
	}
	require.NoError(t, db.Create(&calcs).Error)
	return p
}

func TestDashboard_BreakdownAndCache(t *testing.T) {
	svc, db, mr := setupReporting(t)
	ctx := context.Background()
	p := seed(t, db, domain.StatusPendingReview)

	d, err := svc.Dashboard(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dashboards/ghg/"+p.ID.String(), d.DashboardURL)
	require.Len(t, d.ScopeBreakdown, 2)
	assert.Equal(t, 1, d.ScopeBreakdown[0].Scope)
	assert.Equal(t, "Stationary Combustion", d.ScopeBreakdown[0].Categories[0].Category)
	assert.Equal(t, "0.268", d.ScopeBreakdown[0].Total.String())
	assert.Equal(t, "89.63", d.ScopeShare["scope1"].String())
	assert.True(t, mr.Exists(cacheKey("dashboard", p.ID)))

	// cached copy survives a direct table change until invalidated
	require.NoError(t, db.Model(&domain.Project{}).Where("id = ?", p.ID).Update("name", "Renamed").Error)
	d, err = svc.Dashboard(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "FY26 inventory", d.ProjectName)

	svc.Invalidate(ctx, p.ID)
	assert.False(t, mr.Exists(cacheKey("dashboard", p.ID)))
	d, err = svc.Dashboard(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", d.ProjectName)
}

func TestDashboard_WithoutCache(t *testing.T) {
	svc, db, _ := setupReporting(t)
	svc.Cache = nil
	p := seed(t, db, domain.StatusDraft)
	d, err := svc.Dashboard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, d.ProjectID)

	_, err = svc.Dashboard(context.Background(), uuid.New())
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestGHGReport(t *testing.T) {
	svc, db, _ := setupReporting(t)
	ctx := context.Background()

	locked := seed(t, db, domain.StatusLocked)
	r, err := svc.GHGReport(ctx, locked.ID)
	require.NoError(t, err)
	assert.Equal(t, "GHG-RPT-"+locked.ID.String()+"-20260506070809", r.ReportID)
	assert.Equal(t, "GHG Inventory Report - FY26 inventory", r.ReportTitle)
	assert.Equal(t, "VERIFIED", r.VerificationStatus)
	assert.Equal(t, []string{"GHG Protocol", "ISO 14064-1"}, r.Protocols)
	assert.Len(t, r.Calculations, 2)

	pending := seed(t, db, domain.StatusPendingReview)
	r, err = svc.GHGReport(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", r.VerificationStatus)
}

func TestComplianceStatus(t *testing.T) {
	svc, db, _ := setupReporting(t)
	p := seed(t, db, domain.StatusApproved)
	cs, err := svc.ComplianceStatus(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, cs.Checks["scope1_reported"])
	assert.False(t, cs.Checks["scope2_reported"])
	assert.True(t, cs.Checks["verified"])
	assert.False(t, cs.Checks["locked"])
	assert.True(t, cs.OverallCompliant)
	assert.Equal(t, "COMPLIANT", cs.Status)

	empty := domain.Project{Name: "Empty", Organization: "Acme", ReportingYear: 2026, CreatedBy: uuid.New()}
	require.NoError(t, db.Create(&empty).Error)
	cs, err = svc.ComplianceStatus(context.Background(), empty.ID)
	require.NoError(t, err)
	assert.Equal(t, "NON_COMPLIANT", cs.Status)
}

func TestVerificationReportAndApprovalDocs(t *testing.T) {
	svc, db, _ := setupReporting(t)
	ctx := context.Background()
	p := seed(t, db, domain.StatusLocked)
	code := "DQ001"
	reviewer := uuid.New()
	require.NoError(t, db.Create(&domain.ReviewDecision{ProjectID: p.ID, Decision: domain.DecisionRejected, ReasonCode: &code, Comments: "gaps", ReviewerID: reviewer, ReviewedAt: fixedNow.Add(-2 * time.Hour)}).Error)
	require.NoError(t, db.Create(&domain.ReviewDecision{ProjectID: p.ID, Decision: domain.DecisionApproved, Comments: "ok", ReviewerID: reviewer, ReviewedAt: fixedNow.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&domain.ApprovalRecord{ProjectID: p.ID, ApproverID: uuid.New(), Snapshot: []byte(`{"totals":{}}`)}).Error)

	vr, err := svc.VerificationReport(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(vr.ReportID, "VR-"))
	assert.Equal(t, 2, vr.TotalReviews)
	require.NotNil(t, vr.LatestReview)
	assert.Equal(t, domain.DecisionApproved, vr.LatestReview.Decision)

	docs, err := svc.ApprovalDocs(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(docs.DocumentID, "APPR-"))
	assert.Equal(t, 1, docs.ApprovalCount)

	fr, err := svc.FinalDataReview(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fr.CalculationCount)
	assert.Equal(t, int64(1), fr.RecordCount)
	assert.Equal(t, int64(2), fr.ReviewCount)
}

func TestProjectStatus_TransitionsPerRole(t *testing.T) {
	svc, db, _ := setupReporting(t)
	p := seed(t, db, domain.StatusPendingReview)

	ps, err := svc.ProjectStatus(context.Background(), p.ID, constants.RoleReviewer)
	require.NoError(t, err)
	assert.Equal(t, "DATA_VERIFICATION", ps.Lane)
	assert.ElementsMatch(t, []domain.Status{domain.StatusApproved, domain.StatusRejected}, ps.AvailableTransitions)
	assert.Empty(t, ps.TransitionsByRole[constants.RoleDataEntry])
	assert.Equal(t, int64(2), ps.Counts["calculations"])
	assert.Equal(t, int64(1), ps.Counts["activity_records"])

	ps, err = svc.ProjectStatus(context.Background(), p.ID, constants.RoleApprover)
	require.NoError(t, err)
	assert.Empty(t, ps.AvailableTransitions)
}
