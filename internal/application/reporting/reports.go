package reporting

import (
	"context"
	"fmt"
	"time"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const idTimeLayout = "20060102150405"

type Dashboard struct {
	ProjectID      uuid.UUID                  `json:"project_id"`
	ProjectName    string                     `json:"project_name"`
	Organization   string                     `json:"organization"`
	ReportingYear  int                        `json:"reporting_year"`
	Status         domain.Status              `json:"status"`
	Totals         Totals                     `json:"totals"`
	ScopeBreakdown []ScopeBreakdown           `json:"scope_breakdown"`
	ScopeShare     map[string]decimal.Decimal `json:"scope_share_percent"`
	DashboardURL   string                     `json:"dashboard_url"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// Dashboard returns the per-scope overview of a project.
func (s *Service) Dashboard(ctx context.Context, projectID uuid.UUID) (*Dashboard, error) {
	return cached(ctx, s, "dashboard", projectID, func() (*Dashboard, error) {
		p, err := s.loadProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		calcs, err := s.calculations(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return &Dashboard{
			ProjectID:      p.ID,
			ProjectName:    p.Name,
			Organization:   p.Organization,
			ReportingYear:  p.ReportingYear,
			Status:         p.Status,
			Totals:         totalsOf(p),
			ScopeBreakdown: breakdown(calcs),
			ScopeShare:     ScopeShare(totalsOf(p)),
			DashboardURL:   "/dashboards/ghg/" + p.ID.String(),
			GeneratedAt:    s.now(),
		}, nil
	})
}

type GHGReport struct {
	ReportID           string               `json:"report_id"`
	ReportTitle        string               `json:"report_title"`
	ProjectID          uuid.UUID            `json:"project_id"`
	Organization       string               `json:"organization"`
	ReportingYear      int                  `json:"reporting_year"`
	Status             domain.Status        `json:"status"`
	VerificationStatus string               `json:"verification_status"`
	Protocols          []string             `json:"protocols"`
	Totals             Totals               `json:"totals"`
	ScopeBreakdown     []ScopeBreakdown     `json:"scope_breakdown"`
	Calculations       []domain.Calculation `json:"calculations"`
	ApprovedAt         *time.Time           `json:"approved_at"`
	LockedAt           *time.Time           `json:"locked_at"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

func verificationStatus(s domain.Status) string {
	if s.Frozen() {
		return "VERIFIED"
	}
	return "PENDING"
}

// GHGReport is the full inventory report with every calculation line.
func (s *Service) GHGReport(ctx context.Context, projectID uuid.UUID) (*GHGReport, error) {
	return cached(ctx, s, "ghg-report", projectID, func() (*GHGReport, error) {
		p, err := s.loadProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		calcs, err := s.calculations(ctx, projectID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		return &GHGReport{
			ReportID:           fmt.Sprintf("GHG-RPT-%s-%s", p.ID, now.Format(idTimeLayout)),
			ReportTitle:        "GHG Inventory Report - " + p.Name,
			ProjectID:          p.ID,
			Organization:       p.Organization,
			ReportingYear:      p.ReportingYear,
			Status:             p.Status,
			VerificationStatus: verificationStatus(p.Status),
			Protocols:          Protocols,
			Totals:             totalsOf(p),
			ScopeBreakdown:     breakdown(calcs),
			Calculations:       calcs,
			ApprovedAt:         p.ApprovedAt,
			LockedAt:           p.LockedAt,
			GeneratedAt:        now,
		}, nil
	})
}

type ComplianceStatus struct {
	ProjectID        uuid.UUID       `json:"project_id"`
	Checks           map[string]bool `json:"checks"`
	OverallCompliant bool            `json:"overall_compliant"`
	Status           string          `json:"status"`
}

// ComplianceStatus reports which scopes are covered and whether the inventory is verified
// and locked. A project is compliant once scope 1 or scope 2 is reported.
func (s *Service) ComplianceStatus(ctx context.Context, projectID uuid.UUID) (*ComplianceStatus, error) {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	checks := map[string]bool{
		"scope1_reported": p.TotalScope1.IsPositive(),
		"scope2_reported": p.TotalScope2.IsPositive(),
		"scope3_reported": p.TotalScope3.IsPositive(),
		"verified":        p.Status.Frozen(),
		"locked":          p.Status == domain.StatusLocked,
	}
	cs := &ComplianceStatus{
		ProjectID:        p.ID,
		Checks:           checks,
		OverallCompliant: checks["scope1_reported"] || checks["scope2_reported"],
		Status:           "NON_COMPLIANT",
	}
	if cs.OverallCompliant {
		cs.Status = "COMPLIANT"
	}
	return cs, nil
}

type VerificationReport struct {
	ReportID     string                  `json:"report_id"`
	ProjectID    uuid.UUID               `json:"project_id"`
	Status       domain.Status           `json:"status"`
	Totals       Totals                  `json:"totals"`
	TotalReviews int                     `json:"total_reviews"`
	LatestReview *domain.ReviewDecision  `json:"latest_review"`
	Reviews      []domain.ReviewDecision `json:"reviews"`
	GeneratedAt  time.Time               `json:"generated_at"`
}

// VerificationReport lists every review decision recorded for the project.
func (s *Service) VerificationReport(ctx context.Context, projectID uuid.UUID) (*VerificationReport, error) {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviews(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	r := &VerificationReport{
		ReportID:     fmt.Sprintf("VR-%s-%s", p.ID, now.Format(idTimeLayout)),
		ProjectID:    p.ID,
		Status:       p.Status,
		Totals:       totalsOf(p),
		TotalReviews: len(reviews),
		Reviews:      reviews,
		GeneratedAt:  now,
	}
	if len(reviews) > 0 {
		latest := reviews[len(reviews)-1]
		r.LatestReview = &latest
	}
	return r, nil
}

type FinalDataReview struct {
	ProjectID        uuid.UUID     `json:"project_id"`
	CurrentStatus    domain.Status `json:"current_status"`
	Totals           Totals        `json:"totals"`
	CalculationCount int64         `json:"calculation_count"`
	RecordCount      int64         `json:"record_count"`
	ReviewCount      int64         `json:"review_count"`
}

// FinalDataReview is the summary an approver sees before sign-off.
func (s *Service) FinalDataReview(ctx context.Context, projectID uuid.UUID) (*FinalDataReview, error) {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	r := &FinalDataReview{ProjectID: p.ID, CurrentStatus: p.Status, Totals: totalsOf(p)}
	if r.CalculationCount, err = s.count(ctx, &domain.Calculation{}, projectID); err != nil {
		return nil, err
	}
	if r.RecordCount, err = s.count(ctx, &domain.ActivityRecord{}, projectID); err != nil {
		return nil, err
	}
	if r.ReviewCount, err = s.count(ctx, &domain.ReviewDecision{}, projectID); err != nil {
		return nil, err
	}
	return r, nil
}

type ApprovalDocs struct {
	DocumentID    string                  `json:"document_id"`
	ProjectID     uuid.UUID               `json:"project_id"`
	ProjectName   string                  `json:"project_name"`
	Status        domain.Status           `json:"status"`
	ApprovalCount int                     `json:"approval_count"`
	Approvals     []domain.ApprovalRecord `json:"approvals"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

// ApprovalDocs bundles the final approval records with their snapshots.
func (s *Service) ApprovalDocs(ctx context.Context, projectID uuid.UUID) (*ApprovalDocs, error) {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	approvals := []domain.ApprovalRecord{}
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("approved_at ASC").Find(&approvals).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list approval records", Err: err}
	}
	now := s.now()
	return &ApprovalDocs{
		DocumentID:    fmt.Sprintf("APPR-%s-%s", p.ID, now.Format(idTimeLayout)),
		ProjectID:     p.ID,
		ProjectName:   p.Name,
		Status:        p.Status,
		ApprovalCount: len(approvals),
		Approvals:     approvals,
		GeneratedAt:   now,
	}, nil
}

type ProjectStatus struct {
	Project              domain.Project             `json:"project"`
	Lane                 string                     `json:"workflow_lane"`
	AvailableTransitions []domain.Status            `json:"available_transitions"`
	TransitionsByRole    map[string][]domain.Status `json:"transitions_by_role"`
	Counts               map[string]int64           `json:"counts"`
}

// ProjectStatus returns the project with its lane, what role may do next and row counts.
// AvailableTransitions is for the given role; TransitionsByRole covers every role.
func (s *Service) ProjectStatus(ctx context.Context, projectID uuid.UUID, role string) (*ProjectStatus, error) {
	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ps := &ProjectStatus{
		Project:              p,
		Lane:                 p.Status.Lane(),
		AvailableTransitions: []domain.Status{},
		TransitionsByRole:    map[string][]domain.Status{},
		Counts:               map[string]int64{},
	}
	if s.Graph != nil {
		ps.AvailableTransitions = s.Graph.AvailableTransitions(p.Status, role)
		for _, r := range constants.ValidRoles {
			ps.TransitionsByRole[r] = s.Graph.AvailableTransitions(p.Status, r)
		}
	}
	counted := map[string]interface{}{
		"activity_records": &domain.ActivityRecord{},
		"calculations":     &domain.Calculation{},
		"reviews":          &domain.ReviewDecision{},
		"evidence":         &domain.Evidence{},
	}
	for name, model := range counted {
		if ps.Counts[name], err = s.count(ctx, model, projectID); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

// ScopeShare returns each scope's share of the total as a percentage with two decimals.
func ScopeShare(t Totals) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{"scope1": decimal.Zero, "scope2": decimal.Zero, "scope3": decimal.Zero}
	if !t.Total.IsPositive() {
		return out
	}
	hundred := decimal.NewFromInt(100)
	out["scope1"] = t.Scope1.Div(t.Total).Mul(hundred).Round(2)
	out["scope2"] = t.Scope2.Div(t.Total).Mul(hundred).Round(2)
	out["scope3"] = t.Scope3.Div(t.Total).Mul(hundred).Round(2)
	return out
}
