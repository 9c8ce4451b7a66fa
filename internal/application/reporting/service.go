// Package reporting builds read-only views of a project: dashboards, the GHG report,
// compliance status and the review documents. Nothing here writes to the database.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"ghg-workflow-backend/internal/application/calculation"
	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	cachePrefix     = "reporting:"
)

var Protocols = []string{"GHG Protocol", "ISO 14064-1"}

// Service reads reports. Cache is optional; when set, dashboards and GHG reports are
// cached per project until Invalidate is called or TTL passes.
type Service struct {
	DB    *gorm.DB
	Cache *redis.Client
	TTL   time.Duration
	Graph *workflow.Graph
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultCacheTTL
}

func cacheKey(kind string, projectID uuid.UUID) string {
	return cachePrefix + kind + ":" + projectID.String()
}

var cachedKinds = []string{"dashboard", "ghg-report"}

// Invalidate drops every cached view of a project. Cache errors are logged only.
func (s *Service) Invalidate(ctx context.Context, projectID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	keys := make([]string, 0, len(cachedKinds))
	for _, k := range cachedKinds {
		keys = append(keys, cacheKey(k, projectID))
	}
	if err := s.Cache.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("project_id", projectID.String()).Msg("reporting cache invalidate failed")
	}
}

// cached loads kind for projectID from Redis, or builds and stores it.
func cached[T any](ctx context.Context, s *Service, kind string, projectID uuid.UUID, build func() (*T, error)) (*T, error) {
	key := cacheKey(kind, projectID)
	if s.Cache != nil {
		if raw, err := s.Cache.Get(ctx, key).Bytes(); err == nil {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return &v, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("reporting cache read failed")
		}
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if raw, err := json.Marshal(v); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.ttl()).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("reporting cache write failed")
			}
		}
	}
	return v, nil
}

func (s *Service) loadProject(ctx context.Context, projectID uuid.UUID) (domain.Project, error) {
	var p domain.Project
	err := s.DB.WithContext(ctx).Where("id = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, &domain.NotFoundError{Entity: "project", ID: projectID.String()}
	}
	if err != nil {
		return p, &domain.PersistenceError{Op: "load project", Err: err}
	}
	return p, nil
}

func (s *Service) calculations(ctx context.Context, projectID uuid.UUID) ([]domain.Calculation, error) {
	calcs := []domain.Calculation{}
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("scope ASC, category ASC").Find(&calcs).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list calculations", Err: err}
	}
	return calcs, nil
}

func (s *Service) reviews(ctx context.Context, projectID uuid.UUID) ([]domain.ReviewDecision, error) {
	reviews := []domain.ReviewDecision{}
	if err := s.DB.WithContext(ctx).Where("project_id = ?", projectID).Order("reviewed_at ASC").Find(&reviews).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "list review decisions", Err: err}
	}
	return reviews, nil
}

func (s *Service) count(ctx context.Context, model interface{}, projectID uuid.UUID) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(model).Where("project_id = ?", projectID).Count(&n).Error; err != nil {
		return 0, &domain.PersistenceError{Op: "count", Err: err}
	}
	return n, nil
}

// Totals are the project's stored per-scope totals.
type Totals struct {
	Scope1 decimal.Decimal `json:"scope1"`
	Scope2 decimal.Decimal `json:"scope2"`
	Scope3 decimal.Decimal `json:"scope3"`
	Total  decimal.Decimal `json:"total"`
}

func totalsOf(p domain.Project) Totals {
	return Totals{Scope1: p.TotalScope1, Scope2: p.TotalScope2, Scope3: p.TotalScope3, Total: p.TotalEmissions}
}

type CategoryTotal struct {
	Category       string          `json:"category"`
	EmissionsTCO2e decimal.Decimal `json:"emissions_tco2e"`
	Count          int             `json:"count"`
}

type ScopeBreakdown struct {
	Scope      int             `json:"scope"`
	Total      decimal.Decimal `json:"total"`
	Categories []CategoryTotal `json:"categories"`
}

// breakdown groups calculations by scope and category, in scope order.
func breakdown(calcs []domain.Calculation) []ScopeBreakdown {
	byScope := map[int]map[string]*CategoryTotal{}
	for _, c := range calcs {
		cats, ok := byScope[c.Scope]
		if !ok {
			cats = map[string]*CategoryTotal{}
			byScope[c.Scope] = cats
		}
		ct, ok := cats[c.Category]
		if !ok {
			ct = &CategoryTotal{Category: c.Category}
			cats[c.Category] = ct
		}
		ct.EmissionsTCO2e = ct.EmissionsTCO2e.Add(c.EmissionsTCO2e)
		ct.Count++
	}
	out := make([]ScopeBreakdown, 0, len(byScope))
	for scope, cats := range byScope {
		sb := ScopeBreakdown{Scope: scope, Categories: make([]CategoryTotal, 0, len(cats))}
		for _, ct := range cats {
			ct.EmissionsTCO2e = calculation.RoundPersist(ct.EmissionsTCO2e)
			sb.Total = sb.Total.Add(ct.EmissionsTCO2e)
			sb.Categories = append(sb.Categories, *ct)
		}
		sort.Slice(sb.Categories, func(i, j int) bool { return sb.Categories[i].Category < sb.Categories[j].Category })
		out = append(out, sb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out
}
