// Package scheduler runs periodic maintenance over in-flight projects.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ghg-workflow-backend/internal/application/calculation"
	"ghg-workflow-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultSweepSpec runs the sweep every fifteen minutes (six-field, seconds first).
const DefaultSweepSpec = "0 */15 * * * *"

// Recomputer is the part of the lifecycle orchestrator the sweeper drives.
type Recomputer interface {
	RecomputeTotals(ctx context.Context, projectID uuid.UUID) (*calculation.Totals, error)
}

// TotalsSweeper periodically re-derives totals for projects still under calculation,
// so dashboards reflect calculations entered since the last explicit recompute.
type TotalsSweeper struct {
	db        *gorm.DB
	recompute Recomputer
	spec      string
	timeout   time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

type SweeperConfig struct {
	DB         *gorm.DB
	Recomputer Recomputer
	Spec       string
	Timeout    time.Duration
}

func NewTotalsSweeper(cfg SweeperConfig) (*TotalsSweeper, error) {
	if cfg.DB == nil || cfg.Recomputer == nil {
		return nil, errors.New("scheduler: DB and Recomputer are required")
	}
	spec := cfg.Spec
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid sweep spec %q: %w", spec, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &TotalsSweeper{
		db:        cfg.DB,
		recompute: cfg.Recomputer,
		spec:      spec,
		timeout:   timeout,
		cron:      cron.New(cron.WithSeconds()),
	}, nil
}

// Start registers the sweep and starts the cron loop.
func (s *TotalsSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler: sweeper already running")
	}
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("totals sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.running = true
	log.Info().Str("spec", s.spec).Msg("totals sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *TotalsSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	log.Info().Msg("totals sweeper stopped")
}

// RunOnce recomputes every UNDER_CALCULATION project and returns how many succeeded.
// A project that changed status in the meantime is skipped, not counted as a failure.
func (s *TotalsSweeper) RunOnce(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&domain.Project{}).
		Where("status = ?", domain.StatusUnderCalculation).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, &domain.PersistenceError{Op: "list projects under calculation", Err: err}
	}
	done := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := s.recompute.RecomputeTotals(ctx, id)
		switch domain.Kind(err) {
		case domain.KindUnknown:
			if err != nil {
				errs = append(errs, err)
				continue
			}
			done++
		case domain.KindInvalidState, domain.KindNotFound:
			log.Debug().Str("project_id", id.String()).Msg("totals sweep skipped project")
		default:
			errs = append(errs, fmt.Errorf("project %s: %w", id, err))
		}
	}
	log.Info().Int("projects", len(ids)).Int("recomputed", done).Msg("totals sweep finished")
	return done, errors.Join(errs...)
}
