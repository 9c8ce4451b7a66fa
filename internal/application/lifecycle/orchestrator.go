// Package lifecycle implements the per-lane use cases of a GHG reporting project:
// data collection (L1), transformation (L2), verification (L3) and final review (L4).
// It never writes project status itself; every status change goes through the workflow machine.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTolerance is the allowed difference, in kg, between a stored and a recomputed emission.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Invalidator drops cached read models for a project after it changes.
type Invalidator interface {
	Invalidate(ctx context.Context, projectID uuid.UUID)
}

type Config struct {
	DB        *gorm.DB
	Machine   *workflow.Machine
	Tolerance decimal.Decimal
	Cache     Invalidator
	Now       func() time.Time
}

type Orchestrator struct {
	db        *gorm.DB
	machine   *workflow.Machine
	tolerance decimal.Decimal
	cache     Invalidator
	now       func() time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.DB == nil || cfg.Machine == nil {
		return nil, errors.New("lifecycle: DB and Machine are required")
	}
	o := &Orchestrator{
		db:        cfg.DB,
		machine:   cfg.Machine,
		tolerance: cfg.Tolerance,
		cache:     cfg.Cache,
		now:       cfg.Now,
	}
	if !o.tolerance.IsPositive() {
		o.tolerance = DefaultTolerance
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Tolerance returns the calculation accuracy threshold in kg.
func (o *Orchestrator) Tolerance() decimal.Decimal {
	return o.tolerance
}

func authorize(actor domain.Actor, permission string) error {
	if constants.AllowedRole(permission, actor.Role) {
		return nil
	}
	return &domain.PermissionError{Permission: permission, Role: actor.Role}
}

func loadProject(tx *gorm.DB, projectID uuid.UUID) (domain.Project, error) {
	var p domain.Project
	err := tx.Where("id = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, &domain.NotFoundError{Entity: "project", ID: projectID.String()}
	}
	if err != nil {
		return p, &domain.PersistenceError{Op: "load project", Err: err}
	}
	return p, nil
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockProject loads the project row FOR UPDATE. Every mutating use case takes this lock
// first, so writes to one project serialize behind each other and behind transitions.
func lockProject(tx *gorm.DB, projectID uuid.UUID) (domain.Project, error) {
	return loadProject(forUpdate(tx), projectID)
}

func requireStatus(p domain.Project, operation string, allowed ...domain.Status) error {
	for _, s := range allowed {
		if p.Status == s {
			return nil
		}
	}
	return &domain.InvalidStateError{Operation: operation, Status: p.Status, Allowed: allowed}
}

// inTx runs fn in one transaction and announces the transition it produced, if any, after commit.
func (o *Orchestrator) inTx(ctx context.Context, op string, projectID uuid.UUID, fn func(tx *gorm.DB) (*workflow.Applied, error)) (*workflow.Applied, error) {
	var applied *workflow.Applied
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := fn(tx)
		if err != nil {
			return err
		}
		applied = a
		return nil
	})
	if err != nil {
		return nil, domain.Persistence(op, err)
	}
	o.machine.Announce(applied)
	o.invalidate(ctx, projectID)
	return applied, nil
}

func (o *Orchestrator) invalidate(ctx context.Context, projectID uuid.UUID) {
	if o.cache == nil {
		return
	}
	o.cache.Invalidate(ctx, projectID)
}

func (o *Orchestrator) logEvent(event string, projectID uuid.UUID, actor domain.Actor) {
	log.Info().
		Str("event", event).
		Str("project_id", projectID.String()).
		Str("actor_id", actor.ID.String()).
		Str("actor_role", actor.Role).
		Msg("lifecycle")
}
