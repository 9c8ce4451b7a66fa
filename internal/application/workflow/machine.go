// Package workflow owns project status. It is the only writer of Projects.status,
// the milestone timestamps, Projects.version and AuditEntries.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"ghg-workflow-backend/internal/application/notifications"
	"ghg-workflow-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const defaultNotifyTimeout = 5 * time.Second

// Config wires a Machine. Graph defaults to DefaultEdges, Now to time.Now.
type Config struct {
	DB            *gorm.DB
	Graph         *Graph
	Notifier      notifications.Notifier
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// Machine executes transitions atomically and announces them after commit.
type Machine struct {
	db       *gorm.DB
	graph    *Graph
	notifier notifications.Notifier
	timeout  time.Duration
	now      func() time.Time
	inflight sync.WaitGroup
}

func New(cfg Config) (*Machine, error) {
	if cfg.DB == nil {
		return nil, errors.New("workflow: DB is required")
	}
	m := &Machine{
		db:       cfg.DB,
		graph:    cfg.Graph,
		notifier: cfg.Notifier,
		timeout:  cfg.NotifyTimeout,
		now:      cfg.Now,
	}
	if m.graph == nil {
		g, err := NewGraph(DefaultEdges)
		if err != nil {
			return nil, err
		}
		m.graph = g
	}
	if m.timeout <= 0 {
		m.timeout = defaultNotifyTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func (m *Machine) Graph() *Graph {
	return m.graph
}

// Request is a requested status change on behalf of an actor.
type Request struct {
	Target     domain.Status
	Actor      domain.Actor
	Comments   string
	ReasonCode *string
}

// Applied is a transition written inside a transaction and not yet announced.
type Applied struct {
	Project domain.Project
	Entry   domain.AuditEntry
}

// Transition runs Apply in its own transaction and announces the result after commit.
// project is the caller's current view; its Version is the optimistic lock.
func (m *Machine) Transition(ctx context.Context, project domain.Project, req Request) (*Applied, error) {
	if err := m.graph.Check(project.Status, req.Target, req.Actor.Role); err != nil {
		return nil, err
	}
	var applied *Applied
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := m.Apply(tx, project, req)
		if err != nil {
			return err
		}
		applied = a
		return nil
	})
	if err != nil {
		return nil, domain.Persistence("transition", err)
	}
	m.Announce(applied)
	return applied, nil
}

// Apply validates and writes one transition using tx: a version-checked update of status,
// milestone timestamp and version, then one audit row. The caller owns the transaction
// and must call Announce after it commits.
func (m *Machine) Apply(tx *gorm.DB, project domain.Project, req Request) (*Applied, error) {
	from := project.Status
	if err := m.graph.Check(from, req.Target, req.Actor.Role); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	updates := map[string]interface{}{
		"status":     req.Target,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	stampMilestone(req.Target, now, updates, &project)

	res := tx.Model(&domain.Project{}).
		Where("id = ? AND version = ? AND status = ?", project.ID, project.Version, from).
		Updates(updates)
	if res.Error != nil {
		return nil, &domain.PersistenceError{Op: "update project status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&domain.Project{}).Where("id = ?", project.ID).Count(&n).Error; err != nil {
			return nil, &domain.PersistenceError{Op: "load project", Err: err}
		}
		if n == 0 {
			return nil, &domain.NotFoundError{Entity: "project", ID: project.ID.String()}
		}
		return nil, &domain.ConflictError{Entity: "project", ID: project.ID.String()}
	}

	entry := domain.AuditEntry{
		ProjectID:  project.ID,
		Action:     string(req.Target),
		FromStatus: from,
		ToStatus:   req.Target,
		ActorID:    req.Actor.ID,
		ActorRole:  req.Actor.Role,
		Comments:   req.Comments,
		ReasonCode: req.ReasonCode,
		CreatedAt:  now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, &domain.PersistenceError{Op: "append audit entry", Err: err}
	}

	project.Status = req.Target
	project.Version++
	project.UpdatedAt = now
	return &Applied{Project: project, Entry: entry}, nil
}

func stampMilestone(target domain.Status, now time.Time, updates map[string]interface{}, p *domain.Project) {
	t := now
	switch target {
	case domain.StatusSubmitted:
		updates["submitted_at"] = now
		p.SubmittedAt = &t
	case domain.StatusPendingReview:
		updates["calculated_at"] = now
		p.CalculatedAt = &t
	case domain.StatusApproved:
		updates["reviewed_at"] = now
		updates["approved_at"] = now
		p.ReviewedAt = &t
		p.ApprovedAt = &t
	case domain.StatusLocked:
		updates["locked_at"] = now
		p.LockedAt = &t
	}
}

// Announce logs a committed transition and hands it to the notifier in the background.
// Notifier failures and panics are logged and dropped.
func (m *Machine) Announce(a *Applied) {
	if a == nil {
		return
	}
	log.Info().
		Str("project_id", a.Project.ID.String()).
		Str("from", string(a.Entry.FromStatus)).
		Str("to", string(a.Entry.ToStatus)).
		Str("actor_id", a.Entry.ActorID.String()).
		Str("actor_role", a.Entry.ActorRole).
		Msg("project transitioned")
	if m.notifier == nil {
		return
	}
	n := notifications.Notification{
		ProjectID:     a.Project.ID,
		ProjectName:   a.Project.Name,
		TransitionKey: notifications.TransitionKey(a.Entry.FromStatus, a.Entry.ToStatus),
		From:          a.Entry.FromStatus,
		To:            a.Entry.ToStatus,
		ActorID:       a.Entry.ActorID,
		Comments:      a.Entry.Comments,
		CreatedBy:     a.Project.CreatedBy,
		OccurredAt:    a.Entry.CreatedAt,
	}
	if a.Entry.ReasonCode != nil {
		n.ReasonCode = *a.Entry.ReasonCode
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("transition", n.TransitionKey).Msg("notifier panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.notifier.Notify(ctx, n); err != nil {
			log.Warn().Err(err).
				Str("project_id", n.ProjectID.String()).
				Str("transition", n.TransitionKey).
				Msg("notification failed")
		}
	}()
}

// Wait blocks until every in-flight notification has finished.
func (m *Machine) Wait() {
	m.inflight.Wait()
}
