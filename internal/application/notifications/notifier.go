// Package notifications delivers best-effort messages about workflow transitions.
// Nothing here can fail a transition; callers log and drop errors.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ghg-workflow-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notification describes a committed transition.
type Notification struct {
	ProjectID     uuid.UUID     `json:"project_id"`
	ProjectName   string        `json:"project_name"`
	TransitionKey string        `json:"transition"`
	From          domain.Status `json:"from_status"`
	To            domain.Status `json:"to_status"`
	ActorID       uuid.UUID     `json:"actor_id"`
	Comments      string        `json:"comments,omitempty"`
	ReasonCode    string        `json:"reason_code,omitempty"`
	CreatedBy     uuid.UUID     `json:"created_by"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// Notifier accepts a notification. Delivery is unconfirmed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TransitionKey is the "FROM_to_TO" identifier of a transition.
func TransitionKey(from, to domain.Status) string {
	return fmt.Sprintf("%s_to_%s", from, to)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	log.Info().
		Str("project_id", n.ProjectID.String()).
		Str("transition", n.TransitionKey).
		Str("actor_id", n.ActorID.String()).
		Str("reason_code", n.ReasonCode).
		Msg("workflow notification")
	return nil
}

// Fanout sends to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range f {
		if nt == nil {
			continue
		}
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
