package notifications

import (
	"context"
	"strings"

	"ghg-workflow-backend/internal/application/emails"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailNotifier mails the people who act next: the calculation team on submission,
// reviewers when results are ready and the project creator on rejection or lock.
// Transitions without a template are ignored.
type EmailNotifier struct {
	DB      *gorm.DB
	Sender  emails.Sender
	BaseURL string
}

// recipientRoles routes a transition to every active user holding the role.
var recipientRoles = map[string]string{
	"DRAFT_to_SUBMITTED":                  constants.RoleCalculation,
	"UNDER_CALCULATION_to_PENDING_REVIEW": constants.RoleReviewer,
}

// creatorTransitions go to the project's creator.
var creatorTransitions = map[string]bool{
	"PENDING_REVIEW_to_REJECTED": true,
	"APPROVED_to_LOCKED":         true,
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if e.Sender == nil || !emails.HasTemplate(n.TransitionKey) {
		return nil
	}
	to, err := e.recipients(ctx, n)
	if err != nil || len(to) == 0 {
		return err
	}
	msg := emails.TransitionMessage{
		TransitionKey: n.TransitionKey,
		ProjectID:     n.ProjectID.String(),
		ProjectName:   n.ProjectName,
		Status:        string(n.To),
		Comments:      n.Comments,
		ReasonCode:    n.ReasonCode,
	}
	if e.BaseURL != "" {
		msg.ProjectURL = strings.TrimRight(e.BaseURL, "/") + "/projects/" + n.ProjectID.String()
	}
	return e.Sender.SendTransition(ctx, to, msg)
}

func (e *EmailNotifier) recipients(ctx context.Context, n Notification) ([]emails.Recipient, error) {
	var users []domain.User
	q := e.DB.WithContext(ctx).Where("is_active = ?", true)
	switch {
	case recipientRoles[n.TransitionKey] != "":
		q = q.Where("role = ?", recipientRoles[n.TransitionKey])
	case creatorTransitions[n.TransitionKey] && n.CreatedBy != uuid.Nil:
		q = q.Where("user_id = ?", n.CreatedBy)
	default:
		return nil, nil
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]emails.Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, emails.Recipient{Email: u.Email, Name: u.Fullname})
	}
	return out, nil
}
