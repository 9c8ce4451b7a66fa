package emails

import (
	"fmt"
	"strings"
)

// TransitionMessage is the data shown in a workflow email.
type TransitionMessage struct {
	TransitionKey string
	ProjectID     string
	ProjectName   string
	Status        string
	Comments      string
	ReasonCode    string
	ProjectURL    string
}

type transitionTemplate struct {
	subject string
	heading string
	intro   string
	action  string
}

var transitionTemplates = map[string]transitionTemplate{
	"DRAFT_to_SUBMITTED": {
		subject: "Project %s Submitted for Calculation",
		heading: "New Project Ready for Calculation",
		intro:   "Activity data has been collected and passed the quality check. The project is waiting for emission calculations.",
		action:  "Start Calculations",
	},
	"UNDER_CALCULATION_to_PENDING_REVIEW": {
		subject: "Project %s Ready for Review",
		heading: "Calculations Ready for Review",
		intro:   "Emission calculations are complete and validated. Please verify the results.",
		action:  "Review Project",
	},
	"PENDING_REVIEW_to_REJECTED": {
		subject: "Project %s Rejected - Action Required",
		heading: "Project Returned for Corrections",
		intro:   "The reviewer rejected this project. Please address the comments below and resubmit.",
		action:  "Open Project",
	},
	"APPROVED_to_LOCKED": {
		subject: "Project %s Approved and Locked",
		heading: "Project Approved and Locked",
		intro:   "The GHG inventory received final approval and is now locked. No further changes can be made.",
		action:  "View Report",
	},
}

// HasTemplate reports whether a transition sends email.
func HasTemplate(transitionKey string) bool {
	_, ok := transitionTemplates[transitionKey]
	return ok
}

// Render returns the subject and the HTML body (without layout).
func (m TransitionMessage) Render() (string, string, error) {
	tpl, ok := transitionTemplates[m.TransitionKey]
	if !ok {
		return "", "", fmt.Errorf("no email template for transition %s", m.TransitionKey)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n    <h1>%s</h1>\n", tpl.heading)
	fmt.Fprintf(&b, "    <p>%s</p>\n", tpl.intro)
	fmt.Fprintf(&b, "    <p><strong>Project:</strong> %s<br><strong>Status:</strong> %s</p>\n", EscapeHTML(m.ProjectName), EscapeHTML(m.Status))
	if m.ReasonCode != "" {
		fmt.Fprintf(&b, "    <p><strong>Reason code:</strong> %s</p>\n", EscapeHTML(m.ReasonCode))
	}
	if m.Comments != "" {
		fmt.Fprintf(&b, "    <p><strong>Comments:</strong> %s</p>\n", EscapeHTML(m.Comments))
	}
	if m.ProjectURL != "" {
		fmt.Fprintf(&b, "    <center><a href=\"%s\" class=\"ghg-button\">%s</a></center>\n", EscapeHTML(m.ProjectURL), tpl.action)
	}
	return fmt.Sprintf(tpl.subject, m.ProjectID), b.String(), nil
}
