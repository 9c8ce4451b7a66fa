package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an error for callers that map it to a transport outcome.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindInvalidState      ErrorKind = "invalid_state"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindPermission        ErrorKind = "permission"
	KindConflict          ErrorKind = "conflict"
	KindPersistence       ErrorKind = "persistence"
	KindCalculation       ErrorKind = "calculation"
	KindUnknown           ErrorKind = "unknown"
)

// Denial says why a transition was refused.
type Denial string

const (
	DenialNone             Denial = ""
	DenialNoSuchEdge       Denial = "no_such_edge"
	DenialRoleNotPermitted Denial = "role_not_permitted"
)

const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
)

// Issue is a single finding from a quality, validation or compliance check.
type Issue struct {
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Field    string `json:"field,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Message  string `json:"message"`
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError is malformed or out-of-range input, or a failed gate check (Issues set).
type ValidationError struct {
	Field   string
	Rule    string
	Message string
	Issues  []Issue
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Rule)
	}
	return e.Rule
}

// InvalidStateError means the operation is not legal from the project's current status.
type InvalidStateError struct {
	Operation string
	Status    Status
	Allowed   []Status
}

func (e *InvalidStateError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("%s is not allowed while project is %s (allowed: %s)", e.Operation, e.Status, strings.Join(allowed, ", "))
}

// InvalidTransitionError is a refused status change. Denial separates a missing edge
// from a role that may not take an existing edge.
type InvalidTransitionError struct {
	From          Status
	To            Status
	Role          string
	Denial        Denial
	RequiredRoles []string
}

func (e *InvalidTransitionError) Error() string {
	if e.Denial == DenialRoleNotPermitted {
		return fmt.Sprintf("role %s may not move a project from %s to %s (requires %s)", e.Role, e.From, e.To, strings.Join(e.RequiredRoles, " or "))
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// PermissionError is a failed capability check on a non-transition operation.
type PermissionError struct {
	Permission string
	Role       string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %s is not allowed to %s", e.Role, e.Permission)
}

// ConflictError means a concurrent writer changed the row first; the caller should refresh and retry.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// PersistenceError wraps a storage fault. Its message never includes the cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure during %s", e.Op)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type CalculationError struct {
	Field   string
	Message string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Persistence wraps err as a PersistenceError unless it already carries a domain kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindUnknown {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Kind returns the classification of err, or KindUnknown.
func Kind(err error) ErrorKind {
	var (
		nf  *NotFoundError
		ve  *ValidationError
		ise *InvalidStateError
		ite *InvalidTransitionError
		pe  *PermissionError
		ce  *ConflictError
		pse *PersistenceError
		cae *CalculationError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ise):
		return KindInvalidState
	case errors.As(err, &ite):
		return KindInvalidTransition
	case errors.As(err, &pe):
		return KindPermission
	case errors.As(err, &ce):
		return KindConflict
	case errors.As(err, &pse):
		return KindPersistence
	case errors.As(err, &cae):
		return KindCalculation
	}
	return KindUnknown
}
