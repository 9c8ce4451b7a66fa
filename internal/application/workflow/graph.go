package workflow

import (
	"fmt"

	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"
)

// Edge is a legal status change and the roles allowed to take it.
type Edge struct {
	From  domain.Status
	To    domain.Status
	Roles []string
}

// DefaultEdges is the project lifecycle. LOCKED has no outgoing edge.
var DefaultEdges = []Edge{
	{From: domain.StatusDraft, To: domain.StatusSubmitted, Roles: []string{constants.RoleDataEntry}},
	{From: domain.StatusSubmitted, To: domain.StatusUnderCalculation, Roles: []string{constants.RoleCalculation}},
	{From: domain.StatusSubmitted, To: domain.StatusDraft, Roles: []string{constants.RoleDataEntry, constants.RoleCalculation}},
	{From: domain.StatusUnderCalculation, To: domain.StatusPendingReview, Roles: []string{constants.RoleCalculation}},
	{From: domain.StatusUnderCalculation, To: domain.StatusSubmitted, Roles: []string{constants.RoleCalculation}},
	{From: domain.StatusPendingReview, To: domain.StatusApproved, Roles: []string{constants.RoleReviewer}},
	{From: domain.StatusPendingReview, To: domain.StatusRejected, Roles: []string{constants.RoleReviewer}},
	{From: domain.StatusRejected, To: domain.StatusSubmitted, Roles: []string{constants.RoleDataEntry}},
	{From: domain.StatusApproved, To: domain.StatusLocked, Roles: []string{constants.RoleApprover}},
}

// Graph is an immutable, validated transition graph.
type Graph struct {
	edges map[domain.Status][]Edge
}

// NewGraph validates edges and builds a Graph. Every endpoint must be a known status,
// every edge needs at least one known role, edges may not repeat and LOCKED must stay terminal.
func NewGraph(edges []Edge) (*Graph, error) {
	g := &Graph{edges: make(map[domain.Status][]Edge)}
	seen := make(map[[2]domain.Status]bool)
	for _, e := range edges {
		if !e.From.Valid() || !e.To.Valid() {
			return nil, fmt.Errorf("workflow: edge %s -> %s uses an unknown status", e.From, e.To)
		}
		if e.From == domain.StatusLocked {
			return nil, fmt.Errorf("workflow: %s is terminal and cannot have outgoing edges", domain.StatusLocked)
		}
		if len(e.Roles) == 0 {
			return nil, fmt.Errorf("workflow: edge %s -> %s has no authorized role", e.From, e.To)
		}
		for _, r := range e.Roles {
			if !constants.IsValidRole(r) {
				return nil, fmt.Errorf("workflow: edge %s -> %s names unknown role %q", e.From, e.To, r)
			}
		}
		key := [2]domain.Status{e.From, e.To}
		if seen[key] {
			return nil, fmt.Errorf("workflow: duplicate edge %s -> %s", e.From, e.To)
		}
		seen[key] = true
		roles := append([]string(nil), e.Roles...)
		g.edges[e.From] = append(g.edges[e.From], Edge{From: e.From, To: e.To, Roles: roles})
	}
	return g, nil
}

// MustDefaultGraph returns the graph built from DefaultEdges.
func MustDefaultGraph() *Graph {
	g, err := NewGraph(DefaultEdges)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) edge(from, to domain.Status) (Edge, bool) {
	for _, e := range g.edges[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// CanTransition reports whether role may move a project from current to target, and if not, why.
func (g *Graph) CanTransition(current, target domain.Status, role string) (bool, domain.Denial) {
	e, ok := g.edge(current, target)
	if !ok {
		return false, domain.DenialNoSuchEdge
	}
	for _, r := range e.Roles {
		if r == role {
			return true, domain.DenialNone
		}
	}
	return false, domain.DenialRoleNotPermitted
}

// Check is CanTransition returning a typed error.
func (g *Graph) Check(current, target domain.Status, role string) error {
	ok, denial := g.CanTransition(current, target, role)
	if ok {
		return nil
	}
	e := &domain.InvalidTransitionError{From: current, To: target, Role: role, Denial: denial}
	if denial == domain.DenialRoleNotPermitted {
		e.RequiredRoles = g.RequiredRoles(current, target)
	}
	return e
}

// RequiredRoles lists the roles allowed on an edge, or nil if there is no such edge.
func (g *Graph) RequiredRoles(from, to domain.Status) []string {
	e, ok := g.edge(from, to)
	if !ok {
		return nil
	}
	return append([]string(nil), e.Roles...)
}

// Targets lists every status reachable in one step from status, regardless of role.
func (g *Graph) Targets(status domain.Status) []domain.Status {
	out := make([]domain.Status, 0, len(g.edges[status]))
	for _, e := range g.edges[status] {
		out = append(out, e.To)
	}
	return out
}

// AvailableTransitions lists the targets role may move a project to from status.
func (g *Graph) AvailableTransitions(status domain.Status, role string) []domain.Status {
	out := []domain.Status{}
	for _, e := range g.edges[status] {
		if ok, _ := g.CanTransition(status, e.To, role); ok {
			out = append(out, e.To)
		}
	}
	return out
}
