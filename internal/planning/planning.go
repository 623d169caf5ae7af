// Package planning turns an agent's goals into an ordered activity plan and
// keeps best-effort snapshots of what the agent believes about the world.
package planning

import (
	"cmp"
	"errors"
	"slices"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/goal"
)

// ErrMissingCollaborator is returned when a required collaborator is nil.
var ErrMissingCollaborator = errors.New("planning: missing collaborator")

// Policy orders the activities of unresolved goals.
type Policy interface {
	Name() string
	Order(goals []*goal.Goal) []activity.Activity
}

// InOrder plans goals in the order they were added.
type InOrder struct{}

func (InOrder) Name() string { return "in-order" }

func (InOrder) Order(goals []*goal.Goal) []activity.Activity {
	out := make([]activity.Activity, 0, len(goals))
	for _, g := range goals {
		out = append(out, g.Activity())
	}
	return out
}

// EarliestDeadline plans the goal due soonest first. Goals without a
// deadline follow, in insertion order.
type EarliestDeadline struct{}

func (EarliestDeadline) Name() string { return "earliest-deadline" }

func (EarliestDeadline) Order(goals []*goal.Goal) []activity.Activity {
	sorted := slices.Clone(goals)
	slices.SortStableFunc(sorted, func(a, b *goal.Goal) int {
		da, oka := a.Deadline()
		db, okb := b.Deadline()
		switch {
		case oka && okb:
			return cmp.Compare(da, db)
		case oka:
			return -1
		case okb:
			return 1
		}
		return 0
	})
	return InOrder{}.Order(sorted)
}

// Ranked plans activities whose names appear in the ranking first, in
// ranking order, then everything else in insertion order. A scenario's
// fixed sequence such as check-in, checkpoint, gate is a ranking.
type Ranked struct {
	ranks map[string]int
}

// NewRanked returns a ranking over activity names.
func NewRanked(names ...string) Ranked {
	r := Ranked{ranks: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := r.ranks[n]; !dup {
			r.ranks[n] = i
		}
	}
	return r
}

func (Ranked) Name() string { return "ranked" }

func (r Ranked) Order(goals []*goal.Goal) []activity.Activity {
	rank := func(g *goal.Goal) int {
		if i, ok := r.ranks[g.Activity().Name()]; ok {
			return i
		}
		return len(r.ranks)
	}
	sorted := slices.Clone(goals)
	slices.SortStableFunc(sorted, func(a, b *goal.Goal) int {
		return rank(a) - rank(b)
	})
	return InOrder{}.Order(sorted)
}

// Module caches the plan and rebuilds it whenever the set of unresolved
// goals changes.
type Module struct {
	goals  *goal.Module
	policy Policy
	basis  []*goal.Goal
	plan   []activity.Activity
	built  bool
}

// New creates a planning module over goals.
func New(goals *goal.Module, policy Policy) (*Module, error) {
	if goals == nil || policy == nil {
		return nil, ErrMissingCollaborator
	}
	return &Module{goals: goals, policy: policy}, nil
}

// Policy returns the sequencing policy.
func (m *Module) Policy() Policy { return m.policy }

// Update rebuilds the plan if a goal resolved or was added since the last
// build.
func (m *Module) Update() {
	open := m.goals.InProgress()
	if m.built && slices.Equal(open, m.basis) {
		return
	}
	m.basis = open
	m.plan = m.policy.Order(open)
	m.built = true
}

// Next returns the plan head, dropping finished activities first. It is
// nil once the plan is exhausted.
func (m *Module) Next() activity.Activity {
	if !m.built {
		m.Update()
	}
	for len(m.plan) > 0 && m.plan[0].State() == activity.Finished {
		m.plan = m.plan[1:]
	}
	if len(m.plan) == 0 {
		return nil
	}
	return m.plan[0]
}

// Plan returns a copy of the remaining plan.
func (m *Module) Plan() []activity.Activity {
	m.Next()
	return slices.Clone(m.plan)
}
