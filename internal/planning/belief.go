package planning

import (
	"slices"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/goal"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/world"
)

// StatePair is one activity and its state at snapshot time.
type StatePair struct {
	Activity string
	State    activity.State
}

// Belief is an immutable snapshot of what an agent perceives.
type Belief struct {
	Location string // first observed area, "" when none
	States   []StatePair
	Plan     []string
}

// Equal reports whether two beliefs would lead to the same behaviour.
func (b Belief) Equal(o Belief) bool {
	return b.Location == o.Location &&
		slices.Equal(b.States, o.States) &&
		slices.Equal(b.Plan, o.Plan)
}

// BeliefModule materialises beliefs on demand.
type BeliefModule struct {
	obs     *observation.Module
	goals   *goal.Module
	planner *Module

	current Belief
	has     bool
	history []Belief

	// SuppressRepeats keeps the previous belief, and records nothing, when
	// a new snapshot is behaviourally identical to it.
	SuppressRepeats bool
}

// NewBeliefModule creates a belief module.
func NewBeliefModule(obs *observation.Module, goals *goal.Module, planner *Module) (*BeliefModule, error) {
	if obs == nil || goals == nil || planner == nil {
		return nil, ErrMissingCollaborator
	}
	return &BeliefModule{obs: obs, goals: goals, planner: planner}, nil
}

// Update takes a snapshot and returns the current belief.
func (b *BeliefModule) Update() Belief {
	next := Belief{Location: b.location()}
	for _, g := range b.goals.Goals() {
		a := g.Activity()
		next.States = append(next.States, StatePair{Activity: a.Name(), State: a.State()})
	}
	for _, a := range b.planner.Plan() {
		next.Plan = append(next.Plan, a.Name())
	}
	if b.SuppressRepeats && b.has && next.Equal(b.current) {
		return b.current
	}
	b.current, b.has = next, true
	b.history = append(b.history, next)
	return next
}

// location is the first observed area. Overlapping areas are not ranked.
func (b *BeliefModule) location() string {
	areas, err := observation.ObserveAs[*world.Area](b.obs, world.TagArea)
	if err != nil || len(areas) == 0 {
		return ""
	}
	return areas[0].Name()
}

// Current returns the latest belief, if one was taken.
func (b *BeliefModule) Current() (Belief, bool) { return b.current, b.has }

// History returns every recorded belief, oldest first.
func (b *BeliefModule) History() []Belief { return slices.Clone(b.history) }
