// Package navigation holds an agent's goal positions and whether they have
// been reached. Movement consumes the current goal each tick.
package navigation

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/crowdsim/internal/geom"
)

// DefaultTolerance is the distance at which a goal counts as reached.
const DefaultTolerance = 0.2

// ErrMissingOwner is returned when no owner is supplied.
var ErrMissingOwner = errors.New("navigation: missing owner")

// Locator is anything with a current position.
type Locator interface {
	Position() geom.Position
}

// Module tracks an ordered list of goal positions. The head is the current
// goal; it is dropped once the owner comes within tolerance.
type Module struct {
	owner     Locator
	tolerance float64
	goals     []geom.Position
	reached   bool
	last      geom.Position
}

// New creates a navigation module for owner.
func New(owner Locator, tolerance float64) (*Module, error) {
	if owner == nil {
		return nil, ErrMissingOwner
	}
	if !(tolerance >= 0) || math.IsInf(tolerance, 0) {
		return nil, fmt.Errorf("navigation: invalid tolerance %v", tolerance)
	}
	return &Module{owner: owner, tolerance: tolerance}, nil
}

// SetGoal replaces every pending goal with p.
func (n *Module) SetGoal(p geom.Position) {
	n.goals = append(n.goals[:0], p)
	n.reached = false
}

// AddWaypoint appends p after the pending goals.
func (n *Module) AddWaypoint(p geom.Position) {
	n.goals = append(n.goals, p)
	n.reached = false
}

// Clear drops all goals without marking them reached.
func (n *Module) Clear() {
	n.goals = n.goals[:0]
	n.reached = false
}

// Goal returns the current goal, if any.
func (n *Module) Goal() (geom.Position, bool) {
	if len(n.goals) == 0 {
		return geom.Origin, false
	}
	return n.goals[0], true
}

// Goals returns a copy of the pending goals, current first.
func (n *Module) Goals() []geom.Position {
	return append([]geom.Position(nil), n.goals...)
}

// Reached reports whether the final goal was reached and no new goal was
// set since.
func (n *Module) Reached() bool { return n.reached }

// LastReached returns the most recently reached goal.
func (n *Module) LastReached() geom.Position { return n.last }

// Direction is the unit vector from the owner to the current goal, or Zero.
func (n *Module) Direction() geom.Vector {
	g, ok := n.Goal()
	if !ok {
		return geom.Zero
	}
	return n.owner.Position().To(g).Normalize()
}

// Remaining is the distance to the current goal, or 0 without one.
func (n *Module) Remaining() float64 {
	g, ok := n.Goal()
	if !ok {
		return 0
	}
	return n.owner.Position().Distance(g)
}

// Update pops every goal the owner is already within tolerance of.
func (n *Module) Update() {
	pos := n.owner.Position()
	for len(n.goals) > 0 && pos.Distance(n.goals[0]) <= n.tolerance {
		n.last = n.goals[0]
		n.goals = n.goals[1:]
		if len(n.goals) == 0 {
			n.reached = true
		}
	}
}
