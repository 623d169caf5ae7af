// Package agents composes the per-agent modules into humans with a fixed
// three-layer update: strategic (goals, plan, belief), tactical (activity,
// navigation) and operational (movement, observation, communication).
package agents

import (
	"github.com/google/uuid"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/communication"
	"github.com/talgya/crowdsim/internal/goal"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/navigation"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/planning"
	"github.com/talgya/crowdsim/internal/world"
)

// Strategic decides what the agent wants.
type Strategic struct {
	Goals   *goal.Module
	Planner *planning.Module
	Beliefs *planning.BeliefModule
}

// Update advances goals, then the plan, then the belief snapshot.
func (s *Strategic) Update(tickMillis int) {
	s.Goals.Update(tickMillis)
	s.Planner.Update()
	s.Beliefs.Update()
}

// Tactical decides what the agent does next and where it heads.
type Tactical struct {
	Activities *activity.Module
	Navigation *navigation.Module
}

// Update runs the activity scheduler, then settles reached goals.
func (t *Tactical) Update(tickMillis int) {
	t.Activities.Update(tickMillis)
	t.Navigation.Update()
}

// Operational moves the body and carries its senses and inbox.
type Operational struct {
	Movement      *movement.Module
	Observation   *observation.Module
	Communication *communication.Module
}

// Update applies one tick of displacement to body.
func (o *Operational) Update(tickMillis int, body movement.Owner) {
	d := o.Movement.Displacement(tickMillis)
	if d.IsZero() {
		return
	}
	body.SetPosition(body.Position().Add(d))
}

// Human is an autonomous agent on the map.
type Human struct {
	world.Base
	id     uuid.UUID
	name   string
	radius float64

	strategic   *Strategic
	tactical    *Tactical
	operational *Operational

	log          logBuffer
	leaving      bool
	exitWhenDone bool
	age          int64 // milliseconds simulated
}

func (h *Human) Tags() []world.Tag { return []world.Tag{world.TagAgent, world.TagHuman} }

// ID returns the stable identity.
func (h *Human) ID() uuid.UUID { return h.id }

// Name returns the display name.
func (h *Human) Name() string { return h.name }

// Radius returns the body radius.
func (h *Human) Radius() float64 { return h.radius }

// Age returns the simulated time the agent has been updated for, in
// milliseconds.
func (h *Human) Age() int64 { return h.age }

func (h *Human) Strategic() *Strategic { return h.strategic }
func (h *Human) Tactical() *Tactical { return h.tactical }
func (h *Human) Operational() *Operational { return h.operational }

// Update runs the three layers in their fixed order.
func (h *Human) Update(tickMillis int) {
	if h.Destroyed() {
		return
	}
	h.age += int64(tickMillis)
	h.strategic.Update(tickMillis)
	h.tactical.Update(tickMillis)
	h.operational.Update(tickMillis, h)
}

// ShouldRemove reports whether the agent has left, or has nothing left to
// do and was built to exit when done.
func (h *Human) ShouldRemove() bool {
	return h.leaving || (h.exitWhenDone && h.strategic.Goals.Done())
}

// Leave ends whatever the agent is doing and asks to be removed.
func (h *Human) Leave() {
	if h.leaving {
		return
	}
	h.leaving = true
	h.tactical.Activities.Stop()
	h.Log("leaving")
}

// Queuing reports whether the agent is standing in a line.
func (h *Human) Queuing() bool { return h.tactical.Activities.Queuing() }

// GrantFront calls the agent to the front of line if it is queuing there.
func (h *Human) GrantFront(line *world.QueueLine) bool {
	return h.tactical.Activities.GrantFront(line)
}

// QueuedFor returns the current activity if the agent reaches it through
// line, or nil.
func (h *Human) QueuedFor(line *world.QueueLine) activity.Activity {
	return h.tactical.Activities.QueuedFor(line)
}

// Communicate delivers a message to the agent.
func (h *Human) Communicate(cmd communication.Command, payload any) {
	h.operational.Communication.Communicate(cmd, payload)
}

func (h *Human) String() string { return h.name }
