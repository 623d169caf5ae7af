package activity

import (
	"fmt"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/world"
)

// Grantee is implemented by agents that can be called to the front of a
// line.
type Grantee interface {
	GrantFront(line *world.QueueLine) bool
}

// Attendee is implemented by agents that report the activity they queued
// for. See Module.QueuedFor.
type Attendee interface {
	QueuedFor(line *world.QueueLine) Activity
}

// Serve mans a desk and calls line members forward one at a time. A member
// is served once the activity it queued for has started and the service
// time has passed. A counterpart that disappears, or whose plan moves on
// before it reaches the desk, is dropped uncounted.
type Serve struct {
	Base
	desk    *world.Desk
	line    *world.QueueLine
	service int64
	shift   int64

	serving    world.Component
	attending  Activity // what serving queued for, nil if unknown
	servingFor int64
	served     int

	// Reach is how close to the desk the operator must be to start.
	Reach float64
}

// NewServe creates a serve activity at desk for line. serviceSeconds is
// the time spent per member; shiftSeconds ends the shift, 0 never.
func NewServe(desk *world.Desk, line *world.QueueLine, serviceSeconds, shiftSeconds float64) (*Serve, error) {
	if desk == nil || line == nil {
		return nil, fmt.Errorf("serve: %w: desk and line", ErrMissingCollaborator)
	}
	service, err := millis(serviceSeconds)
	if err != nil {
		return nil, fmt.Errorf("serve %q: %w", desk.Name(), err)
	}
	shift, err := millis(shiftSeconds)
	if err != nil {
		return nil, fmt.Errorf("serve %q: %w", desk.Name(), err)
	}
	return &Serve{
		Base:    NewBase("serve:"+desk.Name(), desk.Position()),
		desk:    desk,
		line:    line,
		service: service,
		shift:   shift,
		Reach:   DefaultReach,
	}, nil
}

// Served returns how many members completed service.
func (s *Serve) Served() int { return s.served }

// Serving returns the counterpart being served, or nil.
func (s *Serve) Serving() world.Component { return s.serving }

func (s *Serve) CanStart(int) bool {
	if s.state != NotStarted {
		return false
	}
	if s.desk.Destroyed() {
		s.abandon("desk " + s.desk.Name() + " gone")
		return false
	}
	if !s.near(s.desk.Position(), s.Reach) {
		return false
	}
	h := s.desk.Holder()
	return h == nil || h == s.env.Self
}

func (s *Serve) Start(tickMillis int) {
	if s.state != NotStarted {
		return
	}
	s.Base.Start(tickMillis)
	s.desk.Claim(s.env.Self)
	s.env.Navigation.Clear()
	_ = s.env.Movement.Stop(movement.Indefinite)
}

func (s *Serve) Continue(tickMillis int) {
	if s.state != InProgress {
		return
	}
	s.advance(tickMillis)
	if s.desk.Destroyed() {
		s.logf("desk %s gone", s.desk.Name())
		s.End()
		return
	}
	if s.shift > 0 && s.elapsed >= s.shift {
		s.End()
		return
	}

	if s.serving != nil {
		switch {
		case s.serving.Destroyed():
			s.logf("counterpart left before service ended")
			s.drop()
		case s.line.IndexOf(s.serving) >= 0:
			// Still walking up from the line.
		case !s.arrived():
			if a, ok := s.serving.(Attendee); ok && a.QueuedFor(s.line) != s.attending {
				s.logf("counterpart moved on before reaching the desk")
				s.drop()
			}
		default:
			s.servingFor += int64(tickMillis)
			if s.servingFor >= s.service {
				s.served++
				s.drop()
			}
		}
	}
	if s.serving != nil {
		return
	}
	front := s.line.Front()
	if front == nil {
		return
	}
	if g, ok := front.(Grantee); ok && g.GrantFront(s.line) {
		s.serving = front
		s.servingFor = 0
		if a, ok := front.(Attendee); ok {
			s.attending = a.QueuedFor(s.line)
		}
	}
}

// arrived reports whether the member has started the activity it queued
// for. Members that do not report one count once they leave the line.
func (s *Serve) arrived() bool {
	return s.attending == nil || s.attending.State() != NotStarted
}

func (s *Serve) drop() {
	s.serving = nil
	s.attending = nil
}

func (s *Serve) End() {
	if s.state != InProgress {
		return
	}
	s.desk.Release(s.env.Self)
	s.env.Movement.Resume()
	s.drop()
	s.Base.End()
}

// Interact stays with a counterpart for a while. It ends early, without
// error, if the counterpart is removed from the map, whether or not the
// interaction has started.
type Interact struct {
	Base
	with     world.Component
	duration int64

	// Reach is how close to the counterpart the agent must be to start.
	Reach float64
}

// NewInteract creates an interaction with counterpart lasting
// durationSeconds.
func NewInteract(name string, counterpart world.Component, durationSeconds float64) (*Interact, error) {
	if counterpart == nil {
		return nil, fmt.Errorf("interact %q: %w: counterpart", name, ErrMissingCollaborator)
	}
	d, err := millis(durationSeconds)
	if err != nil {
		return nil, fmt.Errorf("interact %q: %w", name, err)
	}
	return &Interact{Base: NewBase(name, counterpart.Position()), with: counterpart, duration: d, Reach: 1}, nil
}

// Location follows the counterpart.
func (i *Interact) Location() geom.Position { return i.with.Position() }

// Counterpart returns the component interacted with.
func (i *Interact) Counterpart() world.Component { return i.with }

// CanStart reports whether the counterpart is within reach. A counterpart
// removed before the interaction started makes the activity give up.
func (i *Interact) CanStart(int) bool {
	if i.state != NotStarted {
		return false
	}
	if i.with.Destroyed() {
		i.abandon("counterpart gone")
		return false
	}
	return i.near(i.with.Position(), i.Reach)
}

func (i *Interact) Start(tickMillis int) {
	if i.state != NotStarted {
		return
	}
	i.Base.Start(tickMillis)
	i.env.Navigation.Clear()
	_ = i.env.Movement.Stop(movement.Indefinite)
}

func (i *Interact) Continue(tickMillis int) {
	if i.state != InProgress {
		return
	}
	i.advance(tickMillis)
	if i.with.Destroyed() {
		i.logf("counterpart of %s gone", i.name)
		i.End()
		return
	}
	if i.elapsed >= i.duration {
		i.End()
	}
}

func (i *Interact) End() {
	if i.state != InProgress {
		return
	}
	i.env.Movement.Resume()
	i.Base.End()
}
