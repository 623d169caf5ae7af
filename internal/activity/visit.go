package activity

import (
	"fmt"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/world"
)

// Visit reaches a location, optionally through a queue, and stays there
// for a dwell time.
type Visit struct {
	Base
	dwell int64
	queue *Queue

	// Reach is how close to the location the agent must be to start.
	Reach float64
}

// NewVisit creates a visit to location lasting dwellSeconds once there.
func NewVisit(name string, location geom.Position, dwellSeconds float64) (*Visit, error) {
	dwell, err := millis(dwellSeconds)
	if err != nil {
		return nil, fmt.Errorf("visit %q: %w", name, err)
	}
	if !location.Valid() {
		return nil, fmt.Errorf("visit %q: %w", name, world.ErrInvalidPosition)
	}
	return &Visit{Base: NewBase(name, location), dwell: dwell, Reach: DefaultReach}, nil
}

// Through makes the visit start only after front of line is granted on q.
func (v *Visit) Through(q *Queue) *Visit {
	v.queue = q
	return v
}

// Queue returns the queue the visit goes through, or nil.
func (v *Visit) Queue() *Queue { return v.queue }

// Dwell returns the dwell time in milliseconds.
func (v *Visit) Dwell() int64 { return v.dwell }

func (v *Visit) Init(env Env) error {
	if err := v.Base.Init(env); err != nil {
		return err
	}
	if v.queue != nil {
		return v.queue.Init(env)
	}
	return nil
}

func (v *Visit) CanStart(int) bool {
	if v.state != NotStarted || !v.near(v.location, v.Reach) {
		return false
	}
	return v.queue == nil || v.queue.AtFront()
}

func (v *Visit) Start(tickMillis int) {
	if v.state != NotStarted {
		return
	}
	v.Base.Start(tickMillis)
	v.env.Navigation.Clear()
	if v.dwell > 0 {
		_ = v.env.Movement.Stop(float64(v.dwell) / 1000)
	}
}

func (v *Visit) Continue(tickMillis int) {
	if v.state != InProgress {
		return
	}
	v.advance(tickMillis)
	if v.elapsed >= v.dwell {
		v.End()
	}
}

func (v *Visit) End() {
	if v.state != InProgress {
		return
	}
	v.env.Movement.Resume()
	v.Base.End()
}

// Search extends the stay by seconds while the visit is in progress.
func (v *Visit) Search(seconds float64) bool {
	extra, err := millis(seconds)
	if err != nil || v.state != InProgress {
		return false
	}
	v.dwell += extra
	_ = v.env.Movement.Stop(float64(v.dwell-v.elapsed) / 1000)
	v.logf("searching %s for %.1fs", v.name, seconds)
	return true
}

// Sit finds a free chair near a location and sits for a while. If every
// chair is taken the agent stands and waits there instead.
type Sit struct {
	Base
	dwell int64

	// Reach is how close to the location the agent must be to start.
	Reach float64
}

// NewSit creates a sit activity near location lasting dwellSeconds.
func NewSit(name string, location geom.Position, dwellSeconds float64) (*Sit, error) {
	dwell, err := millis(dwellSeconds)
	if err != nil {
		return nil, fmt.Errorf("sit %q: %w", name, err)
	}
	if !location.Valid() {
		return nil, fmt.Errorf("sit %q: %w", name, world.ErrInvalidPosition)
	}
	return &Sit{Base: NewBase(name, location), dwell: dwell, Reach: DefaultReach}, nil
}

func (s *Sit) CanStart(int) bool {
	return s.state == NotStarted && s.near(s.location, s.Reach)
}

func (s *Sit) Start(tickMillis int) {
	if s.state != NotStarted {
		return
	}
	s.Base.Start(tickMillis)
	s.env.Navigation.Clear()
	s.sit()
}

func (s *Sit) Continue(tickMillis int) {
	if s.state != InProgress {
		return
	}
	s.advance(tickMillis)
	if s.elapsed >= s.dwell {
		s.End()
		return
	}
	if s.env.Movement.Seat() == nil {
		s.sit()
	}
}

func (s *Sit) sit() {
	if s.env.Movement.SitDown(s.env.Observation) {
		s.logf("sat down for %s", s.name)
		return
	}
	if !s.env.Movement.Stopped() {
		_ = s.env.Movement.Stop(float64(max(s.dwell-s.elapsed, 1)) / 1000)
	}
}

func (s *Sit) End() {
	if s.state != InProgress {
		return
	}
	s.env.Movement.Resume()
	s.Base.End()
}
