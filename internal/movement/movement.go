// Package movement converts an agent's intents (navigation goal, stop
// orders, seating) into a bounded per-tick displacement. Concrete policies
// differ only in the velocity they ask for.
package movement

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/navigation"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/world"
)

const (
	// MaxSpeedFactor caps the current velocity relative to desired speed.
	MaxSpeedFactor = 1.5
	// ChairReach is how close a chair must be to be claimed.
	ChairReach = 1.0
	// MaxTickMillis is the longest tick a displacement is computed for.
	MaxTickMillis = 1000
	// Indefinite is the stop duration that never counts down.
	Indefinite = -1
)

// Construction and command errors.
var (
	ErrInvalidSpeed        = errors.New("desired speed must be a non-negative finite number")
	ErrMissingCollaborator = errors.New("movement: missing collaborator")
	ErrInvalidStop         = errors.New("stop duration must be positive or -1")
)

// Owner is the body a movement module moves.
type Owner interface {
	world.Component
	SetPosition(p geom.Position)
}

// State is what a policy sees when choosing a velocity.
type State struct {
	Position geom.Position
	Velocity geom.Vector // velocity chosen on the previous tick
	Speed    float64     // desired speed, units per second
	Goal     geom.Position
	HasGoal  bool
	Elapsed  float64 // seconds of simulated time seen by this module
}

// Policy chooses a desired velocity in units per second.
type Policy interface {
	Name() string
	Velocity(s State, dt float64) geom.Vector
}

// Module is a per-agent kinematic planner.
type Module struct {
	owner  Owner
	nav    *navigation.Module
	policy Policy
	speed  float64

	velocity   geom.Vector
	stopMillis int64 // 0 moving, >0 countdown, Indefinite halted
	seat       *world.Chair
	elapsed    float64
}

// New creates a movement module. speed is the desired speed in units per
// second and must be non-negative.
func New(owner Owner, nav *navigation.Module, policy Policy, speed float64) (*Module, error) {
	if owner == nil || nav == nil || policy == nil {
		return nil, ErrMissingCollaborator
	}
	if !(speed >= 0) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("movement: %w: %v", ErrInvalidSpeed, speed)
	}
	return &Module{owner: owner, nav: nav, policy: policy, speed: speed}, nil
}

// Speed returns the desired speed.
func (m *Module) Speed() float64 { return m.speed }

// Velocity returns the velocity chosen on the last tick.
func (m *Module) Velocity() geom.Vector { return m.velocity }

// Policy returns the displacement policy.
func (m *Module) Policy() Policy { return m.policy }

// Navigation returns the navigation module movement reads goals from.
func (m *Module) Navigation() *navigation.Module { return m.nav }

// Displacement advances the module by one tick and returns how far the
// owner should move. While stopped it returns Zero and counts the stop
// order down by tickMillis, clamped at zero. Velocity is capped at
// MaxSpeedFactor × speed and travel covers at most MaxTickMillis.
func (m *Module) Displacement(tickMillis int) geom.Vector {
	if tickMillis <= 0 {
		return geom.Zero
	}
	dt := float64(min(tickMillis, MaxTickMillis)) / 1000
	m.elapsed += dt

	if m.stopMillis != 0 {
		if m.stopMillis > 0 {
			m.stopMillis = max(0, m.stopMillis-int64(tickMillis))
		}
		m.velocity = geom.Zero
		return geom.Zero
	}

	goal, ok := m.nav.Goal()
	v := m.policy.Velocity(State{
		Position: m.owner.Position(),
		Velocity: m.velocity,
		Speed:    m.speed,
		Goal:     goal,
		HasGoal:  ok,
		Elapsed:  m.elapsed,
	}, dt)
	if !v.Valid() {
		v = geom.Zero
	}
	m.velocity = v.ClampLen(MaxSpeedFactor * m.speed)
	return m.velocity.Scale(dt)
}

// Stop orders the owner to halt for seconds, or indefinitely for -1.
// A new stop order replaces the previous one, except that a seated owner
// stays halted until it stands up. Durations round up to the next
// millisecond, so a stop never ends a tick early.
func (m *Module) Stop(seconds float64) error {
	switch {
	case seconds == Indefinite:
		m.stopMillis = Indefinite
	case seconds > 0 && !math.IsInf(seconds, 0):
		if m.Seat() != nil {
			m.stopMillis = Indefinite
			break
		}
		m.stopMillis = stopMillis(seconds)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidStop, seconds)
	}
	m.velocity = geom.Zero
	return nil
}

// stopMillis converts positive seconds to whole milliseconds, rounding up.
// Products within a nanosecond of a whole millisecond count as that
// millisecond, absorbing float noise such as 0.3 × 1000.
func stopMillis(seconds float64) int64 {
	return max(1, int64(math.Ceil(seconds*1000-1e-6)))
}

// Resume cancels any stop order, standing up first if seated.
func (m *Module) Resume() {
	m.StandUp()
	m.stopMillis = 0
}

// Stopped reports whether a stop order is active.
func (m *Module) Stopped() bool { return m.stopMillis != 0 }

// StopRemaining returns the remaining stop time in seconds, -1 when
// indefinite, 0 when moving.
func (m *Module) StopRemaining() float64 {
	if m.stopMillis == Indefinite {
		return Indefinite
	}
	return float64(m.stopMillis) / 1000
}

// SitDown claims the first unoccupied chair observed within ChairReach,
// moves the owner onto it and halts indefinitely. It reports whether the
// owner is seated afterwards.
func (m *Module) SitDown(obs *observation.Module) bool {
	if m.seat != nil && !m.seat.Destroyed() {
		return true
	}
	m.seat = nil
	chairs, err := observation.ObserveAs[*world.Chair](obs, world.TagChair)
	if err != nil {
		return false
	}
	pos := m.owner.Position()
	for _, c := range chairs {
		if c.Occupied() || c.DistanceTo(pos) > ChairReach {
			continue
		}
		if !c.Claim(m.owner) {
			continue
		}
		m.seat = c
		m.owner.SetPosition(c.Position())
		m.stopMillis = Indefinite
		m.velocity = geom.Zero
		return true
	}
	return false
}

// StandUp releases the chair, if any, and lifts the seating stop order.
func (m *Module) StandUp() {
	if m.seat == nil {
		return
	}
	m.seat.Release(m.owner)
	m.seat = nil
	m.stopMillis = 0
}

// Seat returns the claimed chair, or nil.
func (m *Module) Seat() *world.Chair {
	if m.seat != nil && m.seat.Destroyed() {
		return nil
	}
	return m.seat
}
