// Package activity provides resumable behaviour units and the per-agent
// scheduler that decides which one runs each tick.
//
// An activity moves NOT_STARTED → IN_PROGRESS → FINISHED and never back.
// Base enforces the transitions; concrete activities embed it and supply
// CanStart and Continue.
package activity

import (
	"errors"
	"fmt"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/navigation"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/world"
)

// DefaultReach is how close an agent must be to an activity's location
// before it can start.
const DefaultReach = 0.5

// Errors returned by activity constructors and Init.
var (
	ErrMissingCollaborator = errors.New("activity: missing collaborator")
	ErrInvalidDuration     = errors.New("activity: duration must be non-negative")
	ErrAlreadyInitialised  = errors.New("activity: already initialised")
)

// State is an activity's lifecycle state.
type State uint8

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case InProgress:
		return "IN_PROGRESS"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Env is the set of collaborators an activity acts through, bound once at
// Init.
type Env struct {
	Self        world.Component
	Map         *world.Map
	Movement    *movement.Module
	Navigation  *navigation.Module
	Observation *observation.Module
	Log         func(format string, args ...any)
}

func (e Env) validate() error {
	switch {
	case e.Self == nil:
		return fmt.Errorf("%w: self", ErrMissingCollaborator)
	case e.Map == nil:
		return fmt.Errorf("%w: map", ErrMissingCollaborator)
	case e.Movement == nil:
		return fmt.Errorf("%w: movement", ErrMissingCollaborator)
	case e.Navigation == nil:
		return fmt.Errorf("%w: navigation", ErrMissingCollaborator)
	case e.Observation == nil:
		return fmt.Errorf("%w: observation", ErrMissingCollaborator)
	}
	return nil
}

// Activity is a resumable behaviour unit.
type Activity interface {
	Name() string
	// Location is where the activity takes place; the agent is sent there
	// while the activity cannot start.
	Location() geom.Position
	Init(env Env) error
	State() State
	CanStart(tickMillis int) bool
	Start(tickMillis int)
	Continue(tickMillis int)
	// End finishes an in-progress activity early.
	End()
	// GoTo records the intent to head for the activity. It never changes
	// State.
	GoTo()
	GoingTo() bool
}

// Queued is implemented by activities that must be queued for.
type Queued interface {
	Queue() *Queue
}

// Searcher is implemented by activities that react to SEARCH messages.
type Searcher interface {
	Search(seconds float64) bool
}

// Base implements the state machine and bookkeeping shared by activities.
type Base struct {
	name     string
	location geom.Position
	state    State
	goingTo  bool
	elapsed  int64 // milliseconds in progress
	env      Env
	ready    bool
}

// NewBase returns a not-started Base.
func NewBase(name string, location geom.Position) Base {
	return Base{name: name, location: location}
}

func (b *Base) Name() string { return b.name }
func (b *Base) Location() geom.Position { return b.location }
func (b *Base) State() State { return b.state }
func (b *Base) GoingTo() bool { return b.goingTo }
func (b *Base) GoTo() { b.goingTo = true }

// Elapsed is the time spent in progress, in milliseconds.
func (b *Base) Elapsed() int64 { return b.elapsed }

// Env returns the collaborators bound at Init.
func (b *Base) Env() Env { return b.env }

// Init binds the collaborators. An activity serves one agent only.
func (b *Base) Init(env Env) error {
	if b.ready {
		return fmt.Errorf("%q: %w", b.name, ErrAlreadyInitialised)
	}
	if err := env.validate(); err != nil {
		return fmt.Errorf("%q: %w", b.name, err)
	}
	b.env = env
	b.ready = true
	return nil
}

// CanStart is false by default.
func (b *Base) CanStart(int) bool { return false }

// Start moves NOT_STARTED → IN_PROGRESS. Any other state is left alone.
func (b *Base) Start(int) {
	if b.state != NotStarted {
		return
	}
	b.state = InProgress
	b.goingTo = false
	b.elapsed = 0
	b.logf("start %s", b.name)
}

// Continue accrues elapsed time while in progress.
func (b *Base) Continue(tickMillis int) {
	b.advance(tickMillis)
}

// End moves IN_PROGRESS → FINISHED. Any other state is left alone.
func (b *Base) End() {
	if b.state != InProgress {
		return
	}
	b.state = Finished
	b.logf("finish %s after %dms", b.name, b.elapsed)
}

// abandon moves NOT_STARTED → FINISHED for an activity that can no longer
// take place. Any other state is left alone.
func (b *Base) abandon(reason string) {
	if b.state != NotStarted {
		return
	}
	b.state = Finished
	b.goingTo = false
	b.logf("gave up %s: %s", b.name, reason)
}

func (b *Base) advance(tickMillis int) {
	if b.state == InProgress && tickMillis > 0 {
		b.elapsed += int64(tickMillis)
	}
}

// near reports whether the agent is within reach of p.
func (b *Base) near(p geom.Position, reach float64) bool {
	return b.ready && b.env.Self.Position().Distance(p) <= reach
}

func (b *Base) logf(format string, args ...any) {
	if b.env.Log != nil {
		b.env.Log(format, args...)
	}
}

// millis converts non-negative seconds to milliseconds.
func millis(seconds float64) (int64, error) {
	if !(seconds >= 0) || seconds > 1e12 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, seconds)
	}
	return int64(seconds*1000 + 0.5), nil
}
