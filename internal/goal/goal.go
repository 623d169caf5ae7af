// Package goal wraps activities with a success or failure condition.
package goal

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/crowdsim/internal/activity"
)

// Construction errors.
var (
	ErrMissingActivity = errors.New("goal: missing activity")
	ErrInvalidDeadline = errors.New("goal: deadline must be a non-negative number of seconds")
)

// State is a goal's outcome. Goals start in progress and resolve once.
type State uint8

const (
	InProgress State = iota
	Achieved
	Failed
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "IN_PROGRESS"
	case Achieved:
		return "ACHIEVED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Goal is achieved when its activity finishes. It fails when its deadline
// passes or, for prerequisite goals, when the terminal activity finishes
// first.
type Goal struct {
	act      activity.Activity
	terminal activity.Activity
	deadline int64 // milliseconds, -1 none
	elapsed  int64
	state    State
}

// NewDeadline creates a goal that fails once more than seconds of
// simulated time pass without act finishing.
func NewDeadline(act activity.Activity, seconds float64) (*Goal, error) {
	if act == nil {
		return nil, ErrMissingActivity
	}
	if !(seconds >= 0) || math.IsInf(seconds, 0) {
		return nil, fmt.Errorf("%q: %w: %v", act.Name(), ErrInvalidDeadline, seconds)
	}
	return &Goal{act: act, deadline: int64(math.Round(seconds * 1000))}, nil
}

// NewBefore creates a goal that fails if terminal finishes before act.
func NewBefore(act, terminal activity.Activity) (*Goal, error) {
	if act == nil || terminal == nil {
		return nil, ErrMissingActivity
	}
	return &Goal{act: act, terminal: terminal, deadline: -1}, nil
}

func (g *Goal) Name() string { return g.act.Name() }
func (g *Goal) Activity() activity.Activity { return g.act }
func (g *Goal) Terminal() activity.Activity { return g.terminal }
func (g *Goal) State() State { return g.state }
func (g *Goal) Resolved() bool { return g.state != InProgress }

// Elapsed is the simulated time the goal has been tracked, in milliseconds.
func (g *Goal) Elapsed() int64 { return g.elapsed }

// Deadline returns the deadline in milliseconds, if the goal has one.
func (g *Goal) Deadline() (int64, bool) { return g.deadline, g.deadline >= 0 }

// Update advances the goal by one tick. Resolved goals never change.
// Achievement is checked first, so an activity finishing on the deadline
// tick still counts.
func (g *Goal) Update(tickMillis int) {
	if g.state != InProgress {
		return
	}
	if tickMillis > 0 {
		g.elapsed += int64(tickMillis)
	}
	switch {
	case g.act.State() == activity.Finished:
		g.state = Achieved
	case g.deadline >= 0 && g.elapsed > g.deadline:
		g.state = Failed
	case g.terminal != nil && g.terminal.State() == activity.Finished:
		g.state = Failed
	}
}

func (g *Goal) String() string {
	return fmt.Sprintf("%s[%s]", g.act.Name(), g.state)
}
