package activity

import (
	"github.com/talgya/crowdsim/internal/world"
)

// Planner supplies the activity the agent should be working on.
type Planner interface {
	Next() Activity
}

// Module is the per-agent activity scheduler.
//
// Each tick exactly one of these happens, in priority order:
//  1. an in-progress queue that has not reached the front continues;
//  2. the current activity's queue starts, if it can;
//  3. the current activity continues, starts, or the agent heads for it.
type Module struct {
	env     Env
	planner Planner
	active  Activity
	queue   *Queue
}

// NewModule creates a scheduler over planner's current activity.
func NewModule(env Env, planner Planner) (*Module, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if planner == nil {
		return nil, ErrMissingCollaborator
	}
	return &Module{env: env, planner: planner}, nil
}

// Current returns the planner's current activity, or nil.
func (m *Module) Current() Activity { return m.planner.Next() }

// Active returns the non-queue activity started last, or nil.
func (m *Module) Active() Activity { return m.active }

// Queuing reports whether the agent is standing in a line.
func (m *Module) Queuing() bool {
	return m.queue != nil && m.queue.State() == InProgress
}

// Queue returns the queue activity in play, or nil.
func (m *Module) Queue() *Queue { return m.queue }

// Update runs one scheduling step.
func (m *Module) Update(tickMillis int) {
	cur := m.planner.Next()
	if m.Queuing() && queueOf(cur) != m.queue {
		// The plan moved on; a line nobody is waiting in is abandoned.
		m.endQueue()
	}
	if m.active != nil && m.active != cur && m.active.State() == InProgress {
		// Its goal resolved while it ran; release whatever it holds.
		m.active.End()
	}
	if m.Queuing() && !m.queue.AtFront() {
		m.queue.Continue(tickMillis)
		return
	}

	pending := queueOf(cur)
	if pending != nil && pending.State() != NotStarted {
		pending = nil
	}
	if pending != nil && pending.CanStart(tickMillis) {
		pending.Start(tickMillis)
		m.queue = pending
		return
	}
	if cur == nil || cur.State() == Finished {
		return
	}

	switch cur.State() {
	case InProgress:
		cur.Continue(tickMillis)
	case NotStarted:
		if cur.CanStart(tickMillis) {
			m.endQueue()
			cur.Start(tickMillis)
			m.active = cur
			return
		}
		if cur.State() == Finished {
			// Gave up before starting.
			return
		}
		target := cur.Location()
		if pending != nil {
			pending.GoTo()
			target = pending.Location()
		}
		cur.GoTo()
		if goal, ok := m.env.Navigation.Goal(); !ok || goal != target {
			m.env.Navigation.SetGoal(target)
		}
	}
}

func (m *Module) endQueue() {
	if m.Queuing() {
		m.queue.End()
	}
	m.queue = nil
}

// QueuedFor returns the current activity if it is reached through a queue
// on line, or nil once the plan has moved on.
func (m *Module) QueuedFor(line *world.QueueLine) Activity {
	cur := m.planner.Next()
	if q := queueOf(cur); q != nil && q.Line() == line {
		return cur
	}
	return nil
}

// GrantFront grants front of line to the agent if it is queuing on line.
func (m *Module) GrantFront(line *world.QueueLine) bool {
	if !m.Queuing() || m.queue.Line() != line {
		return false
	}
	m.queue.GrantFront()
	return true
}

// Search forwards a SEARCH message to the current activity.
func (m *Module) Search(seconds float64) bool {
	if s, ok := m.planner.Next().(Searcher); ok {
		return s.Search(seconds)
	}
	return false
}

// Stop ends whatever is in progress. Used when the agent leaves.
func (m *Module) Stop() {
	m.endQueue()
	if m.active != nil {
		m.active.End()
	}
}

func queueOf(a Activity) *Queue {
	if q, ok := a.(Queued); ok {
		return q.Queue()
	}
	return nil
}
