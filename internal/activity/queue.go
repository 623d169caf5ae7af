package activity

import (
	"fmt"
	"math"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/world"
)

// Queue eligibility geometry.
const (
	DefaultHeadReach = 1.0
	QueueProximity   = 1.0
	QueueHalfAngle   = math.Pi / 4
	// SlotTolerance is how close to its slot a member must be to halt.
	SlotTolerance = 0.25
)

// Queuer is implemented by agents that expose whether they are queuing.
type Queuer interface {
	Queuing() bool
}

// Queue is the privileged activity of standing in a QueueLine. While in
// progress it follows the member ahead and halts in its slot. Once front of
// line is granted the agent is released to the activity it queued for.
type Queue struct {
	Base
	line  *world.QueueLine
	front bool

	// HeadReach is how close to an empty line's head an agent must be to
	// start queuing as first in line.
	HeadReach float64
	// SelfServe grants front of line on reaching the head slot, for lines
	// nobody serves.
	SelfServe bool
}

// NewQueue creates a queue activity for line.
func NewQueue(line *world.QueueLine) (*Queue, error) {
	if line == nil {
		return nil, fmt.Errorf("queue: %w: line", ErrMissingCollaborator)
	}
	return &Queue{
		Base:      NewBase("queue:"+line.Name(), line.Head()),
		line:      line,
		HeadReach: DefaultHeadReach,
	}, nil
}

// Line returns the queue line.
func (q *Queue) Line() *world.QueueLine { return q.line }

// Location is the back of the line, where a newcomer joins.
func (q *Queue) Location() geom.Position {
	if i := q.line.IndexOf(q.env.Self); i >= 0 {
		return q.line.Slot(i)
	}
	return q.line.Slot(q.line.Len())
}

// CanStart reports whether the agent may join: it stands at the head of an
// empty line, or it sees another queuing agent close ahead in the direction
// it is heading.
func (q *Queue) CanStart(int) bool {
	if q.state != NotStarted || !q.ready {
		return false
	}
	if q.line.Len() == 0 {
		return q.near(q.line.Head(), q.HeadReach)
	}
	self := q.env.Self.Position()
	heading := self.To(q.line.Head())
	if goal, ok := q.env.Navigation.Goal(); ok && self.Distance(goal) > SlotTolerance {
		heading = self.To(goal)
	}
	others, err := q.env.Observation.Observe(world.TagAgent)
	if err != nil {
		return false
	}
	for _, o := range others {
		if !q.queuing(o) {
			continue
		}
		to := self.To(o.Position())
		if to.Len() <= QueueProximity && heading.Within(to, QueueHalfAngle) {
			return true
		}
	}
	return false
}

func (q *Queue) queuing(c world.Component) bool {
	if q.line.IndexOf(c) >= 0 {
		return true
	}
	qr, ok := c.(Queuer)
	return ok && qr.Queuing()
}

// Start joins the back of the line.
func (q *Queue) Start(tickMillis int) {
	if q.state != NotStarted {
		return
	}
	q.Base.Start(tickMillis)
	q.line.Join(q.env.Self)
	q.logf("joined %s at place %d", q.line.Name(), q.line.IndexOf(q.env.Self))
}

// Continue shuffles up behind the member ahead.
func (q *Queue) Continue(tickMillis int) {
	if q.state != InProgress {
		return
	}
	q.advance(tickMillis)
	if q.front {
		return
	}
	if q.line.IndexOf(q.env.Self) < 0 {
		q.line.Join(q.env.Self)
	}
	target := q.slot()
	mov, nav := q.env.Movement, q.env.Navigation
	if q.env.Self.Position().Distance(target) <= SlotTolerance {
		if q.SelfServe && q.line.Front() == q.env.Self {
			q.GrantFront()
			return
		}
		if !mov.Stopped() {
			_ = mov.Stop(movement.Indefinite)
		}
		return
	}
	nav.SetGoal(target)
	mov.Resume()
}

// slot is where the agent should stand: spacing behind the member ahead,
// or the head when first.
func (q *Queue) slot() geom.Position {
	ahead := q.line.Ahead(q.env.Self)
	if ahead == nil {
		return q.line.Head()
	}
	return ahead.Position().Add(q.line.Direction().Scale(q.line.Spacing()))
}

// GrantFront marks the agent as served next. It is unconditional from then
// on and releases the agent to move.
func (q *Queue) GrantFront() {
	if q.state != InProgress || q.front {
		return
	}
	q.front = true
	q.env.Movement.Resume()
	q.logf("front of %s", q.line.Name())
}

// AtFront reports whether front of line was granted.
func (q *Queue) AtFront() bool { return q.front }

// End leaves the line.
func (q *Queue) End() {
	if q.state != InProgress {
		return
	}
	q.line.Leave(q.env.Self)
	if !q.front {
		q.env.Movement.Resume()
	}
	q.Base.End()
}
