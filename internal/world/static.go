package world

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/talgya/crowdsim/internal/geom"
)

// Construction errors for static components.
var (
	ErrInvalidRadius   = errors.New("radius must be a non-negative finite number")
	ErrInvalidPolygon  = errors.New("polygon needs at least three distinct corners")
	ErrInvalidGeometry = errors.New("invalid queue geometry")
)

// Wall is a circular obstacle.
type Wall struct {
	Base
	radius float64
}

// NewWall creates a wall centred at p.
func NewWall(p geom.Position, radius float64) (*Wall, error) {
	if !(radius >= 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("wall: %w: %v", ErrInvalidRadius, radius)
	}
	return &Wall{Base: At(p), radius: radius}, nil
}

func (w *Wall) Tags() []Tag { return []Tag{TagObstacle, TagWall} }

// Radius returns the wall radius.
func (w *Wall) Radius() float64 { return w.radius }

// DistanceTo is the distance from p to the wall's rim, 0 inside.
func (w *Wall) DistanceTo(p geom.Position) float64 {
	return math.Max(0, w.pos.Distance(p)-w.radius)
}

func (w *Wall) Bounds() orb.Bound { return circleBound(w.pos, w.radius) }

// shape is a closed polygon ring shared by obstacles and areas.
type shape struct {
	ring orb.Ring
}

func newShape(corners []geom.Position) (shape, error) {
	ring := make(orb.Ring, 0, len(corners)+1)
	for _, c := range corners {
		if !c.Valid() {
			return shape{}, fmt.Errorf("%w: corner %v", ErrInvalidPosition, c)
		}
		pt := orb.Point{c.X, c.Y}
		if len(ring) > 0 && ring[len(ring)-1] == pt {
			continue
		}
		ring = append(ring, pt)
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < 3 {
		return shape{}, ErrInvalidPolygon
	}
	ring = append(ring, ring[0])
	return shape{ring: ring}, nil
}

func (s shape) centroid() geom.Position {
	c, _ := planar.CentroidArea(orb.Polygon{s.ring})
	return geom.Pos(c.X(), c.Y())
}

func (s shape) distanceTo(p geom.Position) float64 {
	pt := orb.Point{p.X, p.Y}
	if planar.RingContains(s.ring, pt) {
		return 0
	}
	return planar.DistanceFrom(s.ring, pt)
}

func (s shape) contains(p geom.Position) bool {
	return planar.RingContains(s.ring, orb.Point{p.X, p.Y})
}

// Bound of the corners; identical to the bound of their convex hull.
func (s shape) bound() orb.Bound { return s.ring.Bound() }

func (s shape) corners() []geom.Position {
	out := make([]geom.Position, 0, len(s.ring)-1)
	for _, pt := range s.ring[:len(s.ring)-1] {
		out = append(out, geom.Pos(pt.X(), pt.Y()))
	}
	return out
}

// Obstacle is a polygonal obstacle.
type Obstacle struct {
	Base
	shape
}

// NewObstacle creates a polygonal obstacle from its corners.
func NewObstacle(corners []geom.Position) (*Obstacle, error) {
	s, err := newShape(corners)
	if err != nil {
		return nil, fmt.Errorf("obstacle: %w", err)
	}
	return &Obstacle{Base: At(s.centroid()), shape: s}, nil
}

func (o *Obstacle) Tags() []Tag { return []Tag{TagObstacle, TagPolygon} }

// DistanceTo is 0 inside the polygon, else the distance to its boundary.
func (o *Obstacle) DistanceTo(p geom.Position) float64 { return o.distanceTo(p) }

func (o *Obstacle) Bounds() orb.Bound { return o.bound() }

// Corners returns the polygon corners in insertion order.
func (o *Obstacle) Corners() []geom.Position { return o.corners() }

// Area is a named, non-blocking region.
type Area struct {
	Base
	shape
	name string
}

// NewArea creates a named area from its corners.
func NewArea(name string, corners []geom.Position) (*Area, error) {
	s, err := newShape(corners)
	if err != nil {
		return nil, fmt.Errorf("area %q: %w", name, err)
	}
	return &Area{Base: At(s.centroid()), shape: s, name: name}, nil
}

func (a *Area) Tags() []Tag { return []Tag{TagArea} }

// Name returns the area name.
func (a *Area) Name() string { return a.name }

// Contains reports whether p lies inside the area.
func (a *Area) Contains(p geom.Position) bool { return a.contains(p) }

func (a *Area) DistanceTo(p geom.Position) float64 { return a.distanceTo(p) }

func (a *Area) Bounds() orb.Bound { return a.bound() }

// reservation is a single-holder claim. Claiming is check-then-set inside
// one call; ticks are not re-entrant so one of two same-tick claimants wins.
type reservation struct {
	holder Component
}

// Claim reserves for c. It succeeds if free, already held by c, or held by
// a destroyed component.
func (r *reservation) Claim(c Component) bool {
	if r.holder != nil && r.holder != c && !r.holder.Destroyed() {
		return false
	}
	r.holder = c
	return true
}

// Release frees the reservation if c holds it.
func (r *reservation) Release(c Component) {
	if r.holder == c {
		r.holder = nil
	}
}

// Holder returns the live holder, or nil.
func (r *reservation) Holder() Component {
	if r.holder != nil && r.holder.Destroyed() {
		return nil
	}
	return r.holder
}

// Occupied reports whether a live component holds the reservation.
func (r *reservation) Occupied() bool { return r.Holder() != nil }

// Chair is a seat an agent can claim.
type Chair struct {
	Base
	reservation
}

// NewChair creates an unoccupied chair at p.
func NewChair(p geom.Position) *Chair {
	return &Chair{Base: At(p)}
}

func (c *Chair) Tags() []Tag { return []Tag{TagChair} }

// Desk is a service point claimed by one operator at a time.
type Desk struct {
	Base
	reservation
	name string
}

// NewDesk creates an unclaimed desk at p.
func NewDesk(name string, p geom.Position) *Desk {
	return &Desk{Base: At(p), name: name}
}

func (d *Desk) Tags() []Tag { return []Tag{TagDesk} }

// Name returns the desk name.
func (d *Desk) Name() string { return d.name }

// QueueLine is an ordered line of components waiting at a head point.
// Members stand behind the head along Direction, Spacing apart.
type QueueLine struct {
	Base
	name      string
	direction geom.Vector
	spacing   float64
	members   []Component
}

// NewQueueLine creates a line with its head at head. direction points from
// the head towards the back of the line.
func NewQueueLine(name string, head geom.Position, direction geom.Vector, spacing float64) (*QueueLine, error) {
	if !head.Valid() {
		return nil, fmt.Errorf("queue %q: %w: head %v", name, ErrInvalidGeometry, head)
	}
	if direction.IsZero() || !direction.Valid() {
		return nil, fmt.Errorf("queue %q: %w: zero direction", name, ErrInvalidGeometry)
	}
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("queue %q: %w: spacing %v", name, ErrInvalidGeometry, spacing)
	}
	return &QueueLine{
		Base:      At(head),
		name:      name,
		direction: direction.Normalize(),
		spacing:   spacing,
	}, nil
}

func (q *QueueLine) Tags() []Tag { return []Tag{TagQueue} }

// Name returns the queue name.
func (q *QueueLine) Name() string { return q.name }

// Head returns the front position of the line.
func (q *QueueLine) Head() geom.Position { return q.pos }

// Direction is the unit vector from the head to the back of the line.
func (q *QueueLine) Direction() geom.Vector { return q.direction }

// Spacing is the gap between consecutive members.
func (q *QueueLine) Spacing() float64 { return q.spacing }

// Slot returns where the i-th member (0 = front) should stand.
func (q *QueueLine) Slot(i int) geom.Position {
	return q.pos.Add(q.direction.Scale(float64(i) * q.spacing))
}

// Join appends c to the back of the line. Joining twice is a no-op.
func (q *QueueLine) Join(c Component) {
	q.prune()
	if !slices.Contains(q.members, c) {
		q.members = append(q.members, c)
	}
}

// Leave removes c from the line.
func (q *QueueLine) Leave(c Component) {
	if i := slices.Index(q.members, c); i >= 0 {
		q.members = slices.Delete(q.members, i, i+1)
	}
}

// Members returns the live members, front first.
func (q *QueueLine) Members() []Component {
	q.prune()
	return slices.Clone(q.members)
}

// Len returns the number of live members.
func (q *QueueLine) Len() int {
	q.prune()
	return len(q.members)
}

// Front returns the first live member, or nil.
func (q *QueueLine) Front() Component {
	q.prune()
	if len(q.members) == 0 {
		return nil
	}
	return q.members[0]
}

// IndexOf returns c's place in line (0 = front) or -1.
func (q *QueueLine) IndexOf(c Component) int {
	q.prune()
	return slices.Index(q.members, c)
}

// Ahead returns the member directly in front of c, or nil.
func (q *QueueLine) Ahead(c Component) Component {
	i := q.IndexOf(c)
	if i <= 0 {
		return nil
	}
	return q.members[i-1]
}

// prune drops destroyed members so a removed agent never blocks the line.
func (q *QueueLine) prune() {
	q.members = slices.DeleteFunc(q.members, func(c Component) bool {
		return c.Destroyed()
	})
}
