package world

import (
	"github.com/paulmach/orb"

	"github.com/talgya/crowdsim/internal/geom"
)

// Component is any entity placed on a Map.
// Concrete types embed Base and declare their tags.
type Component interface {
	Tags() []Tag
	Position() geom.Position
	// DistanceTo is the distance from p to the component's extent.
	DistanceTo(p geom.Position) float64
	// Bounds is the axis-aligned extent used to grow the map.
	Bounds() orb.Bound
	Destroyed() bool
	base() *Base
}

// Actor is a component updated once per tick by the driver.
// Every component tagged TagAgent must implement it.
type Actor interface {
	Component
	Update(tickMillis int)
	ShouldRemove() bool
}

// Base carries the map back-reference, registration sequence, position and
// destroyed flag shared by every component.
type Base struct {
	m         *Map
	seq       uint64
	pos       geom.Position
	destroyed bool
}

// At returns a Base located at p.
func At(p geom.Position) Base {
	return Base{pos: p}
}

// Position returns the component's current position.
func (b *Base) Position() geom.Position { return b.pos }

// SetPosition moves the component. The map is not re-fitted until the next
// structural change.
func (b *Base) SetPosition(p geom.Position) { b.pos = p }

// Map returns the map the component was added to, or nil.
func (b *Base) Map() *Map { return b.m }

// Seq is the 1-based registration sequence number, 0 before Add.
func (b *Base) Seq() uint64 { return b.seq }

// Destroyed reports whether the component was removed from its map.
func (b *Base) Destroyed() bool { return b.destroyed }

// DistanceTo returns the centre distance to p.
func (b *Base) DistanceTo(p geom.Position) float64 { return b.pos.Distance(p) }

// Bounds returns a point bound at the component's position.
func (b *Base) Bounds() orb.Bound {
	pt := orb.Point{b.pos.X, b.pos.Y}
	return orb.Bound{Min: pt, Max: pt}
}

func (b *Base) base() *Base { return b }

// circleBound is the bound of a disc.
func circleBound(c geom.Position, r float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{c.X - r, c.Y - r},
		Max: orb.Point{c.X + r, c.Y + r},
	}
}
