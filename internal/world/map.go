// Package world provides the spatial map index and the static components
// placed on it (walls, polygon obstacles, areas, seats, desks, queue lines).
package world

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/talgya/crowdsim/internal/geom"
)

// Map insertion and removal errors.
var (
	ErrInsertionOrder  = errors.New("insertion order violated")
	ErrAlreadyPlaced   = errors.New("component already placed")
	ErrDestroyed       = errors.New("component destroyed")
	ErrNotPlaced       = errors.New("component not on this map")
	ErrNotActor        = errors.New("agent component does not implement Actor")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidSize     = errors.New("invalid map size")
)

// Map owns every placed component and indexes it under each declared tag.
// Structural changes (Add, Remove) happen between ticks; queries happen
// during ticks. The map is not safe for concurrent use.
type Map struct {
	minWidth  float64
	minHeight float64
	rules     []OrderRule

	buckets map[Tag][]Component
	members map[Component]struct{}
	seq     uint64

	bound    orb.Bound
	hasBound bool
}

// Option configures a Map.
type Option func(*Map)

// WithOrderRule adds an insertion-order rule on top of the defaults.
func WithOrderRule(r OrderRule) Option {
	return func(m *Map) { m.rules = append(m.rules, r) }
}

// NewMap creates an empty map whose reported dimensions never fall below
// minWidth × minHeight.
func NewMap(minWidth, minHeight float64, opts ...Option) (*Map, error) {
	if !(minWidth >= 0) || !(minHeight >= 0) || math.IsInf(minWidth, 0) || math.IsInf(minHeight, 0) {
		return nil, fmt.Errorf("%w: %v × %v", ErrInvalidSize, minWidth, minHeight)
	}
	m := &Map{
		minWidth:  minWidth,
		minHeight: minHeight,
		rules:     DefaultOrderRules(),
		buckets:   make(map[Tag][]Component),
		members:   make(map[Component]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Add registers c under TagComponent and every tag it declares.
func (m *Map) Add(c Component) error {
	b := c.base()
	if b.destroyed {
		return fmt.Errorf("add: %w", ErrDestroyed)
	}
	if _, ok := m.members[c]; ok || b.m != nil {
		return fmt.Errorf("add: %w", ErrAlreadyPlaced)
	}
	if !c.Position().Valid() {
		return fmt.Errorf("add at %v: %w", c.Position(), ErrInvalidPosition)
	}

	tags := tagSet(c)
	if tags[TagAgent] {
		if _, ok := c.(Actor); !ok {
			return fmt.Errorf("add: %w", ErrNotActor)
		}
	}
	for _, r := range m.rules {
		if tags[r.Earlier] && len(m.buckets[r.Later]) > 0 {
			return fmt.Errorf("%w: %q component added after %q components",
				ErrInsertionOrder, r.Earlier, r.Later)
		}
	}

	m.seq++
	b.m = m
	b.seq = m.seq
	m.members[c] = struct{}{}
	for t := range tags {
		m.buckets[t] = append(m.buckets[t], c)
	}
	m.extend(c.Bounds())
	return nil
}

// Remove drops c from every bucket and marks it destroyed. A removed
// component is never returned again and cannot be re-added.
func (m *Map) Remove(c Component) error {
	b := c.base()
	if b.destroyed {
		return fmt.Errorf("remove: %w", ErrDestroyed)
	}
	if _, ok := m.members[c]; !ok {
		return fmt.Errorf("remove: %w", ErrNotPlaced)
	}

	delete(m.members, c)
	for t := range tagSet(c) {
		items := m.buckets[t]
		if i := slices.Index(items, c); i >= 0 {
			m.buckets[t] = slices.Delete(items, i, i+1)
		}
		if len(m.buckets[t]) == 0 {
			delete(m.buckets, t)
		}
	}
	b.destroyed = true
	m.refit()
	return nil
}

// Contains reports whether c is live on this map.
func (m *Map) Contains(c Component) bool {
	_, ok := m.members[c]
	return ok
}

// Len returns the number of live components.
func (m *Map) Len() int {
	return len(m.members)
}

// Query returns all live components satisfying tag, in registration order.
func (m *Map) Query(tag Tag) []Component {
	return slices.Clone(m.buckets[tag])
}

// Count returns the number of live components satisfying tag.
func (m *Map) Count(tag Tag) int {
	return len(m.buckets[tag])
}

// Within returns live components satisfying tag whose extent lies within
// radius r of p, in registration order.
func (m *Map) Within(tag Tag, p geom.Position, r float64) []Component {
	items := m.buckets[tag]
	var out []Component
	for _, c := range items {
		if c.DistanceTo(p) <= r {
			out = append(out, c)
		}
	}
	return out
}

// QueryAs returns the live components satisfying tag that are of type T.
func QueryAs[T Component](m *Map, tag Tag) []T {
	items := m.buckets[tag]
	out := make([]T, 0, len(items))
	for _, c := range items {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// WithinAs is Within narrowed to components of type T.
func WithinAs[T Component](m *Map, tag Tag, p geom.Position, r float64) []T {
	var out []T
	for _, c := range m.buckets[tag] {
		if t, ok := c.(T); ok && c.DistanceTo(p) <= r {
			out = append(out, t)
		}
	}
	return out
}

// Actors returns a registration-ordered snapshot of every live actor.
// This is the per-tick update order.
func (m *Map) Actors() []Actor {
	return QueryAs[Actor](m, TagAgent)
}

// Width is the larger of the configured minimum and the right edge of the
// union of component extents.
func (m *Map) Width() float64 {
	if !m.hasBound {
		return m.minWidth
	}
	return math.Max(m.minWidth, m.bound.Max.X())
}

// Height is the larger of the configured minimum and the top edge of the
// union of component extents.
func (m *Map) Height() float64 {
	if !m.hasBound {
		return m.minHeight
	}
	return math.Max(m.minHeight, m.bound.Max.Y())
}

// Bounds returns the union of component extents and whether any exist.
func (m *Map) Bounds() (orb.Bound, bool) {
	return m.bound, m.hasBound
}

// Refit recomputes the extents from current component positions.
func (m *Map) Refit() {
	m.refit()
}

func (m *Map) extend(b orb.Bound) {
	if !m.hasBound {
		m.bound = b
		m.hasBound = true
		return
	}
	m.bound = m.bound.Union(b)
}

func (m *Map) refit() {
	m.hasBound = false
	m.bound = orb.Bound{}
	for _, c := range m.buckets[TagComponent] {
		m.extend(c.Bounds())
	}
}

func (m *Map) String() string {
	return fmt.Sprintf("Map(%.1f×%.1f, components=%d)", m.Width(), m.Height(), m.Len())
}

func tagSet(c Component) map[Tag]bool {
	set := map[Tag]bool{TagComponent: true}
	for _, t := range c.Tags() {
		set[t] = true
	}
	return set
}
