// Package observation gives an agent a read-only, radius-bounded view of
// the map. Each supported tag has a fixed radius; other tags are refused.
package observation

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/crowdsim/internal/world"
)

// ErrUnsupported is returned when the module has no radius for a tag.
// It is distinct from an empty result, which means nothing was seen.
var ErrUnsupported = errors.New("unsupported observation")

// ErrMissingCollaborator is returned by New for a nil owner or map.
var ErrMissingCollaborator = errors.New("observation: missing collaborator")

// Radii maps each observable tag to its observation radius.
type Radii map[world.Tag]float64

// DefaultRadii is tuned per role: tight for adjacent obstacles, wide for
// distant desks and queues. Areas use 0 so only containing areas are seen.
func DefaultRadii() Radii {
	return Radii{
		world.TagObstacle: 1,
		world.TagWall:     1,
		world.TagPolygon:  1,
		world.TagAgent:    3,
		world.TagHuman:    3,
		world.TagChair:    2,
		world.TagArea:     0,
		world.TagDesk:     20,
		world.TagQueue:    20,
	}
}

// Module observes the map from its owner's position.
type Module struct {
	owner world.Component
	m     *world.Map
	radii Radii
}

// New creates an observation module. radii is copied.
func New(owner world.Component, m *world.Map, radii Radii) (*Module, error) {
	if owner == nil || m == nil {
		return nil, ErrMissingCollaborator
	}
	for tag, r := range radii {
		if !(r >= 0) {
			return nil, fmt.Errorf("observation: negative radius %v for %q", r, tag)
		}
	}
	return &Module{owner: owner, m: m, radii: maps.Clone(radii)}, nil
}

// Supports reports whether tag can be observed.
func (o *Module) Supports(tag world.Tag) bool {
	_, ok := o.radii[tag]
	return ok
}

// Radius returns the radius for tag and whether it is supported.
func (o *Module) Radius(tag world.Tag) (float64, bool) {
	r, ok := o.radii[tag]
	return r, ok
}

// Tags returns the supported tags in sorted order.
func (o *Module) Tags() []world.Tag {
	return slices.Sorted(maps.Keys(o.radii))
}

// Observe returns live components satisfying tag within the tag's radius,
// excluding the owner.
func (o *Module) Observe(tag world.Tag) ([]world.Component, error) {
	r, ok := o.radii[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, tag)
	}
	seen := o.m.Within(tag, o.owner.Position(), r)
	return slices.DeleteFunc(seen, func(c world.Component) bool {
		return c == o.owner
	}), nil
}

// ObserveAs narrows Observe to components of type T.
func ObserveAs[T world.Component](o *Module, tag world.Tag) ([]T, error) {
	seen, err := o.Observe(tag)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(seen))
	for _, c := range seen {
		if t, ok := c.(T); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Map returns the observed map.
func (o *Module) Map() *world.Map { return o.m }
