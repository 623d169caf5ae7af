package world

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/crowdsim/internal/geom"
)

// walker is a minimal actor for map tests.
type walker struct {
	Base
	updates int
}

func newWalker(x, y float64) *walker { return &walker{Base: At(geom.Pos(x, y))} }

func (w *walker) Tags() []Tag { return []Tag{TagAgent, TagHuman} }
func (w *walker) Update(int) { w.updates++ }
func (w *walker) ShouldRemove() bool { return false }

// ghost claims to be an agent without implementing Actor.
type ghost struct{ Base }

func (g *ghost) Tags() []Tag { return []Tag{TagAgent} }

func mustMap(t *testing.T) *Map {
	t.Helper()
	m, err := NewMap(1, 1)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	return m
}

func mustWall(t *testing.T, x, y, r float64) *Wall {
	t.Helper()
	w, err := NewWall(geom.Pos(x, y), r)
	if err != nil {
		t.Fatalf("NewWall: %v", err)
	}
	return w
}

func TestSingleWallGrowsAndShrinksMap(t *testing.T) {
	m := mustMap(t)
	w := mustWall(t, 10, 10, 0.1)

	if err := m.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := len(m.Query(TagComponent)); got != 1 {
		t.Errorf("component query = %d results, want 1", got)
	}
	if m.Width() < 10.1 || m.Height() < 10.1 {
		t.Errorf("dimensions = %v×%v, want at least 10.1×10.1", m.Width(), m.Height())
	}

	if err := m.Remove(w); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m.Width() != 1 || m.Height() != 1 {
		t.Errorf("dimensions after removal = %v×%v, want 1×1", m.Width(), m.Height())
	}
}

func TestAddIndexesEveryTag(t *testing.T) {
	m := mustMap(t)
	w := mustWall(t, 2, 2, 0.5)
	if err := m.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for _, tag := range []Tag{TagComponent, TagObstacle, TagWall} {
		got := m.Query(tag)
		if len(got) != 1 || got[0] != Component(w) {
			t.Errorf("Query(%q) = %v, want the wall", tag, got)
		}
	}
	if got := m.Query(TagAgent); len(got) != 0 {
		t.Errorf("Query(agent) = %v, want empty", got)
	}
	if w.Map() != m || w.Seq() != 1 {
		t.Errorf("back-reference not assigned: map=%p seq=%d", w.Map(), w.Seq())
	}
}

func TestRemovedComponentNeverReturned(t *testing.T) {
	m := mustMap(t)
	a, b := newWalker(1, 1), newWalker(2, 2)
	for _, c := range []Component{a, b} {
		if err := m.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := m.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !a.Destroyed() {
		t.Error("removed component not marked destroyed")
	}
	for _, tag := range []Tag{TagComponent, TagAgent, TagHuman} {
		for _, c := range m.Query(tag) {
			if c == Component(a) {
				t.Errorf("Query(%q) returned removed component", tag)
			}
		}
	}
	if got := m.Within(TagAgent, geom.Pos(1, 1), 10); len(got) != 1 {
		t.Errorf("Within after removal = %d results, want 1", len(got))
	}
	if err := m.Remove(a); !errors.Is(err, ErrDestroyed) {
		t.Errorf("second Remove error = %v, want ErrDestroyed", err)
	}
	if err := m.Add(a); !errors.Is(err, ErrDestroyed) {
		t.Errorf("re-Add error = %v, want ErrDestroyed", err)
	}
}

func TestInsertionOrder(t *testing.T) {
	m := mustMap(t)
	if err := m.Add(newWalker(0, 0)); err != nil {
		t.Fatalf("Add walker: %v", err)
	}
	err := m.Add(mustWall(t, 3, 3, 1))
	if !errors.Is(err, ErrInsertionOrder) {
		t.Fatalf("Add wall after agent error = %v, want ErrInsertionOrder", err)
	}
	if m.Count(TagObstacle) != 0 {
		t.Error("rejected obstacle was indexed")
	}
	// Non-obstacles may still be placed.
	if err := m.Add(NewChair(geom.Pos(1, 1))); err != nil {
		t.Errorf("Add chair after agent: %v", err)
	}
}

func TestCustomOrderRule(t *testing.T) {
	m, err := NewMap(1, 1, WithOrderRule(OrderRule{Earlier: TagChair, Later: TagHuman}))
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if err := m.Add(newWalker(0, 0)); err != nil {
		t.Fatalf("Add walker: %v", err)
	}
	if err := m.Add(NewChair(geom.Pos(1, 1))); !errors.Is(err, ErrInsertionOrder) {
		t.Errorf("Add chair error = %v, want ErrInsertionOrder", err)
	}
}

func TestAddRejections(t *testing.T) {
	m := mustMap(t)
	w := mustWall(t, 1, 1, 0)
	if err := m.Add(w); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(w); !errors.Is(err, ErrAlreadyPlaced) {
		t.Errorf("duplicate Add error = %v, want ErrAlreadyPlaced", err)
	}
	if err := m.Add(&ghost{Base: At(geom.Pos(0, 0))}); !errors.Is(err, ErrNotActor) {
		t.Errorf("ghost Add error = %v, want ErrNotActor", err)
	}
	other := mustMap(t)
	if err := other.Remove(w); !errors.Is(err, ErrNotPlaced) {
		t.Errorf("foreign Remove error = %v, want ErrNotPlaced", err)
	}
}

func TestNewMapRejectsNegativeSize(t *testing.T) {
	if _, err := NewMap(-1, 1); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewMap(-1, 1) error = %v, want ErrInvalidSize", err)
	}
}

func TestWithinFiltersByRadius(t *testing.T) {
	m := mustMap(t)
	near, far := newWalker(1, 0), newWalker(5, 0)
	for _, c := range []Component{near, far} {
		if err := m.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got := m.Within(TagHuman, geom.Origin, 2)
	if len(got) != 1 || got[0] != Component(near) {
		t.Errorf("Within = %v, want only the near walker", got)
	}
	typed := WithinAs[*walker](m, TagAgent, geom.Origin, 10)
	if len(typed) != 2 || typed[0] != near || typed[1] != far {
		t.Errorf("WithinAs order = %v, want registration order", typed)
	}
}

func TestActorsInRegistrationOrder(t *testing.T) {
	m := mustMap(t)
	var want []*walker
	for i := 0; i < 5; i++ {
		w := newWalker(float64(5-i), 0)
		want = append(want, w)
		if err := m.Add(w); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got := m.Actors()
	if len(got) != len(want) {
		t.Fatalf("Actors = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != Actor(want[i]) {
			t.Errorf("Actors[%d] out of registration order", i)
		}
	}
}

func TestPolygonExtentUsesCorners(t *testing.T) {
	m := mustMap(t)
	o, err := NewObstacle([]geom.Position{geom.Pos(2, 2), geom.Pos(6, 2), geom.Pos(6, 4), geom.Pos(2, 4)})
	if err != nil {
		t.Fatalf("NewObstacle: %v", err)
	}
	if err := m.Add(o); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.Width() != 6 || m.Height() != 4 {
		t.Errorf("dimensions = %v×%v, want 6×4", m.Width(), m.Height())
	}
	if got := o.DistanceTo(geom.Pos(3, 3)); got != 0 {
		t.Errorf("distance inside polygon = %v, want 0", got)
	}
	if got := o.DistanceTo(geom.Pos(8, 3)); math.Abs(got-2) > 1e-9 {
		t.Errorf("distance outside polygon = %v, want 2", got)
	}
	if o.Position().Distance(geom.Pos(4, 3)) > 1e-9 {
		t.Errorf("centroid = %v, want (4, 3)", o.Position())
	}
}
