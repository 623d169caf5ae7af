package goal

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/geom"
)

// stub is an activity driven directly by the test.
type stub struct{ activity.Base }

func newStub(name string) *stub { return &stub{Base: activity.NewBase(name, geom.Origin)} }

func (s *stub) finish() {
	s.Start(0)
	s.End()
}

func TestDeadlineFailsExactlyAfterDeadline(t *testing.T) {
	tests := []struct {
		tick      int
		wantTicks int
	}{
		{100, 101},
		{1000, 11},
		{300, 34},
		{7, 1429},
	}
	for _, tt := range tests {
		g, err := NewDeadline(newStub("never"), 10)
		if err != nil {
			t.Fatalf("NewDeadline: %v", err)
		}
		ticks := 0
		for g.State() == InProgress && ticks < 100000 {
			g.Update(tt.tick)
			ticks++
		}
		if g.State() != Failed || ticks != tt.wantTicks {
			t.Errorf("tick %dms: state %v after %d ticks, want FAILED after %d", tt.tick, g.State(), ticks, tt.wantTicks)
		}
		if g.Elapsed() <= 10000 || g.Elapsed()-int64(tt.tick) > 10000 {
			t.Errorf("tick %dms: failed at elapsed %dms", tt.tick, g.Elapsed())
		}
	}
}

func TestAchievedWinsOnDeadlineTick(t *testing.T) {
	act := newStub("a")
	g, _ := NewDeadline(act, 1)
	g.Update(1000)
	act.finish()
	g.Update(1000)
	if g.State() != Achieved {
		t.Errorf("state = %v, want ACHIEVED", g.State())
	}
}

func TestResolvedGoalNeverChanges(t *testing.T) {
	act := newStub("a")
	g, _ := NewDeadline(act, 0)
	g.Update(1)
	if g.State() != Failed {
		t.Fatalf("state = %v, want FAILED", g.State())
	}
	act.finish()
	g.Update(1)
	if g.State() != Failed || g.Elapsed() != 1 {
		t.Errorf("resolved goal changed: state %v elapsed %d", g.State(), g.Elapsed())
	}
}

func TestPrerequisiteGoal(t *testing.T) {
	act, term := newStub("checkin"), newStub("boarding")
	g, err := NewBefore(act, term)
	if err != nil {
		t.Fatalf("NewBefore: %v", err)
	}
	g.Update(1000)
	if g.State() != InProgress {
		t.Fatalf("state = %v", g.State())
	}
	term.finish()
	g.Update(1000)
	if g.State() != Failed {
		t.Errorf("state = %v, want FAILED", g.State())
	}
	if _, ok := g.Deadline(); ok {
		t.Error("prerequisite goal reports a deadline")
	}
}

func TestConstructionErrors(t *testing.T) {
	if _, err := NewDeadline(nil, 1); !errors.Is(err, ErrMissingActivity) {
		t.Errorf("nil activity: %v", err)
	}
	for _, s := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := NewDeadline(newStub("a"), s); !errors.Is(err, ErrInvalidDeadline) {
			t.Errorf("deadline %v: %v", s, err)
		}
	}
	if _, err := NewBefore(newStub("a"), nil); !errors.Is(err, ErrMissingActivity) {
		t.Errorf("nil terminal: %v", err)
	}
}

func TestModuleTalliesOutcomes(t *testing.T) {
	var lines []string
	m := NewModule(func(format string, args ...any) { lines = append(lines, format) })
	a, b, c := newStub("a"), newStub("b"), newStub("c")
	ga, _ := NewDeadline(a, 5)
	gb, _ := NewDeadline(b, 1)
	gc, _ := NewDeadline(c, 60)
	m.Add(ga, gb, nil, gc)

	a.finish()
	m.Update(1000)
	m.Update(1000)
	if m.Achieved() != 1 || m.Failed() != 1 {
		t.Fatalf("achieved %d failed %d, want 1 and 1", m.Achieved(), m.Failed())
	}
	if got := m.InProgress(); len(got) != 1 || got[0] != gc {
		t.Errorf("InProgress = %v, want [c]", got)
	}
	if m.Done() {
		t.Error("Done with a goal outstanding")
	}
	c.finish()
	m.Update(1000)
	if !m.Done() || len(lines) != 3 {
		t.Errorf("Done = %v, %d log lines", m.Done(), len(lines))
	}
	if len(m.Goals()) != 3 {
		t.Errorf("Goals = %d, want 3", len(m.Goals()))
	}
}
