package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/agents"
	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/goal"
	"github.com/talgya/crowdsim/internal/world"
)

type probe struct {
	world.Base
	name       string
	order      *[]string
	updates    int
	leaveAfter int
	pending    []string
}

func (p *probe) Tags() []world.Tag { return []world.Tag{world.TagAgent} }

func (p *probe) Update(tickMillis int) {
	p.updates++
	*p.order = append(*p.order, p.name)
	p.pending = append(p.pending, fmt.Sprintf("%s tick %d", p.name, p.updates))
}

func (p *probe) ShouldRemove() bool { return p.leaveAfter > 0 && p.updates >= p.leaveAfter }

func (p *probe) TakeLog() []string {
	out := p.pending
	p.pending = nil
	return out
}

func (p *probe) String() string { return p.name }

type memSink struct{ lines []LogLine }

func (m *memSink) WriteLog(lines []LogLine) error {
	m.lines = append(m.lines, lines...)
	return nil
}

type failingSink struct{ calls int }

func (f *failingSink) WriteLog([]LogLine) error {
	f.calls++
	return errors.New("disk full")
}

func newMap(t *testing.T) *world.Map {
	t.Helper()
	m, err := world.NewMap(10, 10)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	return m
}

func TestTickLengthValidated(t *testing.T) {
	for _, ms := range []int{0, -5, 1001} {
		if _, err := NewEngine(ms); !errors.Is(err, ErrInvalidTick) {
			t.Errorf("NewEngine(%d) error = %v", ms, err)
		}
		if _, err := NewSimulation(newMap(t), ms); !errors.Is(err, ErrInvalidTick) {
			t.Errorf("NewSimulation(%d) error = %v", ms, err)
		}
	}
	for _, ms := range []int{1, 100, 1000} {
		if _, err := NewEngine(ms); err != nil {
			t.Errorf("NewEngine(%d): %v", ms, err)
		}
	}
}

func TestCallbackCadence(t *testing.T) {
	tests := []struct {
		tickMillis       int
		ticks            int
		seconds, minutes int
	}{
		{250, 480, 120, 2},
		{1000, 59, 59, 0},
		{300, 10, 3, 0},
		{700, 1000, 700, 11},
	}
	for _, tt := range tests {
		e, _ := NewEngine(tt.tickMillis)
		var ticks, seconds, minutes int
		e.OnTick = func(uint64) { ticks++ }
		e.OnSecond = func(uint64) { seconds++ }
		e.OnMinute = func(uint64) { minutes++ }
		if ran := e.RunFor(tt.ticks); ran != tt.ticks {
			t.Fatalf("RunFor ran %d, want %d", ran, tt.ticks)
		}
		if ticks != tt.ticks || seconds != tt.seconds || minutes != tt.minutes {
			t.Errorf("%dms × %d: ticks %d seconds %d minutes %d, want %d %d %d",
				tt.tickMillis, tt.ticks, ticks, seconds, minutes, tt.ticks, tt.seconds, tt.minutes)
		}
	}
}

func TestRunForStopsWhenDone(t *testing.T) {
	e, _ := NewEngine(100)
	e.Done = func() bool { return e.Tick >= 7 }
	if ran := e.RunFor(0); ran != 7 || e.Tick != 7 {
		t.Errorf("ran %d, tick %d; want 7", ran, e.Tick)
	}
	if e.Running() {
		t.Error("still running after RunFor")
	}
}

func TestRunStopsOnStop(t *testing.T) {
	e, _ := NewEngine(10)
	e.Interval = time.Microsecond
	e.OnTick = func(tick uint64) {
		if tick == 3 {
			e.Stop()
		}
	}
	e.Run()
	if e.Tick != 3 {
		t.Errorf("Tick = %d, want 3", e.Tick)
	}
	if got := e.Elapsed(); got != 30*time.Millisecond {
		t.Errorf("Elapsed = %v", got)
	}
}

func TestSimTime(t *testing.T) {
	tests := []struct {
		tick uint64
		ms   int
		want string
	}{
		{0, 100, "0:00:00.000"},
		{15, 100, "0:00:01.500"},
		{3661, 1000, "1:01:01.000"},
		{7, 333, "0:00:02.331"},
	}
	for _, tt := range tests {
		if got := SimTime(tt.tick, tt.ms); got != tt.want {
			t.Errorf("SimTime(%d, %d) = %q, want %q", tt.tick, tt.ms, got, tt.want)
		}
	}
}

func TestStepUpdatesInRegistrationOrder(t *testing.T) {
	m := newMap(t)
	var order []string
	for _, n := range []string{"c", "a", "b"} {
		if err := m.Add(&probe{Base: world.At(geom.Origin), name: n, order: &order}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	s, _ := NewSimulation(m, 100)
	s.Step(1)
	s.Step(2)
	want := []string{"c", "a", "b", "c", "a", "b"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("update order = %v, want %v", order, want)
	}
}

func TestRemovalBetweenTicks(t *testing.T) {
	m := newMap(t)
	var order []string
	early := &probe{Base: world.At(geom.Origin), name: "early", order: &order, leaveAfter: 2}
	stay := &probe{Base: world.At(geom.Origin), name: "stay", order: &order}
	_ = m.Add(early)
	_ = m.Add(stay)
	sink := &memSink{}
	s, _ := NewSimulation(m, 100, NoActors(), AfterTicks(10))
	s.Sink = sink
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for tick := uint64(1); !s.Done(); tick++ {
		s.Step(tick)
	}
	if s.LastTick != 10 {
		t.Errorf("ended at tick %d, want 10", s.LastTick)
	}
	if early.updates != 2 || !early.Destroyed() {
		t.Errorf("early: %d updates, destroyed %v", early.updates, early.Destroyed())
	}
	if stay.updates != 10 {
		t.Errorf("stay: %d updates", stay.updates)
	}
	if s.Stats.Removed != 1 || s.Stats.Actors != 1 {
		t.Errorf("stats = %+v", s.Stats)
	}
	if len(sink.lines) != 12 || s.Stats.LogLines != 12 {
		t.Fatalf("sink got %d lines, stats %d; want 12", len(sink.lines), s.Stats.LogLines)
	}
	if first := sink.lines[0]; first.Tick != 1 || first.Name != "early" || first.Text != "early tick 1" {
		t.Errorf("first line = %+v", first)
	}
}

func TestSinkFailureIsNotFatal(t *testing.T) {
	m := newMap(t)
	var order []string
	_ = m.Add(&probe{Base: world.At(geom.Origin), name: "p", order: &order})
	s, _ := NewSimulation(m, 100)
	sink := &failingSink{}
	s.Sink = sink
	s.Step(1)
	s.Step(2)
	if sink.calls != 2 || len(order) != 2 {
		t.Errorf("sink calls %d, updates %d", sink.calls, len(order))
	}
}

func TestHumansRunToCompletion(t *testing.T) {
	m := newMap(t)
	src := entropy.New(11)
	b := agents.NewBuilder(m, src).Speed(1).ExitWhenDone(true)
	for i, x := range []float64{1, 2, 3} {
		v, _ := activity.NewVisit("kiosk", geom.Pos(x, 2), 0.3)
		g, _ := goal.NewDeadline(v, 30)
		if _, err := b.Named(fmt.Sprintf("h%d", i)).At(geom.Pos(x, 0)).Goals(g).Build(); err != nil {
			t.Fatalf("Build: %v", err)
		}
	}
	sink := &memSink{}
	sim, _ := NewSimulation(m, 100, NoActors(), AfterTicks(1000))
	sim.Sink = sink
	e, _ := NewEngine(100)
	e.OnTick = sim.Step
	e.Done = sim.Done
	if err := sim.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e.RunFor(0)

	if sim.Stats.Actors != 0 || sim.Stats.Removed != 3 {
		t.Fatalf("stats = %+v; want every human removed", sim.Stats)
	}
	if sim.Stats.Achieved != 3 || sim.Stats.Failed != 0 {
		t.Errorf("achieved %d failed %d", sim.Stats.Achieved, sim.Stats.Failed)
	}
	if len(sink.lines) == 0 || sink.lines[0].Agent == "" {
		t.Error("human log lines not drained with identity")
	}
}
