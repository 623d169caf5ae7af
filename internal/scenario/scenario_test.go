package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/crowdsim/internal/engine"
	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/world"
)

const kiosk = `
name: kiosk
width: 12
height: 8
walls:
  - {at: [1, 7], radius: 0.5}
obstacles:
  - corners: [[10, 6], [11, 6], [11, 7], [10, 7]]
areas:
  - name: hall
    corners: [[0, 0], [12, 0], [12, 8], [0, 8]]
  - name: entrance
    corners: [[8, 0], [12, 0], [12, 4], [8, 4]]
desks:
  - {name: ticket, at: [4, 2]}
queues:
  - {name: ticket, head: [5, 2], direction: [1, 0], spacing: 0.6}
chairs: [[2, 5]]
agents:
  - name: ada
    at: [9, 2]
    exit_when_done: true
    goals:
      - {kind: visit, name: ticket, at: [4, 2], dwell_s: 1, queue: ticket, self_serve: true, deadline_s: 120}
  - name: bo
    at: [10, 3]
    speed: 1.0
    exit_when_done: true
    goals:
      - {kind: visit, name: ticket, at: [4, 2], dwell_s: 1, queue: ticket, self_serve: true, deadline_s: 120}
`

func parse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func TestParseRejects(t *testing.T) {
	base := "width: 10\nheight: 10\nareas: [{name: hall, corners: [[0,0],[5,0],[5,5]]}]\n" +
		"desks: [{name: d, at: [1, 1]}]\nqueues: [{name: q, head: [2, 2], direction: [1, 0], spacing: 0.5}]\n"
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", base + "doors: []\n"},
		{"unknown goal kind", base + "agents: [{goals: [{kind: dance, deadline_s: 1}]}]\n"},
		{"deadline and before", base + "agents: [{goals: [{kind: visit, name: a, deadline_s: 1}, {kind: visit, deadline_s: 1, before: a}]}]\n"},
		{"neither deadline nor before", base + "agents: [{goals: [{kind: visit}]}]\n"},
		{"before unknown goal", base + "agents: [{goals: [{kind: visit, before: nowhere}]}]\n"},
		{"unknown queue", base + "agents: [{goals: [{kind: visit, queue: nope, deadline_s: 1}]}]\n"},
		{"unknown desk", base + "agents: [{goals: [{kind: serve, desk: nope, line: q, deadline_s: 1}]}]\n"},
		{"interact with later agent", base + "agents: [{name: a, goals: [{kind: interact, with: b, deadline_s: 1}]}, {name: b}]\n"},
		{"duplicate agent", base + "agents: [{name: a}, {name: a}]\n"},
		{"duplicate area", "areas: [{name: x, corners: [[0,0],[1,0],[1,1]]}, {name: x, corners: [[0,0],[1,0],[1,1]]}]\n"},
		{"unknown policy", base + "agents: [{policy: teleport}]\n"},
		{"unknown planning", base + "agents: [{planning: whim}]\n"},
		{"crowd unknown area", base + "crowds: [{count: 2, area: roof}]\n"},
		{"crowd without count", base + "crowds: [{area: hall}]\n"},
		{"pillars without cell", base + "pillars: {threshold: 0.5}\n"},
		{"negative size", "width: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Parse accepted an invalid scenario")
			}
		})
	}
	if _, err := Parse([]byte(base + "agents: [{policy: teleport}]\n")); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	if err := os.WriteFile(path, []byte(kiosk), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "kiosk" || len(s.Agents) != 2 || *s.Agents[1].Speed != 1.0 {
		t.Errorf("loaded %+v", s)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestBuildPlacesComponents(t *testing.T) {
	w, err := parse(t, kiosk).Build(entropy.New(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	counts := map[world.Tag]int{
		world.TagObstacle: 2,
		world.TagWall:     1,
		world.TagPolygon:  1,
		world.TagArea:     2,
		world.TagDesk:     1,
		world.TagQueue:    1,
		world.TagChair:    1,
		world.TagHuman:    2,
	}
	for tag, want := range counts {
		if got := w.Map.Count(tag); got != want {
			t.Errorf("Count(%s) = %d, want %d", tag, got, want)
		}
	}
	ada, ok := w.Human("ada")
	if !ok || ada.Position() != geom.Pos(9, 2) {
		t.Fatalf("ada = %v, %v", ada, ok)
	}
	if w.Queues["ticket"] == nil || w.Desks["ticket"] == nil || w.Areas["entrance"] == nil {
		t.Error("named fixtures not indexed")
	}
	if w.Map.Width() < 12 || w.Map.Height() < 8 {
		t.Errorf("map %v × %v smaller than declared", w.Map.Width(), w.Map.Height())
	}
}

func TestBuildWiresGoalsAndPlanning(t *testing.T) {
	doc := `
width: 10
height: 10
agents:
  - name: host
    at: [5, 5]
    policy: stationary
  - name: guest
    at: [1, 1]
    planning: ranked
    rank: [coffee, chat]
    radii: {agent: 5}
    goals:
      - {kind: interact, name: chat, with: host, duration_s: 2, deadline_s: 60}
      - {kind: sit, name: coffee, at: [2, 2], dwell_s: 3, before: chat}
`
	w, err := parse(t, doc).Build(entropy.New(2))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	guest, _ := w.Human("guest")
	goals := guest.Strategic().Goals.Goals()
	if len(goals) != 2 {
		t.Fatalf("guest has %d goals", len(goals))
	}
	if goals[1].Terminal() != goals[0].Activity() {
		t.Error("before did not bind the named goal's activity")
	}
	plan := guest.Strategic().Planner
	plan.Update()
	if next := plan.Next(); next == nil || next.Name() != "coffee" {
		t.Errorf("ranked plan starts with %v, want coffee", next)
	}
	if r, _ := guest.Operational().Observation.Radius(world.TagAgent); r != 5 {
		t.Errorf("agent radius = %v, want 5", r)
	}
}

func TestCrowdPlacement(t *testing.T) {
	doc := `
width: 10
height: 10
walls:
  - {at: [5, 5], radius: 1}
areas:
  - name: plaza
    corners: [[2, 2], [8, 2], [8, 8], [2, 8]]
crowds:
  - prefix: fan
    count: 10
    area: plaza
    spacing: 1.2
    policy: random-walk
`
	place := func(seed int64) []geom.Position {
		w, err := parse(t, doc).Build(entropy.New(seed))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(w.Humans) != 10 {
			t.Fatalf("spawned %d, want 10", len(w.Humans))
		}
		plaza := w.Areas["plaza"]
		var out []geom.Position
		for i, h := range w.Humans {
			p := h.Position()
			if !plaza.Contains(p) {
				t.Errorf("%s at %v is outside the plaza", h.Name(), p)
			}
			if p.Distance(geom.Pos(5, 5)) <= 1+0.25 {
				t.Errorf("%s at %v overlaps the wall", h.Name(), p)
			}
			for _, q := range out {
				if p.Distance(q) < 1.2 {
					t.Errorf("%s at %v within spacing of %v", h.Name(), p, q)
				}
			}
			if i == 0 && h.Name() != "fan-1" {
				t.Errorf("first name = %q", h.Name())
			}
			out = append(out, p)
		}
		return out
	}
	a, b := place(4), place(4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("placement differs under the same seed at %d: %v vs %v", i, a[i], b[i])
		}
	}

	tooMany := strings.Replace(doc, "count: 10", "count: 400", 1)
	if _, err := parse(t, tooMany).Build(entropy.New(4)); !errors.Is(err, ErrInvalid) {
		t.Errorf("overfull crowd error = %v", err)
	}
}

func TestPillarsKeepClear(t *testing.T) {
	doc := `
width: 20
height: 20
pillars: {cell: 1, threshold: 0.3, radius: 0.3, margin: 2, clearance: 1.5}
chairs: [[10, 10]]
agents:
  - {name: a, at: [4, 4]}
`
	s := parse(t, doc)
	w, err := s.Build(entropy.New(9))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	walls := world.QueryAs[*world.Wall](w.Map, world.TagWall)
	if len(walls) == 0 {
		t.Fatal("no pillars placed at a low threshold")
	}
	for _, wl := range walls {
		p := wl.Position()
		if p.X < 2 || p.Y < 2 || p.X > 18 || p.Y > 18 {
			t.Errorf("pillar %v inside the edge margin", p)
		}
		for _, keep := range []geom.Position{geom.Pos(10, 10), geom.Pos(4, 4)} {
			if p.Distance(keep) < 1.8 {
				t.Errorf("pillar %v within clearance of %v", p, keep)
			}
		}
	}
	again, _ := s.Build(entropy.New(9))
	if got := again.Map.Count(world.TagWall); got != len(walls) {
		t.Errorf("pillar count %d then %d under the same seed", len(walls), got)
	}
}

func TestKioskRunsToCompletion(t *testing.T) {
	w, err := parse(t, kiosk).Build(entropy.New(5))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sim, err := engine.NewSimulation(w.Map, 100, engine.NoActors(), engine.AfterTicks(3000))
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	e, _ := engine.NewEngine(100)
	e.OnTick = sim.Step
	e.Done = sim.Done
	if err := sim.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e.RunFor(0)

	if sim.Stats.Actors != 0 {
		t.Fatalf("%d agents still on the map at tick %d", sim.Stats.Actors, sim.LastTick)
	}
	if sim.Stats.Achieved != 2 || sim.Stats.Failed != 0 {
		t.Errorf("achieved %d failed %d", sim.Stats.Achieved, sim.Stats.Failed)
	}
	if n := w.Queues["ticket"].Len(); n != 0 {
		t.Errorf("%d members left in the line", n)
	}
}
