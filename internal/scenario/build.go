package scenario

import (
	"fmt"
	"log/slog"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/agents"
	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/goal"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/planning"
	"github.com/talgya/crowdsim/internal/world"
)

// Planning policy names.
const (
	PlanInOrder          = "in-order"
	PlanEarliestDeadline = "earliest-deadline"
	PlanRanked           = "ranked"
)

// queueReserve is how many slots behind each queue head stay clear of
// generated pillars.
const queueReserve = 10

// World is a built scenario.
type World struct {
	Name   string
	Map    *world.Map
	Humans []*agents.Human

	Areas  map[string]*world.Area
	Desks  map[string]*world.Desk
	Queues map[string]*world.QueueLine

	byName map[string]*agents.Human
}

// Human returns the agent with the given name.
func (w *World) Human(name string) (*agents.Human, bool) {
	h, ok := w.byName[name]
	return h, ok
}

// Build places every component on a new map and then builds the agents.
// Obstacles go in first, as the map requires. src seeds pillar layout,
// crowd placement, agent identity and random walks.
func (s *Scenario) Build(src *entropy.Source) (*World, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = entropy.New(0)
	}
	m, err := world.NewMap(s.Width, s.Height)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	w := &World{
		Name:   s.Name,
		Map:    m,
		Areas:  make(map[string]*world.Area),
		Desks:  make(map[string]*world.Desk),
		Queues: make(map[string]*world.QueueLine),
		byName: make(map[string]*agents.Human),
	}

	if err := s.placeObstacles(w, src); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	if err := s.placeFixtures(w); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	for _, a := range s.Agents {
		h, err := w.build(a.Profile, a.Name, a.At.Pos(), src)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		if a.Name != "" {
			w.byName[a.Name] = h
		}
	}
	for i, c := range s.Crowds {
		if err := w.spawn(i, c, src); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}

	slog.Info("scenario built",
		"name", s.Name,
		"humans", len(w.Humans),
		"obstacles", m.Count(world.TagObstacle),
		"width", m.Width(),
		"height", m.Height(),
	)
	return w, nil
}

func (s *Scenario) placeObstacles(w *World, src *entropy.Source) error {
	for i, wl := range s.Walls {
		c, err := world.NewWall(wl.At.Pos(), wl.Radius)
		if err != nil {
			return fmt.Errorf("wall #%d: %w", i, err)
		}
		if err := w.Map.Add(c); err != nil {
			return err
		}
	}
	for i, o := range s.Obstacles {
		c, err := world.NewObstacle(corners(o.Corners))
		if err != nil {
			return fmt.Errorf("obstacle #%d: %w", i, err)
		}
		if err := w.Map.Add(c); err != nil {
			return err
		}
	}
	if s.Pillars == nil {
		return nil
	}
	at := s.Pillars.positions(src, s.Width, s.Height, s.reserved())
	for _, p := range at {
		c, err := world.NewWall(p, s.Pillars.Radius)
		if err != nil {
			return fmt.Errorf("pillar: %w", err)
		}
		if err := w.Map.Add(c); err != nil {
			return err
		}
	}
	slog.Debug("pillars placed", "count", len(at))
	return nil
}

// reserved lists every declared position pillars must keep clear of.
func (s *Scenario) reserved() []geom.Position {
	var out []geom.Position
	for _, c := range s.Chairs {
		out = append(out, c.Pos())
	}
	for _, d := range s.Desks {
		out = append(out, d.At.Pos())
	}
	for _, q := range s.Queues {
		dir := q.Direction.Vec().Normalize()
		for i := 0; i < queueReserve; i++ {
			out = append(out, q.Head.Pos().Add(dir.Scale(float64(i)*q.Spacing)))
		}
	}
	profiles := make([]Profile, 0, len(s.Agents)+len(s.Crowds))
	for _, a := range s.Agents {
		out = append(out, a.At.Pos())
		profiles = append(profiles, a.Profile)
	}
	for _, c := range s.Crowds {
		profiles = append(profiles, c.Profile)
	}
	for _, p := range profiles {
		for _, g := range p.Goals {
			if g.Kind == KindVisit || g.Kind == KindSit {
				out = append(out, g.At.Pos())
			}
		}
	}
	return out
}

func (s *Scenario) placeFixtures(w *World) error {
	for _, a := range s.Areas {
		c, err := world.NewArea(a.Name, corners(a.Corners))
		if err != nil {
			return fmt.Errorf("area %q: %w", a.Name, err)
		}
		if err := w.Map.Add(c); err != nil {
			return err
		}
		w.Areas[a.Name] = c
	}
	for _, p := range s.Chairs {
		if err := w.Map.Add(world.NewChair(p.Pos())); err != nil {
			return fmt.Errorf("chair at %v: %w", p, err)
		}
	}
	for _, d := range s.Desks {
		c := world.NewDesk(d.Name, d.At.Pos())
		if err := w.Map.Add(c); err != nil {
			return fmt.Errorf("desk %q: %w", d.Name, err)
		}
		w.Desks[d.Name] = c
	}
	for _, q := range s.Queues {
		c, err := world.NewQueueLine(q.Name, q.Head.Pos(), q.Direction.Vec(), q.Spacing)
		if err != nil {
			return err
		}
		if err := w.Map.Add(c); err != nil {
			return err
		}
		w.Queues[q.Name] = c
	}
	return nil
}

func (w *World) spawn(i int, c Crowd, src *entropy.Source) error {
	prefix := c.Prefix
	if prefix == "" {
		prefix = fmt.Sprintf("crowd%d", i)
	}
	radius := agents.DefaultRadius
	if c.Radius != nil {
		radius = *c.Radius
	}
	taken := make([]geom.Position, 0, len(w.Humans))
	for _, h := range w.Humans {
		taken = append(taken, h.Position())
	}
	at, err := spawnPoints(w.Map, w.Areas[c.Area], src.Fork(int64(i)+1), c.Count, c.Spacing, radius, taken)
	if err != nil {
		return fmt.Errorf("crowd %q: %w", prefix, err)
	}
	for j, p := range at {
		if _, err := w.build(c.Profile, fmt.Sprintf("%s-%d", prefix, j+1), p, src); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) build(p Profile, name string, at geom.Position, src *entropy.Source) (*agents.Human, error) {
	kind, err := agents.ParsePolicy(p.Policy)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	plan, err := planningPolicy(p.Planning, p.Rank)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}
	goals, err := w.goals(p.Goals)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	b := agents.NewBuilder(w.Map, src).
		Named(name).
		At(at).
		Policy(kind).
		Planning(plan).
		ExitWhenDone(p.ExitWhenDone).
		Goals(goals...)
	if p.Speed != nil {
		b.Speed(*p.Speed)
	}
	if p.Radius != nil {
		b.Radius(*p.Radius)
	}
	if len(p.Radii) > 0 {
		radii := observation.DefaultRadii()
		for tag, r := range p.Radii {
			radii[world.Tag(tag)] = r
		}
		b.Radii(radii)
	}
	h, err := b.Build()
	if err != nil {
		return nil, err
	}
	w.Humans = append(w.Humans, h)
	return h, nil
}

// goals builds fresh activities for one agent, then wraps them in goals.
func (w *World) goals(specs []Goal) ([]*goal.Goal, error) {
	acts := make([]activity.Activity, len(specs))
	byName := make(map[string]activity.Activity, len(specs))
	for i, g := range specs {
		a, err := w.activity(g)
		if err != nil {
			return nil, fmt.Errorf("goal #%d: %w", i, err)
		}
		acts[i] = a
		if g.Name != "" {
			byName[g.Name] = a
		}
	}

	out := make([]*goal.Goal, 0, len(specs))
	for i, g := range specs {
		var (
			gl  *goal.Goal
			err error
		)
		if g.DeadlineS != nil {
			gl, err = goal.NewDeadline(acts[i], *g.DeadlineS)
		} else {
			gl, err = goal.NewBefore(acts[i], byName[g.Before])
		}
		if err != nil {
			return nil, fmt.Errorf("goal #%d: %w", i, err)
		}
		out = append(out, gl)
	}
	return out, nil
}

func (w *World) activity(g Goal) (activity.Activity, error) {
	name := g.Name
	if name == "" {
		name = g.Kind
	}
	switch g.Kind {
	case KindVisit:
		v, err := activity.NewVisit(name, g.At.Pos(), g.DwellS)
		if err != nil {
			return nil, err
		}
		if g.Queue == "" {
			return v, nil
		}
		q, err := activity.NewQueue(w.Queues[g.Queue])
		if err != nil {
			return nil, err
		}
		q.SelfServe = g.SelfServe
		return v.Through(q), nil
	case KindSit:
		return activity.NewSit(name, g.At.Pos(), g.DwellS)
	case KindServe:
		return activity.NewServe(w.Desks[g.Desk], w.Queues[g.Line], g.ServiceS, g.ShiftS)
	case KindInteract:
		h, ok := w.byName[g.With]
		if !ok {
			return nil, fmt.Errorf("%w: unknown agent %q", ErrInvalid, g.With)
		}
		return activity.NewInteract(name, h, g.DurationS)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, g.Kind)
}

func planningPolicy(name string, rank []string) (planning.Policy, error) {
	switch name {
	case "", PlanInOrder:
		return planning.InOrder{}, nil
	case PlanEarliestDeadline:
		return planning.EarliestDeadline{}, nil
	case PlanRanked:
		return planning.NewRanked(rank...), nil
	}
	return nil, fmt.Errorf("%w: unknown planning policy %q", ErrInvalid, name)
}

func corners(points []Point) []geom.Position {
	out := make([]geom.Position, len(points))
	for i, p := range points {
		out[i] = p.Pos()
	}
	return out
}
