package agents

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/crowdsim/internal/activity"
	"github.com/talgya/crowdsim/internal/communication"
	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/goal"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/navigation"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/planning"
	"github.com/talgya/crowdsim/internal/world"
)

// Builder errors.
var (
	ErrInvalidRadius = errors.New("agent radius must be a non-negative finite number")
	ErrUnknownPolicy = errors.New("unknown movement policy")
	ErrNoMap         = errors.New("agent builder: nil map")
)

// PolicyKind names a movement policy.
type PolicyKind string

const (
	PolicyGoalSeeking PolicyKind = "goal-seeking"
	PolicyRandomWalk  PolicyKind = "random-walk"
	PolicyStationary  PolicyKind = "stationary"
	PolicySocialForce PolicyKind = "social-force"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (PolicyKind, error) {
	switch k := PolicyKind(s); k {
	case PolicyGoalSeeking, PolicyRandomWalk, PolicyStationary, PolicySocialForce:
		return k, nil
	case "":
		return PolicyGoalSeeking, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Defaults for built agents.
const (
	DefaultRadius     = 0.25
	DefaultSpeed      = 1.3
	DefaultWanderFreq = 0.5
)

// Builder assembles a Human from concrete module variants. The zero
// configuration is a goal-seeking agent with default radii and an in-order
// planner.
type Builder struct {
	m   *world.Map
	src *entropy.Source

	name         string
	pos          geom.Position
	radius       float64
	speed        float64
	policy       PolicyKind
	radii        observation.Radii
	plan         planning.Policy
	tolerance    float64
	goals        []*goal.Goal
	exitWhenDone bool
}

// NewBuilder returns a builder placing agents on m. src supplies identity
// and random-walk noise.
func NewBuilder(m *world.Map, src *entropy.Source) *Builder {
	return &Builder{
		m:         m,
		src:       src,
		radius:    DefaultRadius,
		speed:     DefaultSpeed,
		policy:    PolicyGoalSeeking,
		radii:     observation.DefaultRadii(),
		plan:      planning.InOrder{},
		tolerance: navigation.DefaultTolerance,
	}
}

func (b *Builder) Named(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) At(p geom.Position) *Builder {
	b.pos = p
	return b
}

func (b *Builder) Radius(r float64) *Builder {
	b.radius = r
	return b
}

func (b *Builder) Speed(s float64) *Builder {
	b.speed = s
	return b
}

func (b *Builder) Policy(k PolicyKind) *Builder {
	b.policy = k
	return b
}

func (b *Builder) Radii(r observation.Radii) *Builder {
	b.radii = r
	return b
}

func (b *Builder) Planning(p planning.Policy) *Builder {
	b.plan = p
	return b
}

func (b *Builder) Tolerance(t float64) *Builder {
	b.tolerance = t
	return b
}

func (b *Builder) Goals(goals ...*goal.Goal) *Builder {
	b.goals = append(b.goals, goals...)
	return b
}

func (b *Builder) ExitWhenDone(exit bool) *Builder {
	b.exitWhenDone = exit
	return b
}

// Build creates the agent, binds its goals' activities and registers it on
// the map. Goals and activities must not be shared between agents. The
// name and goals are cleared afterwards so the remaining settings can be
// reused for the next agent.
func (b *Builder) Build() (*Human, error) {
	if b.m == nil {
		return nil, ErrNoMap
	}
	if !(b.radius >= 0) || math.IsInf(b.radius, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, b.radius)
	}
	if !b.pos.Valid() {
		return nil, fmt.Errorf("agent %q: %w", b.name, world.ErrInvalidPosition)
	}
	src := b.src
	if src == nil {
		src = entropy.New(0)
	}

	h := &Human{Base: world.At(b.pos), id: src.NewID(), radius: b.radius, exitWhenDone: b.exitWhenDone}
	h.name = b.name
	if h.name == "" {
		h.name = "human-" + h.id.String()[:8]
	}

	nav, err := navigation.New(h, b.tolerance)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	obs, err := observation.New(h, b.m, b.radii)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	policy, err := b.movementPolicy(src, obs)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	mov, err := movement.New(h, nav, policy, b.speed)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	comms := communication.New(mov, nav)

	env := activity.Env{Self: h, Map: b.m, Movement: mov, Navigation: nav, Observation: obs, Log: h.Log}
	goals := goal.NewModule(h.Log)
	bound := make(map[activity.Activity]bool)
	for _, g := range b.goals {
		for _, a := range []activity.Activity{g.Activity(), g.Terminal()} {
			if a == nil || bound[a] {
				continue
			}
			if err := a.Init(env); err != nil {
				return nil, fmt.Errorf("agent %q: %w", h.name, err)
			}
			bound[a] = true
		}
		goals.Add(g)
	}
	planner, err := planning.New(goals, b.plan)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	beliefs, err := planning.NewBeliefModule(obs, goals, planner)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	beliefs.SuppressRepeats = true
	acts, err := activity.NewModule(env, planner)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	comms.OnSearch(acts.Search)

	h.strategic = &Strategic{Goals: goals, Planner: planner, Beliefs: beliefs}
	h.tactical = &Tactical{Activities: acts, Navigation: nav}
	h.operational = &Operational{Movement: mov, Observation: obs, Communication: comms}

	if err := b.m.Add(h); err != nil {
		return nil, fmt.Errorf("agent %q: %w", h.name, err)
	}
	slog.Debug("agent built", "name", h.name, "id", h.id, "policy", policy.Name(), "goals", len(b.goals))
	b.name, b.goals = "", nil
	return h, nil
}

func (b *Builder) movementPolicy(src *entropy.Source, obs *observation.Module) (movement.Policy, error) {
	switch b.policy {
	case PolicyGoalSeeking, "":
		return movement.GoalSeeking{}, nil
	case PolicyStationary:
		return movement.Stationary{}, nil
	case PolicyRandomWalk:
		rw := movement.NewRandomWalk(src, DefaultWanderFreq)
		rw.GoalBias = 0.6
		return rw, nil
	case PolicySocialForce:
		return movement.NewSocialForce(obs, b.radius), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, b.policy)
}
