package movement

import (
	"math"

	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/observation"
	"github.com/talgya/crowdsim/internal/world"
)

// Stationary never moves.
type Stationary struct{}

func (Stationary) Name() string { return "stationary" }

func (Stationary) Velocity(State, float64) geom.Vector { return geom.Zero }

// GoalSeeking heads straight for the navigation goal at desired speed,
// slowing on the last tick so it does not overshoot.
type GoalSeeking struct{}

func (GoalSeeking) Name() string { return "goal-seeking" }

func (GoalSeeking) Velocity(s State, dt float64) geom.Vector {
	if !s.HasGoal {
		return geom.Zero
	}
	return seek(s, dt)
}

func seek(s State, dt float64) geom.Vector {
	to := s.Position.To(s.Goal)
	dist := to.Len()
	if dist == 0 || dt <= 0 {
		return geom.Zero
	}
	return to.Normalize().Scale(math.Min(s.Speed, dist/dt))
}

// RandomWalk wanders along a smooth heading field. With GoalBias > 0 the
// heading is blended towards the navigation goal.
type RandomWalk struct {
	noise     entropy.Noise
	offset    float64
	Frequency float64 // field samples per simulated second
	GoalBias  float64 // 0 pure wander, 1 pure goal seeking
}

// NewRandomWalk draws a per-agent offset into the shared noise field so
// agents built from one source wander independently.
func NewRandomWalk(src *entropy.Source, frequency float64) *RandomWalk {
	return &RandomWalk{
		noise:     src.Noise(1),
		offset:    src.Range(0, 1000),
		Frequency: frequency,
	}
}

func (r *RandomWalk) Name() string { return "random-walk" }

func (r *RandomWalk) Velocity(s State, dt float64) geom.Vector {
	heading := r.noise.Heading(s.Elapsed*r.Frequency, r.offset)
	wander := geom.FromAngle(heading, s.Speed)
	if r.GoalBias <= 0 || !s.HasGoal {
		return wander
	}
	return wander.Scale(1 - r.GoalBias).Add(seek(s, dt).Scale(r.GoalBias))
}

// SocialForce parameters, after Helbing & Molnár.
const (
	DefaultRelaxation = 0.5 // seconds to reach desired velocity
	DefaultStrength   = 2.0 // repulsion magnitude, units/s²
	DefaultRange      = 0.3 // repulsion fall-off distance
)

// SocialForce accelerates towards the goal while being pushed away from
// observed agents and obstacles.
type SocialForce struct {
	obs        *observation.Module
	radius     float64
	Relaxation float64
	Strength   float64
	Range      float64
}

// Radiused is implemented by observed agents with a body radius.
type Radiused interface {
	Radius() float64
}

// NewSocialForce creates a social-force policy that observes neighbours
// through obs. radius is the owner's body radius.
func NewSocialForce(obs *observation.Module, radius float64) *SocialForce {
	return &SocialForce{
		obs:        obs,
		radius:     radius,
		Relaxation: DefaultRelaxation,
		Strength:   DefaultStrength,
		Range:      DefaultRange,
	}
}

func (f *SocialForce) Name() string { return "social-force" }

func (f *SocialForce) Velocity(s State, dt float64) geom.Vector {
	desired := geom.Zero
	if s.HasGoal {
		desired = seek(s, dt)
	}
	accel := desired.Sub(s.Velocity).Scale(1 / f.Relaxation)

	if agents, err := f.obs.Observe(world.TagAgent); err == nil {
		for _, a := range agents {
			r := f.radius
			if o, ok := a.(Radiused); ok {
				r += o.Radius()
			}
			gap := a.Position().Distance(s.Position) - r
			accel = accel.Add(f.push(s.Position, a.Position(), gap))
		}
	}
	if obstacles, err := f.obs.Observe(world.TagObstacle); err == nil {
		for _, o := range obstacles {
			gap := o.DistanceTo(s.Position) - f.radius
			accel = accel.Add(f.push(s.Position, o.Position(), gap))
		}
	}
	return s.Velocity.Add(accel.Scale(dt))
}

// push is the repulsion felt at p from a neighbour at q separated by gap.
func (f *SocialForce) push(p, q geom.Position, gap float64) geom.Vector {
	dir := q.To(p).Normalize()
	if dir.IsZero() {
		return geom.Zero
	}
	return dir.Scale(f.Strength * math.Exp(-gap/f.Range))
}
