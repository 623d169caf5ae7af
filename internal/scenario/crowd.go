package scenario

import (
	"fmt"
	"slices"

	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/world"
)

// DefaultCrowdSpacing separates spawned agents when a crowd sets none.
const DefaultCrowdSpacing = 1.0

// spawnPoints picks count positions inside area, at least spacing apart
// from each other and from taken, and clear of obstacles by radius.
// Candidates on a half-spacing grid are scored by a noise field plus a
// little jitter and taken best first.
func spawnPoints(m *world.Map, area *world.Area, src *entropy.Source, count int, spacing, radius float64, taken []geom.Position) ([]geom.Position, error) {
	type scored struct {
		at    geom.Position
		score float64
	}
	if !(spacing > 0) {
		spacing = DefaultCrowdSpacing
	}
	step := spacing / 2
	field := src.Noise(int64(len(taken)) + 1)
	b := area.Bounds()

	var candidates []scored
	for y := b.Min[1] + step/2; y <= b.Max[1]; y += step {
		for x := b.Min[0] + step/2; x <= b.Max[0]; x += step {
			at := geom.Pos(x, y)
			if !area.Contains(at) || len(m.Within(world.TagObstacle, at, radius)) > 0 {
				continue
			}
			candidates = append(candidates, scored{at, field.At(x*0.3, y*0.3) + src.Float()*0.05})
		}
	}

	// Sort by score descending.
	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	placed := slices.Clone(taken)
	var out []geom.Position
	for _, c := range candidates {
		if len(out) == count {
			break
		}
		if tooClose(c.at, placed, spacing) {
			continue
		}
		placed = append(placed, c.at)
		out = append(out, c.at)
	}
	if len(out) < count {
		return out, fmt.Errorf("%w: area %q fits %d of %d agents at spacing %v",
			ErrInvalid, area.Name(), len(out), count, spacing)
	}
	return out, nil
}
