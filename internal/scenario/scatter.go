package scenario

import (
	"fmt"

	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/geom"
)

// Pillars scatters circular obstacles where a layered noise field peaks,
// for cluttered layouts nobody wants to draw by hand.
type Pillars struct {
	Cell      float64 `yaml:"cell"`      // sampling grid step
	Threshold float64 `yaml:"threshold"` // field level in [0, 1) above which a pillar stands
	Radius    float64 `yaml:"radius"`
	Margin    float64 `yaml:"margin"`    // clear band along the map edge
	Clearance float64 `yaml:"clearance"` // clear distance around declared positions
	Octaves   int     `yaml:"octaves"`
	Frequency float64 `yaml:"frequency"`
	Salt      int64   `yaml:"salt"`
}

func (p *Pillars) validate() error {
	if !(p.Cell > 0) {
		return fmt.Errorf("%w: pillars: cell must be positive", ErrInvalid)
	}
	if p.Threshold < 0 || p.Threshold >= 1 {
		return fmt.Errorf("%w: pillars: threshold must be in [0, 1)", ErrInvalid)
	}
	if p.Radius < 0 || p.Margin < 0 || p.Clearance < 0 {
		return fmt.Errorf("%w: pillars: negative radius, margin or clearance", ErrInvalid)
	}
	return nil
}

// positions samples the field on a grid over width × height and returns
// the cell centres that peak above the threshold, row by row. Cells within
// the edge margin or within clearance of a kept position are skipped.
func (p *Pillars) positions(src *entropy.Source, width, height float64, keep []geom.Position) []geom.Position {
	octaves, freq := p.Octaves, p.Frequency
	if octaves <= 0 {
		octaves = 3
	}
	if freq <= 0 {
		freq = 0.15
	}
	field := src.Noise(p.Salt)

	var out []geom.Position
	for y := p.Cell / 2; y < height; y += p.Cell {
		for x := p.Cell / 2; x < width; x += p.Cell {
			if x < p.Margin || y < p.Margin || x > width-p.Margin || y > height-p.Margin {
				continue
			}
			if octaveNoise(field, x, y, octaves, freq, 0.5) <= p.Threshold {
				continue
			}
			at := geom.Pos(x, y)
			if tooClose(at, keep, p.Clearance+p.Radius) {
				continue
			}
			out = append(out, at)
		}
	}
	return out
}

// octaveNoise sums octaves of the field at doubling frequency and halving
// weight, normalised back to the field's range.
func octaveNoise(field entropy.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += field.At(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func tooClose(at geom.Position, existing []geom.Position, minDist float64) bool {
	for _, e := range existing {
		if at.Distance(e) < minDist {
			return true
		}
	}
	return false
}
