// Package scenario reads a YAML scenario description and builds the map,
// its static components and its agents from it.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/crowdsim/internal/agents"
	"github.com/talgya/crowdsim/internal/geom"
)

// ErrInvalid wraps every scenario validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Point is an [x, y] pair.
type Point [2]float64

// Pos converts p to a position.
func (p Point) Pos() geom.Position { return geom.Pos(p[0], p[1]) }

// Vec converts p to a vector.
func (p Point) Vec() geom.Vector { return geom.Vec(p[0], p[1]) }

// Scenario is the top-level document.
type Scenario struct {
	Name   string  `yaml:"name"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	Walls     []Wall    `yaml:"walls"`
	Obstacles []Polygon `yaml:"obstacles"`
	Pillars   *Pillars  `yaml:"pillars"`
	Areas     []Polygon `yaml:"areas"`
	Chairs    []Point   `yaml:"chairs"`
	Desks     []Desk    `yaml:"desks"`
	Queues    []Queue   `yaml:"queues"`
	Agents    []Agent   `yaml:"agents"`
	Crowds    []Crowd   `yaml:"crowds"`
}

// Wall is a circular obstacle.
type Wall struct {
	At     Point   `yaml:"at"`
	Radius float64 `yaml:"radius"`
}

// Polygon is an obstacle, or a named area.
type Polygon struct {
	Name    string  `yaml:"name"`
	Corners []Point `yaml:"corners"`
}

// Desk is a named service point.
type Desk struct {
	Name string `yaml:"name"`
	At   Point  `yaml:"at"`
}

// Queue is a named queue line.
type Queue struct {
	Name      string  `yaml:"name"`
	Head      Point   `yaml:"head"`
	Direction Point   `yaml:"direction"`
	Spacing   float64 `yaml:"spacing"`
}

// Agent describes one human.
type Agent struct {
	Profile `yaml:",inline"`

	Name string `yaml:"name"`
	At   Point  `yaml:"at"`
}

// Profile holds the agent settings a crowd shares.
type Profile struct {
	Policy       string             `yaml:"policy"`
	Speed        *float64           `yaml:"speed"`
	Radius       *float64           `yaml:"radius"`
	Radii        map[string]float64 `yaml:"radii"`
	Planning     string             `yaml:"planning"`
	Rank         []string           `yaml:"rank"`
	ExitWhenDone bool               `yaml:"exit_when_done"`
	Goals        []Goal             `yaml:"goals"`
}

// Goal kinds.
const (
	KindVisit    = "visit"
	KindSit      = "sit"
	KindServe    = "serve"
	KindInteract = "interact"
)

// Goal describes one goal and the activity it wraps. Which fields apply
// depends on Kind.
type Goal struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`

	At     Point   `yaml:"at"`
	DwellS float64 `yaml:"dwell_s"`

	// Queue routes a visit through the named queue line first.
	Queue     string `yaml:"queue"`
	SelfServe bool   `yaml:"self_serve"`

	Desk     string  `yaml:"desk"`
	Line     string  `yaml:"line"`
	ServiceS float64 `yaml:"service_s"`
	ShiftS   float64 `yaml:"shift_s"`

	// With names an agent declared earlier in the file.
	With      string  `yaml:"with"`
	DurationS float64 `yaml:"duration_s"`

	// Exactly one of DeadlineS and Before is set. Before names another
	// goal of the same agent.
	DeadlineS *float64 `yaml:"deadline_s"`
	Before    string   `yaml:"before"`
}

// Crowd spawns Count agents spread over an area.
type Crowd struct {
	Profile `yaml:",inline"`

	Prefix  string  `yaml:"prefix"`
	Count   int     `yaml:"count"`
	Area    string  `yaml:"area"`
	Spacing float64 `yaml:"spacing"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document. Unknown keys are
// rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks cross references and goal shapes. Geometry is checked
// by the component constructors during Build.
func (s *Scenario) Validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("%w: negative map size", ErrInvalid)
	}
	if s.Pillars != nil {
		if err := s.Pillars.validate(); err != nil {
			return err
		}
	}
	areas := names(s.Areas, func(p Polygon) string { return p.Name })
	desks := names(s.Desks, func(d Desk) string { return d.Name })
	queues := names(s.Queues, func(q Queue) string { return q.Name })
	for _, set := range []struct {
		kind string
		seen map[string]int
	}{{"area", areas}, {"desk", desks}, {"queue", queues}} {
		for n, c := range set.seen {
			if n == "" {
				return fmt.Errorf("%w: unnamed %s", ErrInvalid, set.kind)
			}
			if c > 1 {
				return fmt.Errorf("%w: duplicate %s %q", ErrInvalid, set.kind, n)
			}
		}
	}

	declared := make(map[string]bool)
	for i, a := range s.Agents {
		label := a.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		} else if declared[a.Name] {
			return fmt.Errorf("%w: duplicate agent %q", ErrInvalid, a.Name)
		}
		if err := a.validate(label, desks, queues, declared); err != nil {
			return err
		}
		if a.Name != "" {
			declared[a.Name] = true
		}
	}
	for i, c := range s.Crowds {
		label := fmt.Sprintf("crowd #%d", i)
		if c.Count <= 0 {
			return fmt.Errorf("%w: %s: count must be positive", ErrInvalid, label)
		}
		if areas[c.Area] == 0 {
			return fmt.Errorf("%w: %s: unknown area %q", ErrInvalid, label, c.Area)
		}
		if c.Spacing < 0 {
			return fmt.Errorf("%w: %s: negative spacing", ErrInvalid, label)
		}
		if err := c.validate(label, desks, queues, declared); err != nil {
			return err
		}
	}
	return nil
}

func (p Profile) validate(label string, desks, queues map[string]int, declared map[string]bool) error {
	if _, err := agents.ParsePolicy(p.Policy); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, label, err)
	}
	if _, err := planningPolicy(p.Planning, p.Rank); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	goals := make(map[string]bool)
	for _, g := range p.Goals {
		if g.Name != "" {
			goals[g.Name] = true
		}
	}
	for i, g := range p.Goals {
		at := fmt.Sprintf("%s goal #%d", label, i)
		if (g.DeadlineS == nil) == (g.Before == "") {
			return fmt.Errorf("%w: %s: set exactly one of deadline_s and before", ErrInvalid, at)
		}
		if g.Before != "" && (!goals[g.Before] || g.Before == g.Name) {
			return fmt.Errorf("%w: %s: before names unknown goal %q", ErrInvalid, at, g.Before)
		}
		switch g.Kind {
		case KindVisit:
			if g.Queue != "" && queues[g.Queue] == 0 {
				return fmt.Errorf("%w: %s: unknown queue %q", ErrInvalid, at, g.Queue)
			}
		case KindSit:
		case KindServe:
			if desks[g.Desk] == 0 {
				return fmt.Errorf("%w: %s: unknown desk %q", ErrInvalid, at, g.Desk)
			}
			if queues[g.Line] == 0 {
				return fmt.Errorf("%w: %s: unknown queue %q", ErrInvalid, at, g.Line)
			}
		case KindInteract:
			if !declared[g.With] {
				return fmt.Errorf("%w: %s: %q is not an agent declared earlier", ErrInvalid, at, g.With)
			}
		default:
			return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalid, at, g.Kind)
		}
	}
	return nil
}

func names[T any](items []T, name func(T) string) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[name(it)]++
	}
	return out
}
