// Package geom provides the planar position and vector values shared by
// every spatial part of the simulation.
package geom

import (
	"encoding/json"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Epsilon is the magnitude below which a coordinate is snapped to zero.
const Epsilon = 1e-5

// Position is an immutable point in the plane.
// Coordinates within Epsilon of zero are stored as exactly zero, so two
// positions compare equal with == and can be used as map keys. Build
// positions with Pos, Origin or by decoding; a composite literal skips
// the snapping.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Origin is the zero position.
var Origin = Position{}

// Pos builds a position, snapping near-zero coordinates.
func Pos(x, y float64) Position {
	return Position{X: snap(x), Y: snap(y)}
}

// UnmarshalJSON decodes {"x":..,"y":..} and snaps the result.
func (p *Position) UnmarshalJSON(data []byte) error {
	type raw Position
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*p = Pos(r.X, r.Y)
	return nil
}

// UnmarshalYAML decodes a {x, y} mapping and snaps the result.
func (p *Position) UnmarshalYAML(node *yaml.Node) error {
	type raw Position
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*p = Pos(r.X, r.Y)
	return nil
}

func snap(v float64) float64 {
	if math.Abs(v) < Epsilon {
		return 0
	}
	return v
}

// Valid reports whether both coordinates are finite.
func (p Position) Valid() bool {
	return finite(p.X) && finite(p.Y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Distance returns the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Add translates p by v.
func (p Position) Add(v Vector) Position {
	return Pos(p.X+v.X, p.Y+v.Y)
}

// Sub returns the vector pointing from q to p.
func (p Position) Sub(q Position) Vector {
	return Vec(p.X-q.X, p.Y-q.Y)
}

// To returns the vector pointing from p to q.
func (p Position) To(q Position) Vector {
	return q.Sub(p)
}

func (p Position) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
}

// Vector is a displacement or velocity. It shares Position's snapping rule
// and, like Position, keeps it only when built with Vec or decoded.
type Vector struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zero is the null vector.
var Zero = Vector{}

// Vec builds a vector, snapping near-zero components.
func Vec(x, y float64) Vector {
	return Vector{X: snap(x), Y: snap(y)}
}

// UnmarshalJSON decodes {"x":..,"y":..} and snaps the result.
func (v *Vector) UnmarshalJSON(data []byte) error {
	type raw Vector
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*v = Vec(r.X, r.Y)
	return nil
}

// UnmarshalYAML decodes a {x, y} mapping and snaps the result.
func (v *Vector) UnmarshalYAML(node *yaml.Node) error {
	type raw Vector
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*v = Vec(r.X, r.Y)
	return nil
}

// FromAngle returns the vector of length l at angle theta (radians).
func FromAngle(theta, l float64) Vector {
	return Vec(math.Cos(theta)*l, math.Sin(theta)*l)
}

// Add returns v + w.
func (v Vector) Add(w Vector) Vector { return Vec(v.X+w.X, v.Y+w.Y) }

// Sub returns v - w.
func (v Vector) Sub(w Vector) Vector { return Vec(v.X-w.X, v.Y-w.Y) }

// Scale multiplies v by k.
func (v Vector) Scale(k float64) Vector { return Vec(v.X*k, v.Y*k) }

// Dot returns the dot product.
func (v Vector) Dot(w Vector) float64 { return v.X*w.X + v.Y*w.Y }

// Len returns the Euclidean length.
func (v Vector) Len() float64 { return math.Hypot(v.X, v.Y) }

// IsZero reports whether v has no length.
func (v Vector) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Normalize returns the unit vector in v's direction, or Zero for Zero.
func (v Vector) Normalize() Vector {
	l := v.Len()
	if l == 0 {
		return Zero
	}
	return Vec(v.X/l, v.Y/l)
}

// ClampLen limits v to length max while preserving direction.
func (v Vector) ClampLen(max float64) Vector {
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}

// Angle returns the unsigned angle between v and w in radians, in [0, π].
// Returns 0 if either vector is Zero.
func (v Vector) Angle(w Vector) float64 {
	lv, lw := v.Len(), w.Len()
	if lv == 0 || lw == 0 {
		return 0
	}
	c := v.Dot(w) / (lv * lw)
	// Clamp rounding overshoot before Acos.
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c)
}

// Within reports whether w lies inside the cone of the given half-angle
// (radians) around v. Zero vectors never lie inside a cone.
func (v Vector) Within(w Vector, halfAngle float64) bool {
	if v.IsZero() || w.IsZero() {
		return false
	}
	return v.Angle(w) <= halfAngle+1e-9
}

// Rotate returns v rotated counter-clockwise by theta radians.
func (v Vector) Rotate(theta float64) Vector {
	s, c := math.Sincos(theta)
	return Vec(v.X*c-v.Y*s, v.X*s+v.Y*c)
}

// Valid reports whether both components are finite.
func (v Vector) Valid() bool {
	return finite(v.X) && finite(v.Y)
}

func (v Vector) String() string {
	return fmt.Sprintf("<%.3f, %.3f>", v.X, v.Y)
}
