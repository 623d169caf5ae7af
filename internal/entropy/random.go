// Package entropy provides the deterministic random source handed to every
// stochastic part of a simulation run. There is no package-level random
// state: two runs built from the same seed replay identically.
package entropy

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// namespace scopes generated agent identities.
var namespace = uuid.MustParse("6f1c7a52-9d1e-4b43-8a57-3c2e1f0d9b44")

// Source is a seeded random stream. A Source is not safe for concurrent
// use; ticks are single-threaded.
type Source struct {
	seed   int64
	rng    *rand.Rand
	nextID uint64
}

// New creates a source for the given seed.
func New(seed int64) *Source {
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// Fork derives an independent child stream. Children forked with the same
// salt from sources with the same seed are identical.
func (s *Source) Fork(salt int64) *Source {
	return New(mix(s.seed, salt))
}

// Float returns a float64 in [0, 1).
func (s *Source) Float() float64 { return s.rng.Float64() }

// Range returns a float64 in [lo, hi).
func (s *Source) Range(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Normal returns a normally distributed value with the given mean and
// standard deviation.
func (s *Source) Normal(mean, stddev float64) float64 {
	return mean + s.rng.NormFloat64()*stddev
}

// Intn returns an int in [0, n).
func (s *Source) Intn(n int) int { return s.rng.Intn(n) }

// Chance returns true with probability p.
func (s *Source) Chance(p float64) bool { return s.rng.Float64() < p }

// Angle returns a uniform angle in [0, 2π).
func (s *Source) Angle() float64 { return s.rng.Float64() * 2 * math.Pi }

// NewID returns the next identity in this source's sequence. IDs are
// name-based UUIDs of (seed, sequence), so a replayed run reissues them.
func (s *Source) NewID() uuid.UUID {
	s.nextID++
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(s.seed))
	binary.BigEndian.PutUint64(buf[8:], s.nextID)
	return uuid.NewSHA1(namespace, buf[:])
}

// Noise returns a smooth 2D noise field seeded from this source.
func (s *Source) Noise(salt int64) Noise {
	return Noise{field: opensimplex.NewNormalized(mix(s.seed, salt))}
}

// Noise is a coherent noise field with values in [0, 1).
type Noise struct {
	field opensimplex.Noise
}

// At samples the field.
func (n Noise) At(x, y float64) float64 {
	return n.field.Eval2(x, y)
}

// Heading maps the field at (x, y) to an angle in [0, 2π).
func (n Noise) Heading(x, y float64) float64 {
	return n.field.Eval2(x, y) * 2 * math.Pi
}

// mix combines a seed with a salt (splitmix64 finaliser).
func mix(seed, salt int64) int64 {
	z := uint64(seed) + uint64(salt)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
