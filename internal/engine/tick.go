// Package engine provides the tick-based simulation loop.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Tick bounds, in simulated milliseconds.
const (
	DefaultTickMillis = 100
	MaxTickMillis     = 1000
)

// ErrInvalidTick is returned for a tick length outside (0, MaxTickMillis].
var ErrInvalidTick = errors.New("tick length must be in (0, 1000] milliseconds")

// ValidateTick checks a tick length.
func ValidateTick(tickMillis int) error {
	if tickMillis <= 0 || tickMillis > MaxTickMillis {
		return fmt.Errorf("%w: %d", ErrInvalidTick, tickMillis)
	}
	return nil
}

// Engine drives the simulation forward.
type Engine struct {
	Tick       uint64        // Current tick counter (monotonic, never resets)
	TickMillis int           // Simulated time per tick
	Speed      float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval   time.Duration // Wall-clock time per tick at speed 1

	running atomic.Bool

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnSecond func(tick uint64) // Each simulated second
	OnMinute func(tick uint64) // Each simulated minute

	// Done reports the ending condition; Run and RunFor stop when it
	// returns true.
	Done func() bool
}

// NewEngine creates an engine running in real time.
func NewEngine(tickMillis int) (*Engine, error) {
	if err := ValidateTick(tickMillis); err != nil {
		return nil, err
	}
	return &Engine{
		TickMillis: tickMillis,
		Speed:      1.0,
		Interval:   time.Duration(tickMillis) * time.Millisecond,
	}, nil
}

// Run starts the paced simulation loop. Blocks until Stop is called or the
// ending condition holds.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed, "tick_ms", e.TickMillis)

	for e.running.Load() && !e.done() {
		if e.Speed <= 0 {
			// Paused; sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	e.running.Store(false)
	slog.Info("simulation engine stopped", "tick", e.Tick, "time", SimTime(e.Tick, e.TickMillis))
}

// RunFor advances up to n ticks as fast as possible and returns how many
// ran. n <= 0 runs until the ending condition holds.
func (e *Engine) RunFor(n int) int {
	e.running.Store(true)
	defer e.running.Store(false)
	ran := 0
	for e.running.Load() && !e.done() && (n <= 0 || ran < n) {
		e.step()
		ran++
	}
	return ran
}

// Stop halts the loop after the current tick. Safe to call from another
// goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether a loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Elapsed returns the simulated time.
func (e *Engine) Elapsed() time.Duration {
	return time.Duration(e.Tick) * time.Duration(e.TickMillis) * time.Millisecond
}

func (e *Engine) done() bool { return e.Done != nil && e.Done() }

// step advances the simulation by one tick.
func (e *Engine) step() {
	before := e.Tick * uint64(e.TickMillis)
	e.Tick++
	now := e.Tick * uint64(e.TickMillis)

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if now/1000 > before/1000 && e.OnSecond != nil {
		e.OnSecond(e.Tick)
	}
	if now/60000 > before/60000 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}
}

// SimTime formats the simulated time at tick as H:MM:SS.mmm.
func SimTime(tick uint64, tickMillis int) string {
	ms := tick * uint64(tickMillis)
	hours := ms / 3600000
	minutes := ms / 60000 % 60
	seconds := ms / 1000 % 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, ms%1000)
}
