// Simulation updates every actor on the map once per tick and performs
// removals between ticks.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/crowdsim/internal/agents"
	"github.com/talgya/crowdsim/internal/world"
)

// LogLine is one drained agent log line.
type LogLine struct {
	Tick  uint64 `json:"tick" db:"tick"`
	Agent string `json:"agent" db:"agent"` // agent ID
	Name  string `json:"name" db:"name"`
	Text  string `json:"text" db:"text"`
}

// Sink receives drained agent log lines once per tick.
type Sink interface {
	WriteLog(lines []LogLine) error
}

// Logger is an actor with a drainable log buffer.
type Logger interface {
	TakeLog() []string
}

// SimStats tracks aggregate statistics.
type SimStats struct {
	Tick     uint64 `json:"tick" db:"tick"`
	Actors   int    `json:"actors" db:"actors"`
	Removed  int    `json:"removed" db:"removed"`
	Queuing  int    `json:"queuing" db:"queuing"`
	Achieved int    `json:"achieved" db:"achieved"` // goals of actors still on the map plus removed ones
	Failed   int    `json:"failed" db:"failed"`
	LogLines int    `json:"log_lines" db:"log_lines"`
}

// Ending decides whether the run is over.
type Ending func(s *Simulation) bool

// NoActors ends the run once every actor has been removed.
func NoActors() Ending {
	return func(s *Simulation) bool { return len(s.Map.Actors()) == 0 }
}

// AfterTicks ends the run after n ticks.
func AfterTicks(n uint64) Ending {
	return func(s *Simulation) bool { return s.LastTick >= n }
}

// Simulation holds the map and the driver state around it.
type Simulation struct {
	Map        *world.Map
	Sink       Sink
	TickMillis int
	Endings    []Ending
	LastTick   uint64 // Most recent tick processed

	Stats SimStats

	removedAchieved int
	removedFailed   int
	sinkErrors      int
}

// NewSimulation creates a simulation over m.
func NewSimulation(m *world.Map, tickMillis int, endings ...Ending) (*Simulation, error) {
	if m == nil {
		return nil, fmt.Errorf("simulation: nil map")
	}
	if err := ValidateTick(tickMillis); err != nil {
		return nil, err
	}
	return &Simulation{Map: m, TickMillis: tickMillis, Endings: endings}, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// Init is called once before the first tick.
func (s *Simulation) Init() error {
	if err := ValidateTick(s.TickMillis); err != nil {
		return err
	}
	s.updateStats(0)
	slog.Info("simulation initialised",
		"actors", s.Stats.Actors,
		"components", s.Map.Len(),
		"width", s.Map.Width(),
		"height", s.Map.Height(),
		"tick_ms", s.TickMillis,
	)
	return nil
}

// Step runs one tick: every actor updates once, in registration order.
// Actors asking to leave are then removed, and all logs are drained.
func (s *Simulation) Step(tick uint64) {
	s.LastTick = tick
	actors := s.Map.Actors()
	for _, a := range actors {
		if a.Destroyed() {
			continue
		}
		a.Update(s.TickMillis)
	}

	var lines []LogLine
	removed := 0
	for _, a := range actors {
		if a.Destroyed() {
			continue
		}
		lines = s.drain(lines, tick, a)
		if !a.ShouldRemove() {
			continue
		}
		if h, ok := a.(*agents.Human); ok {
			s.removedAchieved += h.Strategic().Goals.Achieved()
			s.removedFailed += h.Strategic().Goals.Failed()
		}
		if err := s.Map.Remove(a); err != nil {
			slog.Warn("remove failed", "tick", tick, "error", err)
			continue
		}
		removed++
	}
	if len(lines) > 0 && s.Sink != nil {
		if err := s.Sink.WriteLog(lines); err != nil {
			s.sinkErrors++
			if s.sinkErrors == 1 {
				slog.Error("log sink write failed", "tick", tick, "error", err)
			}
		}
	}

	s.Stats.Removed += removed
	s.Stats.LogLines += len(lines)
	s.updateStats(tick)
	if removed > 0 {
		slog.Debug("actors removed", "tick", tick, "removed", removed, "remaining", s.Stats.Actors)
	}
}

func (s *Simulation) drain(lines []LogLine, tick uint64, a world.Actor) []LogLine {
	l, ok := a.(Logger)
	if !ok {
		return lines
	}
	id, name := "", fmt.Sprint(a)
	if h, ok := a.(*agents.Human); ok {
		id, name = h.ID().String(), h.Name()
	}
	for _, text := range l.TakeLog() {
		lines = append(lines, LogLine{Tick: tick, Agent: id, Name: name, Text: text})
	}
	return lines
}

// Done reports whether any ending condition holds.
func (s *Simulation) Done() bool {
	for _, end := range s.Endings {
		if end(s) {
			return true
		}
	}
	return false
}

func (s *Simulation) updateStats(tick uint64) {
	actors := s.Map.Actors()
	achieved, failed, queuing := s.removedAchieved, s.removedFailed, 0
	for _, a := range actors {
		h, ok := a.(*agents.Human)
		if !ok {
			continue
		}
		achieved += h.Strategic().Goals.Achieved()
		failed += h.Strategic().Goals.Failed()
		if h.Queuing() {
			queuing++
		}
	}
	s.Stats.Tick = tick
	s.Stats.Actors = len(actors)
	s.Stats.Achieved = achieved
	s.Stats.Failed = failed
	s.Stats.Queuing = queuing
}

// Report logs a one-line summary, used on the minute callback.
func (s *Simulation) Report() {
	slog.Info("simulation report",
		"tick", s.LastTick,
		"time", SimTime(s.LastTick, s.TickMillis),
		"actors", s.Stats.Actors,
		"queuing", s.Stats.Queuing,
		"removed", s.Stats.Removed,
		"achieved", s.Stats.Achieved,
		"failed", s.Stats.Failed,
	)
}
