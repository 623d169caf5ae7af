package goal

import (
	"log/slog"
	"slices"
)

// Module owns an agent's goals and tallies their outcomes.
type Module struct {
	goals    []*Goal
	achieved int
	failed   int
	log      func(format string, args ...any)
}

// NewModule creates a goal module. log receives one line per resolved goal
// and may be nil.
func NewModule(log func(format string, args ...any)) *Module {
	return &Module{log: log}
}

// Add appends goals in priority order. Nil goals are skipped.
func (m *Module) Add(goals ...*Goal) {
	for _, g := range goals {
		if g != nil {
			m.goals = append(m.goals, g)
		}
	}
}

// Goals returns every goal in insertion order.
func (m *Module) Goals() []*Goal { return slices.Clone(m.goals) }

// InProgress returns the unresolved goals in insertion order.
func (m *Module) InProgress() []*Goal {
	var out []*Goal
	for _, g := range m.goals {
		if !g.Resolved() {
			out = append(out, g)
		}
	}
	return out
}

// Update advances every unresolved goal by one tick.
func (m *Module) Update(tickMillis int) {
	for _, g := range m.goals {
		if g.Resolved() {
			continue
		}
		g.Update(tickMillis)
		switch g.State() {
		case Achieved:
			m.achieved++
		case Failed:
			m.failed++
		default:
			continue
		}
		slog.Debug("goal resolved", "goal", g.Name(), "state", g.State(), "elapsed_ms", g.Elapsed())
		if m.log != nil {
			m.log("goal %s %s after %dms", g.Name(), g.State(), g.Elapsed())
		}
	}
}

// Achieved returns how many goals were achieved.
func (m *Module) Achieved() int { return m.achieved }

// Failed returns how many goals failed.
func (m *Module) Failed() int { return m.failed }

// Done reports whether every goal is resolved.
func (m *Module) Done() bool {
	return m.achieved+m.failed == len(m.goals)
}
