package agents

import "fmt"

// MaxLogLines bounds an undrained log buffer; the oldest lines go first.
const MaxLogLines = 1000

// logBuffer is written by its agent during Update and drained by the
// driver between ticks.
type logBuffer struct {
	lines   []string
	dropped int
}

// Log appends a formatted line to the agent's buffer.
func (h *Human) Log(format string, args ...any) {
	b := &h.log
	if len(b.lines) >= MaxLogLines {
		b.lines = b.lines[1:]
		b.dropped++
	}
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

// TakeLog returns the buffered lines and empties the buffer. Each line is
// returned exactly once.
func (h *Human) TakeLog() []string {
	b := &h.log
	if b.dropped > 0 {
		b.lines = append([]string{fmt.Sprintf("%d earlier lines dropped", b.dropped)}, b.lines...)
		b.dropped = 0
	}
	out := b.lines
	b.lines = nil
	return out
}
