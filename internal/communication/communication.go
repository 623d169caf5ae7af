// Package communication dispatches typed messages to an agent's movement,
// navigation and activity state. Delivery is synchronous and
// fire-and-forget: each message applies immediately, so the last message of
// a tick wins.
package communication

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/movement"
	"github.com/talgya/crowdsim/internal/navigation"
)

// Command is a message type.
type Command uint8

const (
	CommandWait   Command = iota + 1 // payload: seconds (float64) or -1
	CommandGoto                      // payload: geom.Position
	CommandSearch                    // payload: seconds (float64)
)

func (c Command) String() string {
	switch c {
	case CommandWait:
		return "WAIT"
	case CommandGoto:
		return "GOTO"
	case CommandSearch:
		return "SEARCH"
	default:
		return "UNKNOWN"
	}
}

// ErrUnknownCommand is returned by ParseCommand.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand maps a command name, as printed by String, to a Command.
func ParseCommand(s string) (Command, error) {
	for _, c := range []Command{CommandWait, CommandGoto, CommandSearch} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// SearchFunc handles a SEARCH command. It reports whether anything
// accepted the search.
type SearchFunc func(seconds float64) bool

// Module is an agent's inbox.
type Module struct {
	mov    *movement.Module
	nav    *navigation.Module
	search SearchFunc
	last   Command
}

// New creates a communication module. Either collaborator may be nil, in
// which case the commands targeting it are ignored.
func New(mov *movement.Module, nav *navigation.Module) *Module {
	return &Module{mov: mov, nav: nav}
}

// OnSearch installs the SEARCH handler, usually the activity module.
func (c *Module) OnSearch(fn SearchFunc) {
	c.search = fn
}

// Last returns the last command that was applied.
func (c *Module) Last() Command { return c.last }

// Communicate delivers cmd with payload. Unknown commands and mismatched
// payloads are ignored.
func (c *Module) Communicate(cmd Command, payload any) {
	if c.apply(cmd, payload) {
		c.last = cmd
		return
	}
	slog.Debug("message ignored", "command", cmd, "payload", payload)
}

func (c *Module) apply(cmd Command, payload any) bool {
	switch cmd {
	case CommandWait:
		secs, ok := seconds(payload)
		if !ok || c.mov == nil {
			return false
		}
		return c.mov.Stop(secs) == nil
	case CommandGoto:
		p, ok := payload.(geom.Position)
		if !ok || !p.Valid() || c.nav == nil {
			return false
		}
		c.nav.SetGoal(p)
		if c.mov != nil {
			c.mov.Resume()
		}
		return true
	case CommandSearch:
		secs, ok := seconds(payload)
		if !ok || secs < 0 || c.search == nil {
			return false
		}
		return c.search(secs)
	}
	return false
}

// seconds accepts the numeric payload types callers commonly send.
func seconds(payload any) (float64, bool) {
	var v float64
	switch p := payload.(type) {
	case float64:
		v = p
	case float32:
		v = float64(p)
	case int:
		v = float64(p)
	case int64:
		v = float64(p)
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
