// Package api serves a running simulation over HTTP.
// GET endpoints are public (read-only observation of published snapshots).
// POST endpoints require a bearer token and are applied on the engine
// goroutine at the start of the next tick.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/crowdsim/internal/agents"
	"github.com/talgya/crowdsim/internal/communication"
	"github.com/talgya/crowdsim/internal/engine"
	"github.com/talgya/crowdsim/internal/geom"
	"github.com/talgya/crowdsim/internal/persistence"
)

// QueueSize bounds the control requests waiting for the next tick.
const QueueSize = 64

// ErrBusy is returned when the control queue is full.
var ErrBusy = errors.New("control queue full")

// AgentView is one agent as seen in a snapshot.
type AgentView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Location string  `json:"location,omitempty"`
	Activity string  `json:"activity,omitempty"`
	Queuing  bool    `json:"queuing"`
	Achieved int     `json:"achieved"`
	Failed   int     `json:"failed"`
}

// Snapshot is the state published once per simulated second.
type Snapshot struct {
	Scenario string          `json:"scenario"`
	Tick     uint64          `json:"tick"`
	SimTime  string          `json:"sim_time"`
	Speed    float64         `json:"speed"`
	Stats    engine.SimStats `json:"stats"`
	Agents   []AgentView     `json:"agents"`
}

// control is a change to the run, applied between ticks.
type control func(sim *engine.Simulation)

// Server serves the run state over HTTP.
type Server struct {
	Scenario string
	Eng      *engine.Engine
	DB       *persistence.DB // optional; history endpoints answer 404 without it
	AdminKey string          // Bearer token for POST endpoints. Empty = POST disabled.

	snap     atomic.Pointer[Snapshot]
	controls chan control
	limiter  *RateLimiter
}

// NewServer creates a server for a run of scenario driven by eng.
func NewServer(scenario string, eng *engine.Engine, db *persistence.DB, adminKey string) *Server {
	return &Server{
		Scenario: scenario,
		Eng:      eng,
		DB:       db,
		AdminKey: adminKey,
		controls: make(chan control, QueueSize),
		limiter:  NewRateLimiter(60, time.Minute),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agents/{name}/log", s.handleAgentLog)
	mux.HandleFunc("GET /api/v1/log", s.handleLog)
	mux.HandleFunc("GET /api/v1/stats/history", s.handleStatsHistory)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/stop", s.adminOnly(s.handleStop))
	mux.HandleFunc("POST /api/v1/speed", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleSpeed)))
	mux.HandleFunc("POST /api/v1/command", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleCommand)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Publish records the current state for readers. Call it from the engine
// goroutine.
func (s *Server) Publish(sim *engine.Simulation) {
	snap := &Snapshot{
		Scenario: s.Scenario,
		Tick:     sim.LastTick,
		SimTime:  engine.SimTime(sim.LastTick, sim.TickMillis),
		Speed:    s.Eng.Speed,
		Stats:    sim.Stats,
		Agents:   []AgentView{},
	}
	for _, a := range sim.Map.Actors() {
		h, ok := a.(*agents.Human)
		if !ok {
			continue
		}
		p := h.Position()
		v := AgentView{
			ID:       h.ID().String(),
			Name:     h.Name(),
			X:        p.X,
			Y:        p.Y,
			Queuing:  h.Queuing(),
			Achieved: h.Strategic().Goals.Achieved(),
			Failed:   h.Strategic().Goals.Failed(),
		}
		if b, ok := h.Strategic().Beliefs.Current(); ok {
			v.Location = b.Location
		}
		if act := h.Tactical().Activities.Current(); act != nil {
			v.Activity = act.Name()
		}
		snap.Agents = append(snap.Agents, v)
	}
	s.snap.Store(snap)
}

// Snapshot returns the last published state, or nil before the first
// Publish.
func (s *Server) Snapshot() *Snapshot { return s.snap.Load() }

// Apply runs every queued control. Call it from the engine goroutine
// before the tick's step.
func (s *Server) Apply(sim *engine.Simulation) int {
	n := 0
	for {
		select {
		case c := <-s.controls:
			c(sim)
			n++
		default:
			return n
		}
	}
}

func (s *Server) enqueue(c control) error {
	select {
	case s.controls <- c:
		return nil
	default:
		return ErrBusy
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no CROWDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"scenario": s.Scenario,
		"running":  s.Eng.Running(),
	}
	if snap := s.snap.Load(); snap != nil {
		status["tick"] = snap.Tick
		status["sim_time"] = snap.SimTime
		status["speed"] = snap.Speed
		status["stats"] = snap.Stats
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.snap.Load()
	if snap == nil {
		writeJSON(w, []AgentView{})
		return
	}
	writeJSON(w, snap.Agents)
}

func (s *Server) handleAgentLog(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusNotFound)
		return
	}
	lines, err := s.DB.AgentLog(r.PathValue("name"))
	if err != nil {
		slog.Error("agent log query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, lines)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusNotFound)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "limit must be 1-1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	lines, err := s.DB.RecentLog(limit)
	if err != nil {
		slog.Error("log query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, lines)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusNotFound)
		return
	}
	stats, err := s.DB.Stats()
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.Eng.Stop()
	slog.Info("stop requested over HTTP")
	writeJSON(w, map[string]bool{"stopping": true})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	// A paused engine never ticks, so it could not apply the next change.
	if req.Speed <= 0 || req.Speed > 1000 {
		http.Error(w, "speed must be in (0, 1000]", http.StatusBadRequest)
		return
	}
	err := s.enqueue(func(*engine.Simulation) {
		s.Eng.Speed = req.Speed
		slog.Info("speed changed", "speed", req.Speed)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]float64{"speed": req.Speed})
}

// CommandRequest is the body of POST /api/v1/command.
type CommandRequest struct {
	Agent   string   `json:"agent"`
	Command string   `json:"command"` // WAIT, GOTO or SEARCH
	Seconds *float64 `json:"seconds,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
}

// payload converts the request into the message payload for cmd.
func (req CommandRequest) payload(cmd communication.Command) (any, error) {
	switch cmd {
	case communication.CommandGoto:
		if req.X == nil || req.Y == nil {
			return nil, fmt.Errorf("%s needs x and y", cmd)
		}
		p := geom.Pos(*req.X, *req.Y)
		if !p.Valid() {
			return nil, fmt.Errorf("%s: invalid position", cmd)
		}
		return p, nil
	default:
		if req.Seconds == nil {
			return nil, fmt.Errorf("%s needs seconds", cmd)
		}
		return *req.Seconds, nil
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Agent == "" {
		http.Error(w, "agent is required", http.StatusBadRequest)
		return
	}
	cmd, err := communication.ParseCommand(req.Command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := req.payload(cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.enqueue(func(sim *engine.Simulation) {
		for _, a := range sim.Map.Actors() {
			if h, ok := a.(*agents.Human); ok && h.Name() == req.Agent {
				h.Communicate(cmd, payload)
				slog.Debug("command delivered", "agent", req.Agent, "command", cmd, "tick", sim.LastTick)
				return
			}
		}
		slog.Warn("command for unknown agent dropped", "agent", req.Agent, "command", cmd)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"agent": req.Agent, "command": cmd.String()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
