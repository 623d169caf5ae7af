// Package persistence provides SQLite-based storage for run output.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/crowdsim/internal/engine"
)

// DB wraps a SQLite connection holding agent log lines, periodic stats
// snapshots and run metadata.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		agent TEXT NOT NULL,
		name TEXT NOT NULL,
		text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		tick INTEGER PRIMARY KEY,
		actors INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		queuing INTEGER NOT NULL,
		achieved INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		log_lines INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_log_tick ON agent_log(tick);
	CREATE INDEX IF NOT EXISTS idx_agent_log_name ON agent_log(name);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// WriteLog appends drained agent log lines in one transaction.
func (db *DB) WriteLog(lines []engine.LogLine) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO agent_log (tick, agent, name, text) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range lines {
		if _, err := stmt.Exec(l.Tick, l.Agent, l.Name, l.Text); err != nil {
			return fmt.Errorf("insert log line at tick %d: %w", l.Tick, err)
		}
	}

	return tx.Commit()
}

// SaveStats stores a statistics snapshot, replacing any earlier one for
// the same tick.
func (db *DB) SaveStats(s engine.SimStats) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO tick_stats
		(tick, actors, removed, queuing, achieved, failed, log_lines)
		VALUES (:tick, :actors, :removed, :queuing, :achieved, :failed, :log_lines)`, s)
	return err
}

// Stats returns every stored snapshot in tick order.
func (db *DB) Stats() ([]engine.SimStats, error) {
	var out []engine.SimStats
	err := db.conn.Select(&out,
		"SELECT tick, actors, removed, queuing, achieved, failed, log_lines FROM tick_stats ORDER BY tick")
	return out, err
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// SaveRun records the final state of a run.
func (db *DB) SaveRun(sim *engine.Simulation) error {
	if err := db.SaveStats(sim.Stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(sim.CurrentTick(), 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("tick_ms", strconv.Itoa(sim.TickMillis)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("run saved", "tick", sim.CurrentTick(), "log_lines", sim.Stats.LogLines)
	return nil
}

// RecentLog returns the most recent limit log lines, newest first.
func (db *DB) RecentLog(limit int) ([]engine.LogLine, error) {
	var lines []engine.LogLine
	err := db.conn.Select(&lines,
		"SELECT tick, agent, name, text FROM agent_log ORDER BY id DESC LIMIT ?",
		limit,
	)
	return lines, err
}

// AgentLog returns every line logged by the named agent, oldest first.
func (db *DB) AgentLog(name string) ([]engine.LogLine, error) {
	var lines []engine.LogLine
	err := db.conn.Select(&lines,
		"SELECT tick, agent, name, text FROM agent_log WHERE name = ? ORDER BY id",
		name,
	)
	return lines, err
}
