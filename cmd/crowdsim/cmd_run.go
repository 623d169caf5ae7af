package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/crowdsim/internal/api"
	"github.com/talgya/crowdsim/internal/config"
	"github.com/talgya/crowdsim/internal/engine"
	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/logging"
	"github.com/talgya/crowdsim/internal/persistence"
	"github.com/talgya/crowdsim/internal/scenario"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario until every agent has left or the tick limit is hit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			path, _ := cmd.Flags().GetString("scenario")
			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}
			w, err := sc.Build(entropy.New(cfg.Run.Seed))
			if err != nil {
				return err
			}

			endings := []engine.Ending{engine.NoActors()}
			if cfg.Run.MaxTicks > 0 {
				endings = append(endings, engine.AfterTicks(cfg.Run.MaxTicks))
			}
			sim, err := engine.NewSimulation(w.Map, cfg.Run.TickMillis, endings...)
			if err != nil {
				return err
			}

			// ── Storage ───────────────────────────────────────────────
			var db *persistence.DB
			if cfg.Storage.DB != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.Storage.DB), 0755); err != nil {
					return fmt.Errorf("create db directory: %w", err)
				}
				db, err = persistence.Open(cfg.Storage.DB)
				if err != nil {
					return err
				}
				defer db.Close()
				for k, v := range map[string]string{
					"scenario": sc.Name,
					"seed":     strconv.FormatInt(cfg.Run.Seed, 10),
				} {
					if err := db.SaveMeta(k, v); err != nil {
						return fmt.Errorf("save meta: %w", err)
					}
				}
				sim.Sink = db
				slog.Info("database opened", "path", cfg.Storage.DB)
			} else {
				sim.Sink = logging.NewLineSink(logger)
			}

			// ── Engine ────────────────────────────────────────────────
			eng, err := engine.NewEngine(cfg.Run.TickMillis)
			if err != nil {
				return err
			}
			eng.Speed = cfg.Run.Speed
			eng.OnTick = sim.Step
			eng.Done = sim.Done

			// ── HTTP API ──────────────────────────────────────────────
			var srv *api.Server
			if cfg.API.Addr != "" {
				srv = api.NewServer(sc.Name, eng, db, cfg.API.AdminKey)
				eng.OnTick = func(tick uint64) {
					srv.Apply(sim)
					sim.Step(tick)
				}
				httpSrv := srv.Start(cfg.API.Addr)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := httpSrv.Shutdown(ctx); err != nil {
						slog.Warn("HTTP shutdown failed", "error", err)
					}
				}()
			}

			seconds := 0
			eng.OnSecond = func(tick uint64) {
				if srv != nil {
					srv.Publish(sim)
				}
				seconds++
				every := cfg.Storage.StatsEverySeconds
				if db == nil || every == 0 || seconds%every != 0 {
					return
				}
				if err := db.SaveStats(sim.Stats); err != nil {
					slog.Warn("stats snapshot failed", "tick", tick, "error", err)
				}
			}
			eng.OnMinute = func(uint64) { sim.Report() }

			if err := sim.Init(); err != nil {
				return err
			}
			if srv != nil {
				srv.Publish(sim)
			}

			sigCh := make(chan os.Signal, 1)
			done := make(chan struct{})
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					slog.Info("received signal, shutting down", "signal", sig)
					eng.Stop()
				case <-done:
				}
			}()

			if cfg.Run.Realtime {
				eng.Run()
			} else {
				eng.RunFor(0)
			}
			close(done)

			sim.Report()
			if srv != nil {
				srv.Publish(sim)
			}
			if db != nil {
				if err := db.SaveRun(sim); err != nil {
					return fmt.Errorf("final save: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ticks (%s), %d achieved, %d failed, %d removed, %d remaining\n",
				sc.Name, sim.LastTick, engine.SimTime(sim.LastTick, sim.TickMillis),
				sim.Stats.Achieved, sim.Stats.Failed, sim.Stats.Removed, sim.Stats.Actors)
			return nil
		},
	}

	cmd.Flags().String("scenario", "", "Scenario file (YAML)")
	cmd.Flags().Uint64("ticks", 0, "Stop after this many ticks (0 = until every agent leaves)")
	cmd.Flags().String("db", "", "SQLite file for agent logs and stats")
	cmd.Flags().Int64("seed", 0, "Random seed")
	cmd.Flags().Bool("realtime", false, "Pace ticks against the wall clock")
	cmd.Flags().String("api", "", "Serve run status over HTTP on this address (e.g. :8080)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

// loadConfig reads the config file and environment, then applies any
// flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Run.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("ticks") {
		cfg.Run.MaxTicks, _ = flags.GetUint64("ticks")
	}
	if flags.Changed("db") {
		cfg.Storage.DB, _ = flags.GetString("db")
	}
	if flags.Changed("realtime") {
		cfg.Run.Realtime, _ = flags.GetBool("realtime")
	}
	if flags.Changed("api") {
		cfg.API.Addr, _ = flags.GetString("api")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
