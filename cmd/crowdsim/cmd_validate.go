package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/crowdsim/internal/entropy"
	"github.com/talgya/crowdsim/internal/scenario"
	"github.com/talgya/crowdsim/internal/world"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario and the run configuration without running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			// Building catches geometry errors the document check cannot.
			w, err := sc.Build(entropy.New(cfg.Run.Seed))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d humans, %d obstacles, %.1f × %.1f)\n",
				sc.Name, len(w.Humans), w.Map.Count(world.TagObstacle), w.Map.Width(), w.Map.Height())
			return nil
		},
	}
}
