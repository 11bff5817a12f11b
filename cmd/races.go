package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var markInactiveHorizon time.Duration

var racesCmd = &cobra.Command{
	Use:   "races",
	Short: "Directory maintenance commands",
}

var markInactiveCmd = &cobra.Command{
	Use:   "mark-inactive",
	Short: "Mark races unseen past the staleness horizon as inactive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		horizon := markInactiveHorizon
		if horizon == 0 {
			horizon = cfg.Import.InactiveAfter
		}

		n, err := initImporter(s).MarkInactive(ctx, horizon)
		if err != nil {
			return err
		}

		zap.L().Info("mark-inactive complete",
			zap.Int("marked", n),
			zap.Duration("horizon", horizon),
		)
		return nil
	},
}

var lastRunCmd = &cobra.Command{
	Use:   "last-run",
	Short: "Show the most recent import run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		run, err := s.LastImportRun(ctx)
		if err != nil {
			return err
		}
		if run == nil {
			zap.L().Info("no import runs recorded")
			return nil
		}

		zap.L().Info("last import run",
			zap.String("run_id", run.ID),
			zap.String("source", run.Source),
			zap.Int("created", run.Stats.Created),
			zap.Int("updated", run.Stats.Updated),
			zap.Int("skipped", run.Stats.Skipped),
			zap.Int("errors", len(run.Stats.Errors)),
			zap.Int("inactive", run.Inactive),
			zap.Time("started_at", run.StartedAt),
			zap.Time("finished_at", run.FinishedAt),
		)
		return nil
	},
}

func init() {
	markInactiveCmd.Flags().DurationVar(&markInactiveHorizon, "horizon", 0, "staleness horizon (default from config)")
	racesCmd.AddCommand(markInactiveCmd)
	racesCmd.AddCommand(lastRunCmd)
	rootCmd.AddCommand(racesCmd)
}
