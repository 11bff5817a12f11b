package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raceatlas/racedir-cli/internal/model"
	"github.com/raceatlas/racedir-cli/pkg/runsignup"
)

var refreshSince string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a full source refresh cycle",
	Long:  "Fetches all configured states from RunSignup, imports the batch, marks races unseen past the staleness horizon inactive, and records the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("refresh"); err != nil {
			return err
		}

		client, err := initRunSignup()
		if err != nil {
			return err
		}

		var since time.Time
		if refreshSince != "" {
			since, err = time.Parse("2006-01-02", refreshSince)
			if err != nil {
				return err
			}
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fetch := func(ctx context.Context) ([]model.RawRace, error) {
			records, errs := client.FetchStates(ctx, cfg.Import.States, since)
			if len(errs) > 0 {
				return records, eris.Errorf("%d of %d state partitions failed", len(errs), len(cfg.Import.States))
			}
			return records, nil
		}

		run, err := initImporter(s).Refresh(ctx, runsignup.SourceName, fetch, cfg.Import.InactiveAfter)
		if err != nil {
			return err
		}

		zap.L().Info("refresh recorded",
			zap.String("run_id", run.ID),
			zap.Int("created", run.Stats.Created),
			zap.Int("updated", run.Stats.Updated),
			zap.Int("skipped", run.Stats.Skipped),
			zap.Int("errors", len(run.Stats.Errors)),
			zap.Int("inactive", run.Inactive),
		)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSince, "since", "", "only listings modified after this date (YYYY-MM-DD)")
	rootCmd.AddCommand(refreshCmd)
}
