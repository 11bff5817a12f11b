package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raceatlas/racedir-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "racedir",
	Short: "Race directory ingestion and deduplication pipeline",
	Long:  "Pulls race listings from registration providers, normalizes and deduplicates them against the directory, scores listing quality, and retires events that drop out of their source.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
