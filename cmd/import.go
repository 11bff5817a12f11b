package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/raceatlas/racedir-cli/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import raw race records from a JSON or YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		records, err := readRecords(importFilePath)
		if err != nil {
			return err
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stats := initImporter(s).ProcessImport(ctx, records)

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("created", stats.Created),
			zap.Int("updated", stats.Updated),
			zap.Int("skipped", stats.Skipped),
			zap.Int("errors", len(stats.Errors)),
		)
		for _, msg := range stats.Errors {
			zap.L().Warn(msg)
		}
		return nil
	},
}

// readRecords loads raw races from a file, picking the codec by
// extension.
func readRecords(path string) ([]model.RawRace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read input file")
	}

	var records []model.RawRace
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, eris.Wrap(err, "parse yaml input")
		}
	case ".json":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, eris.Wrap(err, "parse json input")
		}
	default:
		return nil, eris.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
	return records, nil
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to JSON or YAML file of raw races (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
