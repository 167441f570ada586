package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/features"
	"github.com/angelmondragon/marketprep-backend/internal/predictor"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/storage/gcs"
)

type modelReport struct {
	Path           string   `json:"path"`
	ModelVersion   string   `json:"model_version"`
	SchemaVersion  string   `json:"schema_version"`
	ExpectedSchema string   `json:"expected_schema"`
	Features       []string `json:"features"`
	Trees          int      `json:"trees"`
}

func newModelCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Work with trained model artifacts",
	}
	cmd.AddCommand(newModelInspectCmd(opts))
	return cmd
}

func newModelInspectCmd(opts *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Load an artifact and check it against the current feature schema",
		Long: "Loads a model from a local path or gs://bucket/object and validates it the\n" +
			"same way the API does before serving it. Defaults to MARKETPREP_MODEL_PATH.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := inspectModel(cmd.Context(), opts, path)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "artifact path (local file or gs://bucket/object)")
	return cmd
}

func inspectModel(ctx context.Context, opts *rootOptions, path string) (*modelReport, error) {
	var objects predictor.ObjectStore
	path = strings.TrimSpace(path)
	// Local artifacts need no configuration; gs:// and the default path do.
	if path == "" || strings.HasPrefix(path, "gs://") {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if path == "" {
			path = cfg.Model.Path
		}
		if path == "" {
			return nil, fmt.Errorf("no model path configured; pass --path")
		}
		if strings.HasPrefix(path, "gs://") {
			client, err := gcs.NewClient(ctx, cfg.GCP, opts.logger(cfg))
			if err != nil {
				return nil, err
			}
			objects = client
		}
	}

	loader, err := predictor.NewLoader(path, objects, opts.logger(nil))
	if err != nil {
		return nil, err
	}
	if _, err := loader.Reload(ctx); err != nil {
		return nil, err
	}
	forest := loader.Current()
	return &modelReport{
		Path:           path,
		ModelVersion:   forest.ModelVersion,
		SchemaVersion:  forest.SchemaVersion,
		ExpectedSchema: features.SchemaVersion,
		Features:       forest.FeatureNames,
		Trees:          len(forest.Trees),
	}, nil
}
