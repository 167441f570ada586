package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/app"
)

var errSquareDisabled = errors.New("square sync is disabled: set MARKETPREP_TOKEN_ENCRYPTION_KEY")

func newJobCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect or run cron-worker jobs once",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the jobs the cron worker would register with this config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withServices(cmd.Context(), func(_ context.Context, rt *app.Runtime, svcs *app.Services) error {
				registry, err := rt.CronRegistry(svcs)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), registry.Names())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run one job immediately, without the cron lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withServices(cmd.Context(), func(ctx context.Context, rt *app.Runtime, svcs *app.Services) error {
				registry, err := rt.CronRegistry(svcs)
				if err != nil {
					return err
				}
				job, ok := registry.Lookup(args[0])
				if !ok {
					return fmt.Errorf("job %q is not registered (have %v)", args[0], registry.Names())
				}
				if err := job.Run(ctx); err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]any{"job": job.Name(), "ok": true})
			})
		},
	})
	return cmd
}
