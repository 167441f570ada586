package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/internal/feedback"
)

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Read vendor feedback",
	}

	var (
		vendor   string
		daysBack int
	)
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Accuracy statistics over recent market days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vendorID, err := parseVendorID(vendor)
			if err != nil {
				return err
			}
			return opts.withServices(cmd.Context(), func(ctx context.Context, _ *app.Runtime, svcs *app.Services) error {
				out, err := svcs.Feedback.Stats(ctx, vendorID, daysBack)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), out)
			})
		},
	}
	stats.Flags().StringVar(&vendor, "vendor", "", "vendor id")
	stats.Flags().IntVar(&daysBack, "days-back", feedback.DefaultDaysBack, "window size in days")
	_ = stats.MarkFlagRequired("vendor")

	cmd.AddCommand(stats)
	return cmd
}
