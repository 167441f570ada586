package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/internal/recommendations"
)

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var (
		vendor, venue, date string
		products            []string
		list                bool
		limit               int
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate (or with --list, read back) recommendations for a market day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vendorID, err := parseVendorID(vendor)
			if err != nil {
				return err
			}
			venueIDs, err := parseIDs("--venue", []string{venue})
			if err != nil {
				return err
			}
			marketDate, err := parseMarketDate(date)
			if err != nil {
				return err
			}

			if list {
				return opts.withServices(cmd.Context(), func(ctx context.Context, _ *app.Runtime, svcs *app.Services) error {
					recs, err := svcs.Recommendations.List(ctx, vendorID, recommendations.ListInput{
						MarketDate: &marketDate,
						VenueID:    &venueIDs[0],
						Limit:      limit,
					})
					if err != nil {
						return err
					}
					return opts.print(cmd.OutOrStdout(), recs)
				})
			}

			productIDs, err := parseIDs("--product", products)
			if err != nil {
				return err
			}
			return opts.withServices(cmd.Context(), func(ctx context.Context, _ *app.Runtime, svcs *app.Services) error {
				recs, err := svcs.Recommendations.Generate(ctx, vendorID, recommendations.GenerateInput{
					MarketDate: marketDate,
					VenueID:    venueIDs[0],
					ProductIDs: productIDs,
				})
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), recs)
			})
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor id")
	cmd.Flags().StringVar(&venue, "venue", "", "venue id")
	cmd.Flags().StringVar(&date, "date", "", "market date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&products, "product", nil, "product id (repeatable)")
	cmd.Flags().BoolVar(&list, "list", false, "list stored recommendations instead of generating")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows for --list")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
