package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/internal/squaresync"
)

func newSquareCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "square",
		Short: "Link and sync Square POS accounts",
	}
	cmd.AddCommand(newSquareLinkCmd(opts), newSquareSyncCmd(opts))
	return cmd
}

func newSquareLinkCmd(opts *rootOptions) *cobra.Command {
	var (
		vendor, merchant, access, refresh, expires string
		locations                                  []string
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Store OAuth tokens from a completed Square authorization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vendorID, err := parseVendorID(vendor)
			if err != nil {
				return err
			}
			input := squaresync.LinkInput{
				MerchantID:   strings.TrimSpace(merchant),
				AccessToken:  strings.TrimSpace(access),
				RefreshToken: strings.TrimSpace(refresh),
				LocationIDs:  locations,
			}
			if expires != "" {
				if input.ExpiresAt, err = time.Parse(time.RFC3339, expires); err != nil {
					return fmt.Errorf("invalid --expires-at %q (want RFC3339)", expires)
				}
			}
			return opts.withServices(cmd.Context(), func(ctx context.Context, _ *app.Runtime, svcs *app.Services) error {
				if svcs.SquareSync == nil {
					return errSquareDisabled
				}
				if err := svcs.SquareSync.Link(ctx, vendorID, input); err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]any{
					"vendor_id":   vendorID,
					"merchant_id": input.MerchantID,
					"linked":      true,
				})
			})
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor id")
	cmd.Flags().StringVar(&merchant, "merchant", "", "Square merchant id")
	cmd.Flags().StringVar(&access, "access-token", "", "Square access token")
	cmd.Flags().StringVar(&refresh, "refresh-token", "", "Square refresh token")
	cmd.Flags().StringVar(&expires, "expires-at", "", "access token expiry (RFC3339)")
	cmd.Flags().StringSliceVar(&locations, "location", nil, "Square location id to import as a venue (repeatable)")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("merchant")
	_ = cmd.MarkFlagRequired("access-token")
	return cmd
}

func newSquareSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		vendor string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull catalog and sales for one vendor, or every linked vendor with --all",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all == (vendor != "") {
				return fmt.Errorf("pass exactly one of --vendor or --all")
			}
			return opts.withServices(cmd.Context(), func(ctx context.Context, _ *app.Runtime, svcs *app.Services) error {
				if svcs.SquareSync == nil {
					return errSquareDisabled
				}
				if all {
					results, err := svcs.SquareSync.SyncAll(ctx)
					if perr := opts.print(cmd.OutOrStdout(), results); perr != nil {
						return perr
					}
					return err
				}
				vendorID, err := parseVendorID(vendor)
				if err != nil {
					return err
				}
				result, err := svcs.SquareSync.Sync(ctx, vendorID)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor id")
	cmd.Flags().BoolVar(&all, "all", false, "sync every linked vendor")
	return cmd
}
