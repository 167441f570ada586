// Command marketprepctl is the operator CLI: link and sync Square accounts,
// inspect model artifacts, generate recommendations and read feedback stats
// for a vendor without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/marketprep-backend/internal/app"
	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/logger"
)

type rootOptions struct {
	envFile string
	output  string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "marketprepctl",
		Short:         "Operate MarketPrep vendors, syncs and models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := parseFormat(opts.output); err != nil {
				return err
			}
			if opts.envFile != "" {
				return godotenv.Load(opts.envFile)
			}
			_ = godotenv.Load()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading config")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		newSquareCmd(opts),
		newModelCmd(opts),
		newRecommendCmd(opts),
		newFeedbackCmd(opts),
		newJobCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel("warn")
	if o.verbose {
		level = logger.ParseLevel("debug")
	} else if cfg != nil && cfg.App.LogLevel != "" {
		level = logger.ParseLevel(cfg.App.LogLevel)
	}
	return logger.New(logger.Options{
		ServiceName: "marketprepctl",
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
	})
}

// withServices boots the runtime for one command and tears it down after.
func (o *rootOptions) withServices(ctx context.Context, fn func(ctx context.Context, rt *app.Runtime, svcs *app.Services) error) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Service.Kind = "marketprepctl"

	rt, err := app.New(ctx, cfg, o.logger(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	svcs, err := rt.Services()
	if err != nil {
		return err
	}
	return fn(ctx, rt, svcs)
}

func (o *rootOptions) print(w io.Writer, v any) error {
	format, err := parseFormat(o.output)
	if err != nil {
		return err
	}
	return render(w, format, v)
}
