// Package cmd defines and implements the CLI commands for the scrollprobe executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/app"
	"github.com/JakeFAU/scrollprobe/internal/config"
	"github.com/JakeFAU/scrollprobe/internal/dom"
	"github.com/JakeFAU/scrollprobe/internal/probe"
)

const closeTimeout = 15 * time.Second

var cfgFile string

// configKeyType is the key for storing the loaded Config in the context.
type configKeyType string

const configKey configKeyType = "config"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Logger() *zap.Logger
	Simulate(ctx context.Context, source string, layout dom.Layout, track []string) (probe.Result, error)
	Probe(ctx context.Context, url string, selectors []string) (probe.Result, error)
	Serve(ctx context.Context, job func(context.Context) error) error
	TraceURI(runID uuid.UUID) (string, bool)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.Build(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrollprobe",
		Short: "Measures how far page elements have scrolled through the viewport.",
		Long: `scrollprobe drives a page, real or simulated, through a scroll sweep and
reports each tracked element's scroll progress once per animation frame.
Progress events are fanned out to logs, Prometheus, blob traces, Postgres
and Pub/Sub, and the latest values are served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Load configuration before any subcommand runs so flag overrides can be
		// applied on top of it.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scrollprobe.yaml)")

	cmd.AddCommand(newSimulateCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func buildApp(ctx context.Context, cfg config.Config) (App, error) {
	appInstance, err := newApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return appInstance, nil
}

// closeApp flushes buffered progress events and releases the app's clients.
// It runs even when the command failed so the failed run still reaches the
// sinks.
func closeApp(ctx context.Context, appInstance App) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := appInstance.Close(closeCtx); err != nil {
		return fmt.Errorf("close application: %w", err)
	}
	return nil
}
