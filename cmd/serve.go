package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/dom"
)

// newServeCmd creates the 'serve' subcommand, which exposes the progress API.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the progress API, optionally while a probe runs",
		Long: `Starts the HTTP server with health, metrics, live progress and run history
routes. With --url or --layout a probe or simulation runs in the background
and its progress can be watched through /v1/progress.`,
		RunE: runServeCommand,
	}
	cmd.Flags().String("url", "", "page to probe in the background")
	cmd.Flags().StringSlice("selector", nil, "CSS selectors of the tracked elements")
	cmd.Flags().String("layout", "", "layout file to simulate in the background")
	cmd.Flags().StringSlice("track", nil, "element IDs to track in the simulated layout")
	addSweepFlags(cmd)
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	if err := applySweepFlags(cmd, &cfg); err != nil {
		return err
	}

	url, _ := cmd.Flags().GetString("url")
	selectors, _ := cmd.Flags().GetStringSlice("selector")
	layoutPath, _ := cmd.Flags().GetString("layout")
	track, _ := cmd.Flags().GetStringSlice("track")
	if url != "" && layoutPath != "" {
		return errors.New("--url and --layout are mutually exclusive")
	}
	var layout dom.Layout
	if layoutPath != "" {
		if layout, err = resolveLayout(cfg, layoutPath); err != nil {
			return err
		}
	}

	appInstance, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	var job func(context.Context) error
	switch {
	case url != "":
		job = func(ctx context.Context) error {
			res, err := appInstance.Probe(ctx, url, selectors)
			if err != nil {
				return err
			}
			appInstance.Logger().Info("background probe finished",
				zap.String("run_id", res.RunID.String()),
				zap.Int64("frames", res.Frames),
			)
			return nil
		}
	case layoutPath != "":
		job = func(ctx context.Context) error {
			res, err := appInstance.Simulate(ctx, layoutPath, layout, track)
			if err != nil {
				return err
			}
			appInstance.Logger().Info("background simulation finished",
				zap.String("run_id", res.RunID.String()),
				zap.Int64("frames", res.Frames),
			)
			return nil
		}
	}

	serveErr := appInstance.Serve(cmd.Context(), job)
	return errors.Join(serveErr, closeApp(cmd.Context(), appInstance))
}
