package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/scrollprobe/internal/config"
	"github.com/JakeFAU/scrollprobe/internal/dom"
)

// newSimulateCmd creates the 'simulate' subcommand, which sweeps a declarative
// layout without a browser.
func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Sweeps a declarative page layout and reports scroll progress",
		Long: `Builds an in-memory page from a layout file (or the layout section of the
configuration), scrolls it through the configured sweep and reports each
tracked element's progress once per frame.`,
		RunE: runSimulateCommand,
	}
	cmd.Flags().String("layout", "", "layout file (YAML, JSON or TOML); defaults to the config's layout section")
	cmd.Flags().StringSlice("track", nil, "element IDs to track (default: every element)")
	cmd.Flags().String("source", "", "label recorded with the run (default: the layout file)")
	addSweepFlags(cmd)
	return cmd
}

func runSimulateCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	if err := applySweepFlags(cmd, &cfg); err != nil {
		return err
	}

	layoutPath, _ := cmd.Flags().GetString("layout")
	track, _ := cmd.Flags().GetStringSlice("track")
	source, _ := cmd.Flags().GetString("source")

	layout, err := resolveLayout(cfg, layoutPath)
	if err != nil {
		return err
	}
	if source == "" {
		source = layoutPath
	}
	if source == "" {
		source = "config"
	}

	appInstance, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	res, runErr := appInstance.Simulate(cmd.Context(), source, layout, track)
	return finishRun(cmd, appInstance, res, runErr)
}

func resolveLayout(cfg config.Config, path string) (dom.Layout, error) {
	if path != "" {
		layout, err := config.LoadLayout(path)
		if err != nil {
			return dom.Layout{}, fmt.Errorf("load layout: %w", err)
		}
		return layout, nil
	}
	if len(cfg.Layout.Elements) == 0 {
		return dom.Layout{}, errors.New("no layout: pass --layout or set the layout section in the config")
	}
	return cfg.Layout, nil
}
