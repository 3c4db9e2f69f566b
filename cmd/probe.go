package cmd

import (
	"github.com/spf13/cobra"
)

// newProbeCmd creates the 'probe' subcommand, which scrolls a live page in
// headless Chrome.
func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Scrolls a live page in headless Chrome and reports scroll progress",
		Long: `Opens the page in headless Chrome, registers the elements matched by the
selectors, sweeps the page and reports each element's progress once per
animation frame.`,
		RunE: runProbeCommand,
	}
	cmd.Flags().String("url", "", "page to probe (default: browser.url from the config)")
	cmd.Flags().StringSlice("selector", nil, "CSS selectors of the tracked elements (default: browser.selectors)")
	addSweepFlags(cmd)
	return cmd
}

func runProbeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return err
	}
	if err := applySweepFlags(cmd, &cfg); err != nil {
		return err
	}

	url, _ := cmd.Flags().GetString("url")
	selectors, _ := cmd.Flags().GetStringSlice("selector")

	appInstance, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	res, runErr := appInstance.Probe(cmd.Context(), url, selectors)
	return finishRun(cmd, appInstance, res, runErr)
}
