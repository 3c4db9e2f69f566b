package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/scrollprobe/internal/config"
	"github.com/JakeFAU/scrollprobe/internal/probe"
)

// addSweepFlags registers the flags shared by simulate and probe.
func addSweepFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("start", 0, "first scroll offset of the sweep")
	cmd.Flags().Float64("end", 0, "last scroll offset of the sweep (0 sweeps to the bottom)")
	cmd.Flags().Float64("step", 0, "scroll distance between positions")
	cmd.Flags().Int("scrolls-per-frame", 0, "scroll events delivered between frame ticks")
	cmd.Flags().Float64("resize-to", 0, "viewport height applied halfway through the sweep")
	cmd.Flags().Float64("upper-bound", 0, "progress value at which an element counts as fully scrolled")
	cmd.Flags().Bool("hide-at-scroll-top", false, "report zero progress while the page is at the top")
}

// applySweepFlags copies explicitly set flags over the loaded configuration.
func applySweepFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	floats := map[string]*float64{
		"start":       &cfg.Sweep.Start,
		"end":         &cfg.Sweep.End,
		"step":        &cfg.Sweep.Step,
		"resize-to":   &cfg.Sweep.ResizeTo,
		"upper-bound": &cfg.Responder.UpperBound,
	}
	for name, dst := range floats {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetFloat64(name)
		if err != nil {
			return fmt.Errorf("read --%s: %w", name, err)
		}
		*dst = v
	}
	if flags.Changed("scrolls-per-frame") {
		v, err := flags.GetInt("scrolls-per-frame")
		if err != nil {
			return fmt.Errorf("read --scrolls-per-frame: %w", err)
		}
		cfg.Sweep.ScrollsPerFrame = v
	}
	if flags.Changed("hide-at-scroll-top") {
		v, err := flags.GetBool("hide-at-scroll-top")
		if err != nil {
			return fmt.Errorf("read --hide-at-scroll-top: %w", err)
		}
		cfg.Responder.HideAtScrollTop = v
	}
	return cfg.Validate()
}

// printResult writes a run summary followed by the latest progress of every
// tracked element.
func printResult(w io.Writer, res probe.Result, traceURI string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "source\t%s\n", res.Source)
	fmt.Fprintf(tw, "positions\t%d\n", res.Positions)
	fmt.Fprintf(tw, "frames\t%d\n", res.Frames)
	fmt.Fprintf(tw, "samples\t%d\n", res.Samples)
	fmt.Fprintf(tw, "final scroll\t%.0f\n", res.FinalScroll)
	fmt.Fprintf(tw, "duration\t%s\n", res.Duration)
	if traceURI != "" {
		fmt.Fprintf(tw, "trace\t%s\n", traceURI)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ELEMENT\tPROGRESS\tSCROLL Y\tFRAME")
	for _, s := range res.Latest {
		fmt.Fprintf(tw, "%s\t%.4f\t%.0f\t%d\n", s.Element, s.Progress, s.ScrollY, s.Frame)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// finishRun closes the app and prints the result. The trace URI is looked up
// after Close because traces are uploaded when the hub flushes.
func finishRun(cmd *cobra.Command, appInstance App, res probe.Result, runErr error) error {
	closeErr := closeApp(cmd.Context(), appInstance)
	if runErr != nil {
		return runErr
	}
	traceURI, _ := appInstance.TraceURI(res.RunID)
	if err := printResult(cmd.OutOrStdout(), res, traceURI); err != nil {
		return err
	}
	return closeErr
}
