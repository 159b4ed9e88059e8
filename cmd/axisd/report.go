package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"axis-blue-backend/internal/tracker"
)

// withTracker runs fn against the locally stored session.
func withTracker(fn func(*tracker.Tracker) error) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	tr, err := a.tracker(nil)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return fn(tr)
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a plain-text report for the current day",
	}

	render := func(use, short string, fn func(*tracker.Tracker) (string, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withTracker(func(tr *tracker.Tracker) error {
					text, err := fn(tr)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), text)
					return nil
				})
			},
		}
	}

	cmd.AddCommand(render("morning", "Morning rundown", (*tracker.Tracker).MorningRundown))
	cmd.AddCommand(render("eod", "End-of-day summary", (*tracker.Tracker).EndOfDaySummary))
	cmd.AddCommand(render("handoff", "Relief handoff", (*tracker.Tracker).Handoff))
	cmd.AddCommand(&cobra.Command{
		Use:   "visit [visit-id]",
		Short: "End-of-visit report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				text, err := tr.VisitReport(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	})
	return cmd
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the raw session document as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				data, err := tr.Export()
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported session to %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file, - for stdout")
	return cmd
}
