package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"axis-blue-backend/internal/localstate"
	"axis-blue-backend/internal/tracker"
)

// withState runs fn against the local state directory without restoring a session.
func withState(fn func(*localstate.FileStore) error) error {
	cfg, _, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	state, err := localstate.NewFileStore(cfg.State.Dir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	return fn(state)
}

func daysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "days",
		Short: "List archived days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(func(state *localstate.FileStore) error {
				dates, err := state.ArchivedDays()
				if err != nil {
					return err
				}
				if len(dates) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no archived days")
					return nil
				}
				for _, d := range dates {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [date]",
		Short: "Print the end-of-day summary of an archived day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(func(state *localstate.FileStore) error {
				snap, err := tracker.LoadArchive(state, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tracker.RenderEndOfDaySummary(*snap.Day, snap.History, 0))
				return nil
			})
		},
	})
	return cmd
}
