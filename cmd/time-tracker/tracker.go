package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"time-tracker/internal/app"
)

func (c *cli) trackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Manage trackers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <label>",
		Short: "Create a tracker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				t, err := a.Service().CreateTracker(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				return c.emit(t, func(w io.Writer) {
					fmt.Fprintf(w, "Created tracker %d %q\n", t.ID, t.Label)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List trackers, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				trackers, err := a.Service().GetTrackers(cmd.Context())
				if err != nil {
					return err
				}
				return c.emit(trackers, func(w io.Writer) { printTrackers(w, trackers) })
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <tracker-id> <label>",
		Short: "Rename a tracker",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tracker", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				t, err := a.Service().RenameTracker(cmd.Context(), id, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return c.emit(t, func(w io.Writer) {
					fmt.Fprintf(w, "Renamed tracker %d to %q\n", t.ID, t.Label)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <tracker-id>",
		Short: "Delete a tracker and all of its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tracker", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Service().DeleteTracker(cmd.Context(), id); err != nil {
					return err
				}
				return c.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted tracker %d\n", id)
				})
			})
		},
	})
	return cmd
}
