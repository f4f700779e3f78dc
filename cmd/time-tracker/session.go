package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"time-tracker/internal/app"
	"time-tracker/internal/dto"
)

func (c *cli) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <tracker-id> [description]",
		Short: "Start a new session under a tracker",
		Long: `Start a new session under a tracker. Sessions under other trackers keep
running; use "stop-all" to stop everything.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("tracker", args[0])
			if err != nil {
				return err
			}
			desc := strings.Join(args[1:], " ")
			return c.lineOp(cmd.Context(), "Started", func(ctx context.Context, a *app.App) (dto.LineView, error) {
				return a.Service().StartTracking(ctx, id, desc)
			})
		},
	}
}

func (c *cli) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Pause a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return c.lineOp(cmd.Context(), "Stopped", func(ctx context.Context, a *app.App) (dto.LineView, error) {
				return a.Service().StopTracking(ctx, id)
			})
		},
	}
}

func (c *cli) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a paused session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return c.lineOp(cmd.Context(), "Resumed", func(ctx context.Context, a *app.App) (dto.LineView, error) {
				return a.Service().ResumeTracking(ctx, id)
			})
		},
	}
}

func (c *cli) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <session-id> <description>",
		Short: "Change a session's description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			desc := strings.Join(args[1:], " ")
			return c.lineOp(cmd.Context(), "Updated", func(ctx context.Context, a *app.App) (dto.LineView, error) {
				return a.Service().UpdateTracked(ctx, id, desc)
			})
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("session", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Service().RemoveTracked(cmd.Context(), id); err != nil {
					return err
				}
				return c.emit(map[string]any{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted session %d\n", id)
				})
			})
		},
	}
}

func (c *cli) linesCmd() *cobra.Command {
	var trackerID int64
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "Show session history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				var (
					lines []dto.LineView
					err   error
				)
				if trackerID > 0 {
					lines, err = a.Service().GetTrackerLinesForEntry(cmd.Context(), trackerID)
				} else {
					lines, err = a.Service().GetTrackerLines(cmd.Context())
				}
				if err != nil {
					return err
				}
				return c.emit(lines, func(w io.Writer) { printLines(w, lines) })
			})
		},
	}
	cmd.Flags().Int64VarP(&trackerID, "tracker", "t", 0, "only show sessions of this tracker")
	return cmd
}

func (c *cli) stopAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				stopped, stopErr := a.Service().StopAllActiveTracking(cmd.Context())
				err := c.emit(stopped, func(w io.Writer) {
					if len(stopped) == 0 {
						fmt.Fprintln(w, "No running sessions.")
						return
					}
					for _, l := range stopped {
						printLine(w, "Stopped", l)
					}
				})
				return errors.Join(stopErr, err)
			})
		},
	}
}

// lineOp runs a single-line operation and prints the resulting session.
func (c *cli) lineOp(ctx context.Context, verb string, op func(context.Context, *app.App) (dto.LineView, error)) error {
	return c.withApp(ctx, func(a *app.App) error {
		l, err := op(ctx, a)
		if err != nil {
			return err
		}
		return c.emit(l, func(w io.Writer) { printLine(w, verb, l) })
	})
}
