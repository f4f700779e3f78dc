package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"time-tracker/internal/app"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := app.OpenStore(cmd.Context(), c.log, c.cfg)
			if err != nil {
				return err
			}
			if err := repo.Close(); err != nil {
				return err
			}
			return c.emit(map[string]string{"status": "ok", "driver": c.cfg.Storage.Driver}, func(w io.Writer) {
				fmt.Fprintf(w, "Schema up to date (%s)\n", c.cfg.Storage.Driver)
			})
		},
	}
}

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all trackers and sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all data without --yes")
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Service().Reset(cmd.Context()); err != nil {
					return err
				}
				return c.emit(map[string]string{"status": "ok"}, func(w io.Writer) {
					fmt.Fprintln(w, "All data deleted.")
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all data")
	return cmd
}
