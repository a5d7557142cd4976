package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/db/migrate"
)

func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate.Up(e.cfg.Database.URL(), e.logger)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default one step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return migrate.Down(e.cfg.Database.URL(), steps, e.logger)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				version, dirty, err := migrate.Version(e.cfg.Database.URL(), e.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}
