package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/app"
	"github.com/sundayezeilo/linkshield/internal/shortener"
)

func newStatsCmd(e *env) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "stats <link-id | short-code>",
		Short: "Print click statistics for a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := e.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			c := app.Wire(e.cfg, e.logger, pool, nil)
			defer c.Dispatcher.Close(ctx)

			var link shortener.Link
			if id, perr := uuid.Parse(args[0]); perr == nil {
				link, err = c.Repo.GetByID(ctx, id)
			} else {
				link, err = c.Repo.GetByShortCode(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("lookup %q: %w", args[0], err)
			}

			stats, err := c.Repo.Stats(ctx, link.ID, time.Now().Add(-window))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				ID        uuid.UUID       `json:"id"`
				ShortCode string          `json:"shortCode"`
				Status    string          `json:"status"`
				Stats     shortener.Stats `json:"stats"`
			}{link.ID, link.ShortCode, link.Status, stats})
		},
	}

	cmd.Flags().DurationVarP(&window, "window", "w", shortener.DefaultStatsWindow, "how far back clicks-by-date reaches")
	return cmd
}
