package main

import (
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/app"
	"github.com/sundayezeilo/linkshield/internal/shortener"
)

func newSweepCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-check links whose cached safety verdict has expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := e.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			c := app.Wire(e.cfg, e.logger, pool, nil)
			defer c.Dispatcher.Close(ctx)

			res, err := c.Service.Sweep(ctx, limit)
			if err != nil {
				return err
			}
			e.logger.Info("sweep finished", "checked", res.Checked, "flagged", res.Flagged, "failed", res.Failed)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", shortener.DefaultSweepBatchLimit, "maximum links to re-check")
	return cmd
}
