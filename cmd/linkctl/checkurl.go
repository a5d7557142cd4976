package main

import (
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/safety"
)

func newCheckURLCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check-url <url>",
		Short: "Classify a destination URL against Safe Browsing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sb := e.cfg.SafeBrowsing
			classifier := safety.New(safety.Config{
				APIKey:        sb.APIKey,
				Endpoint:      sb.URL,
				ClientID:      sb.ClientID,
				ClientVersion: sb.ClientVersion,
				Timeout:       sb.Timeout,
				CacheTTL:      sb.CacheTTL,
				Concurrency:   sb.Concurrency,
				Logger:        e.logger,
			})

			v := classifier.CheckURL(cmd.Context(), args[0])
			if v.Err != nil {
				e.logger.Warn("provider call failed", "url", args[0], "error", v.Err)
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}
