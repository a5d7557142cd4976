package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/app"
	"github.com/sundayezeilo/linkshield/internal/config"
)

// env is the configuration and logger every subcommand starts from.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:          "linkctl",
		Short:        "Operate a LinkShield deployment",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = newLogger(cmd.ErrOrStderr(), cfg.App.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newCheckURLCmd(e),
		newSweepCmd(e),
		newStatsCmd(e),
		newTokenCmd(e),
	)
	return root
}

// newLogger writes text logs to stderr so stdout stays machine-readable.
func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func (e *env) connect(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := app.ConnectDatabase(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
