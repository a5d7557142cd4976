package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sundayezeilo/linkshield/internal/httpx"
)

func newTokenCmd(e *env) *cobra.Command {
	var (
		ttl   time.Duration
		admin bool
	)

	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Issue a bearer token for an owner or admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			owner, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid owner id: %w", err)
			}
			id := httpx.Identity{Owner: owner, Role: httpx.RoleUser}
			if admin {
				id.Role = httpx.RoleAdmin
			}
			token, err := httpx.SignToken(httpx.AuthConfig{
				Secret: []byte(e.cfg.Auth.JWTSecret),
				Issuer: e.cfg.Auth.JWTIssuer,
			}, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}
