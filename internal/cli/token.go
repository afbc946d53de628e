package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/auth"
)

// NewTokenCommand creates the token command, which mints a bearer token with the
// shared secret. Production tokens come from the identity provider; this is for
// operators and local testing.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := rootOpts.cfg.Auth.JWTSecret
			if secret == "" {
				return NewExitError(ExitCommandError, "no JWT secret configured (auth.jwt_secret or JWT_SECRET)")
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(args[0], email)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
