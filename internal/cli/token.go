package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjod/pawmart/internal/auth"
	"github.com/fjod/pawmart/internal/domain"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID string
	Email  string
	Role   string
	TTL    time.Duration
}

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT signed with JWT_SECRET",
		Long: `Mint an HS256 token for local testing.

Examples:
  pawmart token --user u-123
  pawmart token --user admin-1 --role admin --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			token, err := auth.NewTokens(cfg.JWTSecret).Issue(domain.Identity{
				UserID: opts.UserID,
				Email:  opts.Email,
				Role:   opts.Role,
			}, opts.TTL, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "subject user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.Role, "role", "user", "role claim (user|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
