package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/delaycast/delaycast/internal/auth"
)

func newTokenCommand() *cobra.Command {
	var (
		service string
		expiry  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a service token for the admin endpoints",
		Long: `Token mints a bearer token signed with JWT_SIGNING_KEY for calling the
authenticated API endpoints. The key must match the one the API server runs
with.`,
		Example: `  delayctl token
  delayctl token --service deploy-bot --expiry 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			signingKey := os.Getenv("JWT_SIGNING_KEY")
			if signingKey == "" {
				return fmt.Errorf("JWT_SIGNING_KEY is required")
			}

			jwtService := auth.NewJWTService(auth.JWTConfig{SigningKey: signingKey})
			token, expiresAt, err := jwtService.GenerateToken(service, expiry)
			if err != nil {
				return err
			}

			return printJSON(map[string]interface{}{
				"token":     token,
				"service":   service,
				"expiresAt": expiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&service, "service", "delayctl", "Service name embedded in the token")
	cmd.Flags().DurationVar(&expiry, "expiry", auth.DefaultTokenExpiry, "Token lifetime")
	return cmd
}
