package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-sla/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a staff member",
	Long: `token signs a bearer token for the given staff id with AUTH_JWT_SECRET.
The staff member must exist and be active for the API to accept it.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("staff-id", "", "Staff member id (required)")
	tokenCmd.Flags().String("name", "", "Display name carried in the token")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default AUTH_TOKEN_TTL)")
}

func runToken(cmd *cobra.Command, _ []string) error {
	staffID, _ := cmd.Flags().GetString("staff-id")
	if staffID == "" {
		return errors.New("--staff-id is required")
	}
	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(staffID, name)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
