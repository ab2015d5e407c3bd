package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-sla/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Helpdesk SLA service",
	Long: `helpdesk tracks resolution deadlines for support tickets. It serves the
ticket API, runs the periodic SLA check that warns assignees before a deadline
and alerts them once it is breached, and delivers the queued notifications.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment is read (default: .env)")
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = Version
	}
	return cfg, nil
}
