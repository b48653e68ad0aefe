/*
Package cli implements the ric command tree.

Every command reads the layered configuration (see package config) and
accepts three global overrides: --config, --log-level and --store.
*/
package cli

import (
	"github.com/spf13/cobra"

	"github.com/khanglvm/ric/internal/version"
)

// Global flag names shared by every subcommand.
const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagStore    = "store"
)

// NewRootCmd creates the root 'ric' command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ric",
		Short: "Session-aware next-tool recommender for analysis platforms",
		Long: `ric recommends the next tool a user is likely to run, based on what
they have run so far in the current session.

Scores come from a historical graph of users, sessions and jobs: the
confidence of B after A is the share of A's sessions that also ran B.
Inside a session, weights decay by alpha at every step, so recent tools
dominate while earlier ones still contribute.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(flagConfig, "", "config file (default: $RIC_CONFIG or ~/.ric/config.yaml)")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String(flagStore, "", "graph store backend: neo4j or sqlite")

	rootCmd.AddCommand(NewRecommendCmd())
	rootCmd.AddCommand(NewScoreCmd())
	rootCmd.AddCommand(NewToolsCmd())
	rootCmd.AddCommand(NewSeedCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
