// Package commands implements the orchestratorctl command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	configPath   string
	registryPath string
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestratorctl",
	Short: "Operate the conversation orchestrator",
	Long: `Operate the conversation orchestrator.

Commands that touch conversations or escalations connect to the same
postgres, elasticsearch and redis the orchestrator uses, configured by
configs/config.yaml or --config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "activity catalog file (default: built-in)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
