package cli

import (
	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/logging"
	"github.com/stratus-iac/stratus/stacks"
)

var (
	rootLogLevel string
	rootStack    string
)

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Declarative cloud stacks in Go",
	Long: `Stratus synthesizes Go construct trees into resource descriptors and
reconciles them against your cloud account.

A stack is plain Go code: constructs receive an explicit stack scope and
register the resources they describe. The engine plans the difference
between the synthesized descriptors and the recorded state, then applies
it in dependency order.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(rootLogLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&rootStack, "stack", "s", stacks.DefaultStack, "Stack to operate on")

	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}
