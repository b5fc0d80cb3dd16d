package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the assurance command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assurance",
		Short: "Verify that two folder trees hold the same content",
		Long: `assurance compares source and target folder trees, records every
divergence as a comparison result, and merges them back into agreement
with a source-wins, target-wins or bidirectional strategy.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewMergeCommand())
	rootCmd.AddCommand(NewRestoreCommand())
	rootCmd.AddCommand(NewDefinitionCommand())
	rootCmd.AddCommand(NewScansCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
