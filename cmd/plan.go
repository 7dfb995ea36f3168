package cmd

import (
	"github.com/spf13/cobra"
)

// planCmd prints what run would test without touching any board.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the test configurations run would execute",
	Long: `Resolves the firmware bundle, attached boards and target images exactly as
'dapcheck run' does and prints the resulting configurations together with the
firmware that cannot be tested and why. No board is touched and no result
files are written.

Plan accepts the same selection flags as run, since the stage flags change
whether a target or bootloader is required.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg := planOpts.appConfig(cmd)
	cfg.DryRun = true
	return execute(cmd, cfg)
}

func init() {
	rootCmd.AddCommand(planCmd)

	planOpts.addSelectionFlags(planCmd)
}
