package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <folder>",
	Short: "Reset tracking so all files are treated as new",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		assumeYes, _ := cmd.Flags().GetBool("yes")

		if !assumeYes && !confirm("Reset will mark all files as new. Continue?") {
			fmt.Printf("%s reset cancelled\n", cyan("[i]"))
			return nil
		}

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := orch.ResetTracking(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s tracking reset\n", green("[+]"))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}
