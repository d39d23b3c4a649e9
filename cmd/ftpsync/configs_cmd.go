package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Manage saved folder configurations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		infos, err := orch.ListKnownRoots()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Printf("%s no saved configurations\n", cyan("[i]"))
			return nil
		}
		for i, info := range infos {
			fmt.Printf("  %s %s %s %s\n", green(fmt.Sprintf("[%d]", i+1)), info.Root, cyan("->"), info.Host)
		}
		return nil
	},
}

var configsDeleteCmd = &cobra.Command{
	Use:   "delete <folder>",
	Short: "Delete the saved configuration for a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		assumeYes, _ := cmd.Flags().GetBool("yes")

		if !assumeYes && !confirm(fmt.Sprintf("Delete configuration for %s?", args[0])) {
			fmt.Printf("%s deletion cancelled\n", cyan("[i]"))
			return nil
		}

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		if err := orch.DeleteState(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s configuration deleted\n", green("[+]"))
		return nil
	},
}

func init() {
	configsDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	configsCmd.AddCommand(configsDeleteCmd)
}
