package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mansourjabin/ftp-sync-tool/internal/state"
	"github.com/mansourjabin/ftp-sync-tool/internal/version"
)

var testCmd = &cobra.Command{
	Use:   "test <folder>",
	Short: "Test the FTP connection of a configured folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		store, err := state.NewFileStore(viper.GetString("state_dir"))
		if err != nil {
			return err
		}
		st, err := store.Load(args[0])
		if err != nil {
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("no configuration for %s, run `%s setup` first", args[0], version.AppName)
			}
			return err
		}

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		fmt.Printf("%s testing connection to %s...\n", cyan("[i]"), st.FTPConfig.Addr())
		if orch.TestConnection(cmd.Context(), &st.FTPConfig) {
			fmt.Printf("%s connection successful\n", green("[+]"))
			return nil
		}
		fmt.Printf("%s connection failed, check your settings\n", red("[X]"))
		return nil
	},
}
