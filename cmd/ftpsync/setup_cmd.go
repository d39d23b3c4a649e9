package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mansourjabin/ftp-sync-tool/internal/state"
)

var setupCmd = &cobra.Command{
	Use:   "setup <folder>",
	Short: "Configure synchronization for a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		flags := cmd.Flags()
		endpoint := state.Endpoint{}
		endpoint.Host, _ = flags.GetString("host")
		endpoint.Port, _ = flags.GetInt("port")
		endpoint.Username, _ = flags.GetString("username")
		endpoint.Password, _ = flags.GetString("password")
		endpoint.RemotePath, _ = flags.GetString("remote-path")
		endpoint.UploadStrategy, _ = flags.GetString("strategy")
		markExisting, _ := flags.GetBool("mark-existing")

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		fmt.Printf("%s testing connection to %s...\n", cyan("[i]"), endpoint.Addr())
		if err := orch.Setup(cmd.Context(), args[0], endpoint, markExisting); err != nil {
			return err
		}

		fmt.Printf("%s configuration saved for %s\n", green("[+]"), args[0])
		if !markExisting {
			fmt.Printf("%s all existing files will be uploaded on first sync\n", yellow("[!]"))
		}
		return nil
	},
}

func init() {
	flags := setupCmd.Flags()
	flags.String("host", "", "FTP server address")
	flags.Int("port", 21, "FTP server port")
	flags.StringP("username", "u", "", "FTP username")
	flags.StringP("password", "p", "", "FTP password")
	flags.String("remote-path", "", "remote base directory (e.g. /public_html)")
	flags.String("strategy", "strict", "upload strategy: strict or flatten")
	flags.Bool("mark-existing", false, "record existing files as already synced")
	setupCmd.MarkFlagRequired("host")
	setupCmd.MarkFlagRequired("username")
}
