package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <folder>",
	Short: "Show tracked files and pending changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}

		status, err := orch.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", cyan("folder:"), status.Root)
		fmt.Printf("%s %s\n", cyan("server:"), status.Endpoint.Addr())
		fmt.Printf("%s %s\n", cyan("remote:"), status.Endpoint.RemotePath)
		fmt.Printf("%s %d files\n", cyan("tracked:"), status.Tracked)

		if status.Pending.Empty() {
			fmt.Printf("\n%s everything is synchronized\n", green("[+]"))
			return nil
		}

		fmt.Printf("\n%s %d changes pending\n", yellow("[!]"), status.Pending.Total())
		printPending(status.Root, green("+"), status.Pending.New)
		printPending(status.Root, blue("M"), status.Pending.Modified)
		return nil
	},
}

func printPending(root, marker string, paths []string) {
	for _, path := range paths {
		line := fmt.Sprintf("  %s %s", marker, path)
		if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(path))); err == nil {
			line += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(info.Size())))
		}
		fmt.Println(line)
	}
}
