package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mansourjabin/ftp-sync-tool/internal/orchestrator"
	"github.com/mansourjabin/ftp-sync-tool/internal/scan"
)

const changePreviewLimit = 5

var syncCmd = &cobra.Command{
	Use:   "sync <folder>",
	Short: "Detect and upload changed files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		assumeYes, _ := cmd.Flags().GetBool("yes")

		orch, err := newOrchestrator(orchestrator.WithProgress(renderProgress))
		if err != nil {
			return err
		}

		changes, err := orch.PlanSync(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println()

		if changes.Empty() {
			fmt.Printf("%s everything is up to date\n", green("[+]"))
			return nil
		}

		printChanges(changes)

		if !assumeYes && !confirm("Proceed with sync?") {
			fmt.Printf("%s sync cancelled\n", yellow("[!]"))
			return nil
		}

		result, err := orch.ApplySync(cmd.Context(), args[0], changes)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

func printChanges(changes *scan.ChangeSet) {
	fmt.Printf("found %d changes\n", changes.Total())
	printGroup(green("+"), "new", changes.New)
	printGroup(blue("M"), "modified", changes.Modified)
}

func printGroup(marker, label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Printf("\n%s files (%d):\n", label, len(paths))
	for i, path := range paths {
		if i == changePreviewLimit {
			fmt.Printf("   %s\n", cyan(fmt.Sprintf("... and %d more", len(paths)-changePreviewLimit)))
			break
		}
		fmt.Printf("   %s %s\n", marker, path)
	}
}

func printResult(result *orchestrator.SyncResult) {
	total := len(result.Succeeded) + len(result.Failed)
	if result.FullySucceeded() {
		fmt.Printf("%s all %d files uploaded (strategy: %s)\n", green("[+]"), total, result.Strategy)
	} else {
		fmt.Printf("%s uploaded %d/%d files (strategy: %s)\n", yellow("[!]"), len(result.Succeeded), total, result.Strategy)
		fmt.Printf("%s %d files failed:\n", red("[X]"), len(result.Failed))
		for _, path := range result.Failed {
			fmt.Printf("   %s %s\n", red("-"), path)
		}
	}
	for intended, actual := range result.Flattened {
		fmt.Printf("%s %s stored at fallback location %s\n", yellow("[!]"), intended, actual)
	}
}

func renderProgress(processed, total int, label string) {
	if total == 0 {
		return
	}
	const width = 30
	filled := width * processed / total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	fmt.Printf("\r%s [%s] %3d%% %s", cyan("scan"), bar, 100*processed/total, truncate(label, 30))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func confirm(question string) bool {
	fmt.Printf("\n%s %s (y/n): ", cyan(">>>"), question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
