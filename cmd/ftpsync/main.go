package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mansourjabin/ftp-sync-tool/internal/orchestrator"
	"github.com/mansourjabin/ftp-sync-tool/internal/state"
	"github.com/mansourjabin/ftp-sync-tool/internal/version"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	blue   = color.New(color.FgHiBlue).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "ftpsync",
	Short:         "Incremental FTP folder synchronization",
	Version:       version.Detailed(),
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags are parsed by now, so the log level honors -v
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().String("state-dir", state.DefaultStateDir(), "directory holding per-folder sync state")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	viper.BindPFlag("state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("FTPSYNC")
	viper.AutomaticEnv()

	rootCmd.AddCommand(syncCmd, statusCmd, setupCmd, testCmd, configsCmd, resetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

// newOrchestrator builds the operation surface over the configured state dir.
func newOrchestrator(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	store, err := state.NewFileStore(viper.GetString("state_dir"))
	if err != nil {
		return nil, err
	}
	return orchestrator.New(store, opts...), nil
}
