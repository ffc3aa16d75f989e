package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/scriptd"
	"github.com/loykin/scriptd/internal/logger"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds persistent flags shared by every command.
type globalFlags struct {
	Dir   string
	Debug bool
}

func buildRoot() *cobra.Command {
	gf := &globalFlags{}
	root := &cobra.Command{
		Use:           "scriptd",
		Short:         "Background script supervisor",
		Long:          "scriptd launches scripts as managed background processes, retains their output,\nrestarts them on crash when requested, and lets you inspect or tail their logs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.Dir, "dir", "", "state directory (default ~/.scriptd)")
	root.PersistentFlags().BoolVar(&gf.Debug, "debug", false, "enable debug logging")

	root.AddCommand(
		createStartCommand(gf),
		createListCommand(gf),
		createStopCommand(gf),
		createLogsCommand(gf),
		createAttachCommand(gf),
		createDaemonCommand(gf),
	)
	return root
}

// setup loads configuration and builds the CLI diagnostics logger.
func setup(gf *globalFlags) (scriptd.Config, *slog.Logger, error) {
	cfg, err := scriptd.LoadConfig(gf.Dir)
	if err != nil {
		return scriptd.Config{}, nil, err
	}
	level := slog.LevelInfo
	if gf.Debug {
		level = slog.LevelDebug
	}
	return cfg, logger.New(os.Stderr, level), nil
}
