package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/scriptd"
	"github.com/loykin/scriptd/internal/logger"
)

func createDaemonCommand(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Ensure the supervisor daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(gf)
			if err != nil {
				return err
			}
			if err := scriptd.EnsureDaemon(cfg, log); err != nil {
				return err
			}
			logger.Done(log, "daemon running", "socket", cfg.Socket)
			return nil
		},
	}
	cmd.AddCommand(createDaemonStopCommand(gf), createDaemonRunCommand(gf))
	return cmd
}

func createDaemonStopCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal the supervisor daemon to terminate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(gf)
			if err != nil {
				return err
			}
			if err := scriptd.StopDaemon(cfg); err != nil {
				return err
			}
			logger.Done(log, "daemon stopped")
			return nil
		},
	}
}

// createDaemonRunCommand is the in-process server loop the bootstrap spawns
// detached; it is hidden because users go through the bootstrap instead.
func createDaemonRunCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:    "run",
		Short:  "Run the supervisor in the foreground",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(gf)
			if err != nil {
				return err
			}
			d, err := scriptd.NewDaemon(cfg)
			if err != nil {
				return err
			}
			// An uncaught fault is logged and followed by best-effort
			// cleanup and exit; running children are orphaned, there is no
			// watchdog over the supervisor itself.
			defer func() {
				if r := recover(); r != nil {
					d.Logger().Error("fatal fault in supervisor", "panic", r)
					d.Cleanup()
					os.Exit(1)
				}
			}()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}
}
