package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/scriptd"
	"github.com/loykin/scriptd/internal/logger"
	"github.com/loykin/scriptd/internal/protocol"
)

// exchange ensures a reachable supervisor, performs exactly one control-plane
// round trip, and converts an Error response into a command failure.
func exchange(gf *globalFlags, req scriptd.Request) (scriptd.Response, *slog.Logger, error) {
	cfg, log, err := setup(gf)
	if err != nil {
		return scriptd.Response{}, nil, err
	}
	if err := scriptd.EnsureDaemon(cfg, log); err != nil {
		return scriptd.Response{}, log, err
	}
	resp, err := scriptd.NewClient(cfg).Do(req)
	if err != nil {
		return scriptd.Response{}, log, err
	}
	if resp.Error != "" {
		return scriptd.Response{}, log, errors.New(resp.Error)
	}
	return resp, log, nil
}

func createStartCommand(gf *globalFlags) *cobra.Command {
	var restart bool
	var maxLogLines int
	cmd := &cobra.Command{
		Use:   "start <script>",
		Short: "Launch a script as a managed background process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, log, err := exchange(gf, scriptd.Request{
				Type:   protocol.RequestStart,
				Script: args[0],
				Options: scriptd.StartOptions{
					Restart:     restart,
					MaxLogLines: maxLogLines,
				},
			})
			if err != nil {
				return err
			}
			logger.Done(log, "started", "id", resp.ID)
			fmt.Println(resp.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "respawn when the script exits non-zero")
	cmd.Flags().IntVar(&maxLogLines, "max-log-lines", 0, "retained log window (default 1000)")
	return cmd
}

func createListCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := exchange(gf, scriptd.Request{Type: protocol.RequestList})
			if err != nil {
				return err
			}
			renderList(os.Stdout, resp.List)
			return nil
		},
	}
}

func createStopCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Terminate a managed process and forget it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := exchange(gf, scriptd.Request{
				Type:      protocol.RequestStop,
				ProcessID: args[0],
			})
			if err != nil {
				return err
			}
			logger.Done(log, "stopped", "id", args[0])
			return nil
		},
	}
}

func createLogsCommand(gf *globalFlags) *cobra.Command {
	var start, count int
	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print a process's retained log window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, _, err := exchange(gf, scriptd.Request{
				Type:       protocol.RequestLogs,
				ProcessID:  args[0],
				StartIndex: start,
				Count:      count,
			})
			if err != nil {
				return err
			}
			for _, e := range resp.Logs {
				printEntry(e)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first retained entry to print")
	cmd.Flags().IntVar(&count, "count", 0, "number of entries (0 = rest of window)")
	return cmd
}

func createAttachCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <id>",
		Short: "Stream a process's logs: retained window first, then live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(gf)
			if err != nil {
				return err
			}
			if err := scriptd.EnsureDaemon(cfg, log); err != nil {
				return err
			}
			stream, err := scriptd.NewClient(cfg).Attach(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = stream.Close() }()
			for {
				entry, err := stream.Next()
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				printEntry(entry)
			}
		},
	}
}

// printEntry writes one log line raw, stderr lines to stderr, mirroring the
// child's own stream separation.
func printEntry(e scriptd.LogEntry) {
	if e.Origin == protocol.OriginStderr {
		_, _ = fmt.Fprintln(os.Stderr, e.Text)
		return
	}
	fmt.Println(e.Text)
}

func renderList(w io.Writer, list []scriptd.ProcessInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSCRIPT\tSTATUS\tUPTIME")
	for _, p := range list {
		status := p.Status
		if p.ExitCode != nil {
			status = fmt.Sprintf("%s(%d)", p.Status, *p.ExitCode)
		}
		up := (time.Duration(p.UptimeMS) * time.Millisecond).Round(time.Second)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Script, status, up)
	}
	_ = tw.Flush()
}
