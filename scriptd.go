// Package scriptd supervises scripts as managed background processes and
// exposes start/stop/list/logs/attach control over a local socket.
package scriptd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/loykin/scriptd/internal/client"
	"github.com/loykin/scriptd/internal/config"
	"github.com/loykin/scriptd/internal/daemon"
	"github.com/loykin/scriptd/internal/history"
	"github.com/loykin/scriptd/internal/history/factory"
	"github.com/loykin/scriptd/internal/logger"
	"github.com/loykin/scriptd/internal/metrics"
	"github.com/loykin/scriptd/internal/mirror"
	"github.com/loykin/scriptd/internal/protocol"
	"github.com/loykin/scriptd/internal/server"
	"github.com/loykin/scriptd/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type StartOptions = protocol.StartOptions

type ProcessInfo = protocol.ProcessInfo

type LogEntry = protocol.LogEntry

type Request = protocol.Request

type Response = protocol.Response

type HistorySink = history.Sink

// LoadConfig resolves the state directory (default ~/.scriptd) and reads the
// optional config file over the defaults.
func LoadConfig(dir string) (Config, error) {
	if dir == "" {
		var err error
		dir, err = config.DefaultDir()
		if err != nil {
			return Config{}, err
		}
	}
	return config.Load(dir)
}

// NewClient returns a control-plane client for the configured socket.
func NewClient(cfg Config) *client.Client {
	return client.New(cfg.Socket, client.Options{
		Timeout:       cfg.Client.Timeout,
		Attempts:      cfg.Client.Attempts,
		RetryInterval: cfg.Client.RetryInterval,
	})
}

// EnsureDaemon makes sure a reachable supervisor exists, spawning a detached
// one when none is found.
func EnsureDaemon(cfg Config, log *slog.Logger) error {
	if err := config.EnsureDir(cfg.Dir); err != nil {
		return err
	}
	return daemon.Ensure(cfg, log)
}

// StopDaemon signals the marked supervisor process and clears the marker.
func StopDaemon(cfg Config) error { return daemon.Stop(cfg) }

// Daemon assembles the supervisor, the control-plane listener and the
// optional observability surfaces into the long-running server process.
type Daemon struct {
	cfg    Config
	log    *slog.Logger
	logW   io.Closer
	sup    *supervisor.Supervisor
	sinks  []history.Sink
	status *http.Server
}

// NewDaemon prepares a daemon from cfg. The returned daemon logs to the
// rotated daemon log file.
func NewDaemon(cfg Config) (*Daemon, error) {
	if err := config.EnsureDir(cfg.Dir); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	log, logW := logger.NewFile(cfg.LogFile, slog.LevelInfo)
	_ = metrics.RegisterDefault()

	var sinks []history.Sink
	if cfg.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			// history is observability only; a bad sink must not stop the daemon
			log.Warn("history sink disabled", "dsn", cfg.History.DSN, "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}

	sup := supervisor.New(supervisor.Config{
		Logger:          log,
		Mirror:          mirror.New(cfg.Mirror),
		Sinks:           sinks,
		DefaultMaxLines: cfg.MaxLogLines,
	})
	return &Daemon{cfg: cfg, log: log, logW: logW, sup: sup, sinks: sinks}, nil
}

// Logger exposes the daemon's logger for the hosting command.
func (d *Daemon) Logger() *slog.Logger { return d.log }

// Run binds the control socket and serves until ctx is canceled. A bind
// failure is fatal: socket and marker are cleaned up best-effort and the
// error is returned. On return, running children are left orphaned; there is
// no watchdog over the supervisor itself.
func (d *Daemon) Run(ctx context.Context) error {
	srv, err := server.Listen(d.cfg.Socket, d.sup, d.log)
	if err != nil {
		d.log.Error("control socket bind failed", "socket", d.cfg.Socket, "error", err)
		d.Cleanup()
		return err
	}
	// Record our own pid so a hand-started daemon is discoverable too; the
	// bootstrap path wrote the same value already.
	if err := daemon.WriteMarker(d.cfg.PIDFile, os.Getpid()); err != nil {
		d.log.Warn("pid marker write failed", "error", err)
	}
	if d.cfg.MetricsListen != "" {
		d.status = server.NewHTTPServer(d.cfg.MetricsListen, d.sup)
		d.log.Info("status server listening", "addr", d.cfg.MetricsListen)
	}
	d.log.Info("daemon ready", "socket", d.cfg.Socket, "pid", os.Getpid())

	d.sup.Run(ctx)

	_ = srv.Close()
	d.Cleanup()
	return nil
}

// Cleanup removes the socket artifact and marker and closes sinks and the
// log writer. Safe to call more than once.
func (d *Daemon) Cleanup() {
	_ = os.Remove(d.cfg.Socket)
	_ = daemon.ClearMarker(d.cfg.PIDFile)
	if d.status != nil {
		_ = d.status.Close()
		d.status = nil
	}
	for _, s := range d.sinks {
		_ = s.Close()
	}
	d.sinks = nil
	if d.logW != nil {
		_ = d.logW.Close()
		d.logW = nil
	}
}
