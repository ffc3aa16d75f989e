// Package daemon bootstraps the single supervisor instance per install: a
// PID marker plus a reachability probe decide whether one is already running,
// and a detached spawn brings one up when none is found.
package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/loykin/scriptd/internal/client"
	"github.com/loykin/scriptd/internal/config"
)

// ReadMarker returns the process id recorded in the liveness marker.
func ReadMarker(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid marker %q", strings.TrimSpace(string(b)))
	}
	return pid, nil
}

// WriteMarker records pid in the liveness marker.
func WriteMarker(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
}

// ClearMarker removes the liveness marker; missing is fine.
func ClearMarker(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure makes sure a reachable supervisor exists: marker present and the
// recorded process alive means one is assumed listening. Otherwise any
// leftover socket artifact is removed, a detached supervisor is spawned
// fire-and-forget, its pid is recorded, and Ensure blocks until the listener
// answers the reachability probe.
//
// Two concurrent callers can both observe "not running" and both spawn; only
// one wins the socket bind. That race is a known, unresolved hazard.
func Ensure(cfg config.Config, log *slog.Logger) error {
	if pid, err := ReadMarker(cfg.PIDFile); err == nil && Alive(pid) {
		log.Debug("supervisor already running", "pid", pid)
		return nil
	}
	if err := os.Remove(cfg.Socket); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	pid, err := SpawnDetached(cfg.Dir)
	if err != nil {
		return fmt.Errorf("spawn supervisor: %w", err)
	}
	log.Info("spawned supervisor", "pid", pid)
	if err := WriteMarker(cfg.PIDFile, pid); err != nil {
		return fmt.Errorf("write pid marker: %w", err)
	}
	return client.Probe(cfg.Socket, cfg.Client.ProbeAttempts, cfg.Client.ProbeInterval)
}

// detachedArgs builds the argument vector for the detached supervisor. The
// state directory must travel with the spawn: the daemon serves the socket
// under dir, and the caller probes that same socket.
func detachedArgs(dir string) []string {
	args := []string{"daemon", "run"}
	if dir != "" {
		args = append(args, "--dir", dir)
	}
	return args
}

// SpawnDetached launches this executable in daemon-run mode against dir,
// detached from the caller, and returns the external pid without awaiting
// anything.
func SpawnDetached(dir string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	// #nosec G204
	cmd := exec.Command(exe, detachedArgs(dir)...)
	configureDetached(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// Stop signals the marked process to terminate and clears the marker. It
// neither verifies the target really was the supervisor nor waits for exit.
func Stop(cfg config.Config) error {
	pid, err := ReadMarker(cfg.PIDFile)
	if err != nil {
		return fmt.Errorf("no running daemon: %w", err)
	}
	terminate(pid)
	return ClearMarker(cfg.PIDFile)
}
