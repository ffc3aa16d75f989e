package client

import (
	"errors"
	"net"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/scriptd/internal/protocol"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require unix sockets")
	}
}

func TestDoUnreachableAfterRetries(t *testing.T) {
	requireUnix(t)
	socket := filepath.Join(t.TempDir(), "missing.sock")
	c := New(socket, Options{Attempts: 3, RetryInterval: 5 * time.Millisecond})

	began := time.Now()
	_, err := c.Do(protocol.Request{Type: protocol.RequestList})
	if !errors.Is(err, protocol.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	// two inter-attempt delays at minimum
	if elapsed := time.Since(began); elapsed < 10*time.Millisecond {
		t.Fatalf("retries finished too fast: %s", elapsed)
	}
}

func TestDoTimeoutOnSilentListener(t *testing.T) {
	requireUnix(t)
	socket := filepath.Join(t.TempDir(), "silent.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			// accept and never respond
			_ = conn
		}
	}()

	c := New(socket, Options{Timeout: 100 * time.Millisecond, Attempts: 1})
	_, err = c.Do(protocol.Request{Type: protocol.RequestList})
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestDoSucceedsAfterListenerAppears(t *testing.T) {
	requireUnix(t)
	socket := filepath.Join(t.TempDir(), "late.sock")

	var served atomic.Bool
	go func() {
		time.Sleep(100 * time.Millisecond)
		ln, err := net.Listen("unix", socket)
		if err != nil {
			return
		}
		defer func() { _ = ln.Close() }()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		buf := make([]byte, 4096)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		_ = protocol.WriteFrame(conn, protocol.OkList(nil))
		served.Store(true)
	}()

	c := New(socket, Options{Timeout: time.Second, Attempts: 10, RetryInterval: 50 * time.Millisecond})
	resp, err := c.Do(protocol.Request{Type: protocol.RequestList})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != "ok" || !served.Load() {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

// An Error-carrying response is a completed exchange, not a transport
// failure: it must come back on the first attempt, unretried.
func TestDoErrorResponseNotRetried(t *testing.T) {
	requireUnix(t)
	socket := filepath.Join(t.TempDir(), "err.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	var exchanges atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			exchanges.Add(1)
			buf := make([]byte, 4096)
			_, _ = conn.Read(buf)
			_ = protocol.WriteFrame(conn, protocol.Errorf("unknown process: x"))
			_ = conn.Close()
		}
	}()

	c := New(socket, Options{Timeout: time.Second, Attempts: 5, RetryInterval: 5 * time.Millisecond})
	resp, err := c.Do(protocol.Request{Type: protocol.RequestLogs, ProcessID: "x"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Error == "" {
		t.Fatalf("error response lost: %+v", resp)
	}
	if n := exchanges.Load(); n != 1 {
		t.Fatalf("error response retried %d times", n)
	}
}

func TestProbe(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.sock")
	if err := Probe(missing, 2, time.Millisecond); !errors.Is(err, protocol.ErrUnreachable) {
		t.Fatalf("probe of missing socket: %v", err)
	}

	socket := filepath.Join(dir, "up.sock")
	ln, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	if err := Probe(socket, 3, time.Millisecond); err != nil {
		t.Fatalf("probe of live socket: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	c := New("/tmp/x.sock", Options{})
	if c.timeout != DefaultTimeout || c.attempts != DefaultAttempts || c.retryInterval != DefaultRetryInterval {
		t.Fatalf("zero options did not fall back to defaults: %+v", c)
	}
}
