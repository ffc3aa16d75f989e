package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPaths(t *testing.T) {
	dir := "/var/lib/scriptd-test"
	cfg := Default(dir)
	if cfg.Dir != dir {
		t.Fatalf("Dir=%q", cfg.Dir)
	}
	want := map[string]string{
		"socket": filepath.Join(dir, "daemon.sock"),
		"pid":    filepath.Join(dir, "daemon.pid"),
		"mirror": filepath.Join(dir, "processes.json"),
		"log":    filepath.Join(dir, "daemon.log"),
	}
	got := map[string]string{
		"socket": cfg.Socket,
		"pid":    cfg.PIDFile,
		"mirror": cfg.Mirror,
		"log":    cfg.LogFile,
	}
	for k, w := range want {
		if got[k] != w {
			t.Fatalf("%s=%q want %q", k, got[k], w)
		}
	}
	if cfg.MaxLogLines != 1000 {
		t.Fatalf("MaxLogLines=%d", cfg.MaxLogLines)
	}
	if cfg.Client.Timeout != 5*time.Second || cfg.Client.Attempts != 3 {
		t.Fatalf("client defaults: %+v", cfg.Client)
	}
	if cfg.Client.ProbeAttempts != 25 || cfg.Client.ProbeInterval != 200*time.Millisecond {
		t.Fatalf("probe defaults: %+v", cfg.Client)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Socket != filepath.Join(dir, "daemon.sock") || cfg.MaxLogLines != 1000 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
socket = "/tmp/custom.sock"
max_log_lines = 250
metrics_listen = "127.0.0.1:9321"

[client]
timeout = "2s"
attempts = 7

[history]
dsn = "sqlite:///tmp/history.db"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Socket != "/tmp/custom.sock" {
		t.Fatalf("Socket=%q", cfg.Socket)
	}
	if cfg.MaxLogLines != 250 {
		t.Fatalf("MaxLogLines=%d", cfg.MaxLogLines)
	}
	if cfg.MetricsListen != "127.0.0.1:9321" {
		t.Fatalf("MetricsListen=%q", cfg.MetricsListen)
	}
	if cfg.Client.Timeout != 2*time.Second || cfg.Client.Attempts != 7 {
		t.Fatalf("client overrides: %+v", cfg.Client)
	}
	// untouched fields keep their defaults
	if cfg.Client.RetryInterval != 500*time.Millisecond {
		t.Fatalf("RetryInterval=%s", cfg.Client.RetryInterval)
	}
	if cfg.PIDFile != filepath.Join(dir, "daemon.pid") {
		t.Fatalf("PIDFile=%q", cfg.PIDFile)
	}
	if cfg.History.DSN != "sqlite:///tmp/history.db" {
		t.Fatalf("History.DSN=%q", cfg.History.DSN)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("socket = [broken"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("broken file accepted")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("repeated EnsureDir: %v", err)
	}
}
