package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/scriptd/internal/history"
)

func TestSQLiteSink_Integration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	sink, err := New("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventSpawned, OccurredAt: time.Now().UTC(), ProcessID: "1700000000000", Script: "echo hi", PID: 42},
		{Type: history.EventExited, OccurredAt: time.Now().UTC(), ProcessID: "1700000000000", Script: "echo hi", PID: 42, ExitCode: 1},
		{Type: history.EventRestarted, OccurredAt: time.Now().UTC(), ProcessID: "1700000000001", Script: "echo hi", ExitCode: 1},
		{Type: history.EventStopped, OccurredAt: time.Now().UTC(), ProcessID: "1700000000001", Script: "echo hi", PID: 43},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	var count int
	row := sink.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM script_history;`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if count != len(events) {
		t.Fatalf("Stored %d rows, want %d", count, len(events))
	}

	var event string
	var exitCode int
	row = sink.db.QueryRowContext(ctx,
		`SELECT event, exit_code FROM script_history WHERE process_id = ? AND event = ?;`,
		"1700000000000", string(history.EventExited))
	if err := row.Scan(&event, &exitCode); err != nil {
		t.Fatalf("Failed to query exited row: %v", err)
	}
	if exitCode != 1 {
		t.Fatalf("Stored exit code %d, want 1", exitCode)
	}
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	e := history.Event{
		Type: history.EventSpawned, OccurredAt: time.Now().UTC(),
		ProcessID: "1700000000000", Script: "sleep 5", PID: 7,
	}
	if err := sink.Send(context.Background(), e); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("Empty DSN accepted")
	}
}
