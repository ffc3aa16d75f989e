package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/scriptd/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	addr := host + ":" + port.Port()
	return clickHouseContainer, addr
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "default", "script_history")
	if err != nil {
		t.Fatalf("Failed to create ClickHouse sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	events := []history.Event{
		{Type: history.EventSpawned, OccurredAt: time.Now().UTC(), ProcessID: "1700000000000", Script: "sleep 1", PID: 21},
		{Type: history.EventExited, OccurredAt: time.Now().UTC(), ProcessID: "1700000000000", Script: "sleep 1", PID: 21, ExitCode: 1},
		{Type: history.EventRestarted, OccurredAt: time.Now().UTC(), ProcessID: "1700000000001", Script: "sleep 1", ExitCode: 1},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, `SELECT COUNT(*) FROM script_history`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if int(count) != len(events) {
		t.Fatalf("Stored %d rows, want %d", count, len(events))
	}
}

func TestClickHouseSink_UnreachableServer(t *testing.T) {
	// New pings eagerly, so a dead address must fail construction.
	if _, err := New("127.0.0.1:1", "", ""); err == nil {
		t.Fatal("Unreachable server accepted")
	}
}
