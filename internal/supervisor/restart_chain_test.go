package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/scriptd/internal/protocol"
)

// A crash-looping script must keep respawning under fresh ids while every
// crashed generation stays listed as a closed record.
func TestRestartChainAccumulatesExitedRecords(t *testing.T) {
	requireUnix(t)
	sup := startSupervisor(t)

	id, err := sup.Start("sh -c 'sleep 0.05; exit 1'", protocol.StartOptions{Restart: true})
	require.NoError(t, err, "Failed to start crash-looping script")

	deadline := time.Now().Add(3 * time.Second)
	var list []protocol.ProcessInfo
	for time.Now().Before(deadline) {
		list = sup.List()
		exited := 0
		for _, p := range list {
			if p.Status == protocol.StatusExited {
				exited++
			}
		}
		if exited >= 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	exited := 0
	seen := map[string]bool{}
	for _, p := range list {
		require.False(t, seen[p.ID], "Duplicate id %s in list", p.ID)
		seen[p.ID] = true
		if p.Status == protocol.StatusExited {
			exited++
			require.NotNil(t, p.ExitCode, "Exited record %s missing exit code", p.ID)
			assert.Equal(t, 1, *p.ExitCode, "Exited record %s has wrong code", p.ID)
		}
	}
	require.GreaterOrEqual(t, exited, 3, "Expected at least 3 crashed generations, list: %+v", list)
	assert.True(t, seen[id], "Original record pruned from list")

	// tear the chain down: stop whatever is currently running
	for _, p := range sup.List() {
		if p.Status == protocol.StatusRunning {
			sup.Stop(p.ID)
		}
	}
}

// Restarted generations inherit the spawn options of the crashed one.
func TestRestartInheritsOptions(t *testing.T) {
	requireUnix(t)
	sup := startSupervisor(t)

	_, err := sup.Start("sh -c 'echo a; echo b; echo c; exit 1'",
		protocol.StartOptions{Restart: true, MaxLogLines: 2})
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var replacement string
		for _, p := range sup.List() {
			if p.Status == protocol.StatusExited {
				continue
			}
			replacement = p.ID
		}
		if replacement != "" {
			logs, err := sup.Logs(replacement, 0, 0)
			if err == nil && len(logs) > 0 {
				assert.LessOrEqual(t, len(logs), 2, "Replacement window not clamped: %+v", logs)
				sup.Stop(replacement)
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no restarted generation produced output in time")
}
