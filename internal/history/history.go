// Package history exports supervisor lifecycle events to external analytics
// stores. Sinks are write-only and best-effort: a failing sink never affects
// a supervisor operation, and history is never consulted to rebuild state.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventSpawned   EventType = "spawned"
	EventExited    EventType = "exited"
	EventRestarted EventType = "restarted"
	EventStopped   EventType = "stopped"
)

// Event represents one lifecycle transition of a supervised process.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ProcessID  string    `json:"process_id"`
	Script     string    `json:"script"`
	PID        int       `json:"pid"`
	ExitCode   int       `json:"exit_code"` // meaningful for exited/restarted
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
