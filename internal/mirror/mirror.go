// Package mirror maintains a best-effort, write-only JSON copy of the process
// registry for external inspection. It is never read back: a supervisor
// restart starts from an empty registry regardless of what the file says.
package mirror

import (
	"encoding/json"
	"os"
	"time"
)

// Record is one mirrored registry entry.
type Record struct {
	ID        string    `json:"id"`
	Script    string    `json:"script"`
	Restart   bool      `json:"restart"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Status    string    `json:"status"`
	ExitCode  *int      `json:"exitCode,omitempty"`
}

// Mirror accumulates records in memory and rewrites the file on every change.
// All calls happen on the supervisor's control loop, so no locking. Every
// operation is best-effort: a write failure is reported but must never fail
// the supervisor operation that triggered it.
type Mirror struct {
	path string
	recs []Record
}

func New(path string) *Mirror { return &Mirror{path: path} }

// RecordStart appends rec and flushes.
func (m *Mirror) RecordStart(rec Record) error {
	m.recs = append(m.recs, rec)
	return m.flush()
}

// RecordExit marks the identified record exited and flushes. Unknown ids are
// ignored.
func (m *Mirror) RecordExit(id string, code int) error {
	for i := range m.recs {
		if m.recs[i].ID == id {
			c := code
			m.recs[i].Status = "exited"
			m.recs[i].ExitCode = &c
			break
		}
	}
	return m.flush()
}

// RecordRemoval drops the identified record and flushes.
func (m *Mirror) RecordRemoval(id string) error {
	for i := range m.recs {
		if m.recs[i].ID == id {
			m.recs = append(m.recs[:i], m.recs[i+1:]...)
			break
		}
	}
	return m.flush()
}

func (m *Mirror) flush() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m.recs, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(m.path, data, 0o600)
}
