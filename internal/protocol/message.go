package protocol

import (
	"fmt"
	"time"
)

// RequestType discriminates the request union.
type RequestType string

const (
	RequestStart  RequestType = "start"
	RequestStop   RequestType = "stop"
	RequestList   RequestType = "list"
	RequestLogs   RequestType = "logs"
	RequestAttach RequestType = "attach"
)

// StartOptions carries per-process spawn options.
type StartOptions struct {
	Restart     bool `json:"restart,omitempty"`     // respawn on non-zero exit
	MaxLogLines int  `json:"maxLogLines,omitempty"` // retained log window, default 1000
}

// Request is one framed control-plane request. Type selects which of the
// remaining fields are meaningful.
type Request struct {
	Type       RequestType  `json:"type"`
	Script     string       `json:"script,omitempty"`
	Options    StartOptions `json:"options"`
	ProcessID  string       `json:"processId,omitempty"`
	StartIndex int          `json:"startIndex,omitempty"`
	Count      int          `json:"count,omitempty"`
}

// Validate checks the discriminant and the fields it requires.
func (r Request) Validate() error {
	switch r.Type {
	case RequestStart:
		if r.Script == "" {
			return fmt.Errorf("%w: start requires script", ErrMalformed)
		}
	case RequestStop, RequestAttach:
		if r.ProcessID == "" {
			return fmt.Errorf("%w: %s requires processId", ErrMalformed, r.Type)
		}
	case RequestLogs:
		if r.ProcessID == "" {
			return fmt.Errorf("%w: logs requires processId", ErrMalformed)
		}
	case RequestList:
	default:
		return fmt.Errorf("%w: unknown request type %q", ErrMalformed, r.Type)
	}
	return nil
}

// ProcessInfo is one entry of a list response.
type ProcessInfo struct {
	ID       string `json:"id"`
	Script   string `json:"script"`
	UptimeMS int64  `json:"uptime"`
	Status   string `json:"status"` // "running" | "exited"
	ExitCode *int   `json:"exitCode,omitempty"`
}

const (
	StatusRunning = "running"
	StatusExited  = "exited"
)

// LogEntry is one retained line of child output. Attach sessions stream these
// as bare framed documents.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Origin    string    `json:"origin"` // "stdout" | "stderr"
}

const (
	OriginStdout = "stdout"
	OriginStderr = "stderr"
)

// Response is one framed control-plane response.
type Response struct {
	Status string        `json:"status,omitempty"` // "ok" | "stopped"
	ID     string        `json:"id,omitempty"`
	List   []ProcessInfo `json:"list,omitempty"`
	Logs   []LogEntry    `json:"logs,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// OkID builds the response for a successful start.
func OkID(id string) Response { return Response{Status: "ok", ID: id} }

// OkList builds the response for a list request.
func OkList(list []ProcessInfo) Response { return Response{Status: "ok", List: list} }

// OkLogs builds the response for a logs request.
func OkLogs(logs []LogEntry) Response { return Response{Status: "ok", Logs: logs} }

// Stopped acknowledges a stop request. Stop on an unknown id still
// acknowledges; it is a deliberate asymmetry with logs/attach.
func Stopped() Response { return Response{Status: "stopped"} }

// Errorf builds an error response.
func Errorf(format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...)}
}
