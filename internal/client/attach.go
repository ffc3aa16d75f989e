package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/loykin/scriptd/internal/protocol"
)

// AttachStream is the receiving end of an attach session: the retained window
// replayed first, then live entries until the daemon closes the stream or
// Close is called. There is no read deadline; a silent process simply yields
// no entries.
type AttachStream struct {
	conn net.Conn
	r    *bufio.Reader
}

// Attach opens an attach session for the identified process.
func (c *Client) Attach(id string) (*AttachStream, error) {
	conn, err := net.DialTimeout("unix", c.socket, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrUnreachable, err)
	}
	req := protocol.Request{Type: protocol.RequestAttach, ProcessID: id}
	if err := protocol.WriteFrame(conn, req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: write: %v", protocol.ErrUnreachable, err)
	}
	return &AttachStream{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Next returns the next streamed entry. It returns io.EOF when the daemon
// ends the stream, or the refusal reason when the daemon rejected the attach
// (unknown id) instead of streaming.
func (s *AttachStream) Next() (protocol.LogEntry, error) {
	line, err := s.r.ReadBytes(protocol.Delimiter)
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return protocol.LogEntry{}, io.EOF
		}
		return protocol.LogEntry{}, err
	}
	// The first document may be an Error response rather than an entry.
	var doc struct {
		Timestamp time.Time `json:"timestamp"`
		Text      string    `json:"text"`
		Origin    string    `json:"origin"`
		Error     string    `json:"error"`
	}
	if err := json.Unmarshal(line, &doc); err != nil {
		return protocol.LogEntry{}, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	if doc.Error != "" {
		return protocol.LogEntry{}, fmt.Errorf("%w: %s", protocol.ErrNotFound, doc.Error)
	}
	return protocol.LogEntry{Timestamp: doc.Timestamp, Text: doc.Text, Origin: doc.Origin}, nil
}

func (s *AttachStream) Close() error { return s.conn.Close() }
