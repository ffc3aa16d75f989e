// Package client is the command-side transport: one framed request, one
// framed response, with bounded retry, plus a pure reachability probe used
// during bootstrap.
package client

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/loykin/scriptd/internal/protocol"
)

// Defaults for the request helper. The probe has its own budget; see Probe.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultAttempts      = 3
	DefaultRetryInterval = 500 * time.Millisecond
)

// Options tunes the request helper; zero values fall back to the defaults.
type Options struct {
	Timeout       time.Duration
	Attempts      int
	RetryInterval time.Duration
}

type Client struct {
	socket        string
	timeout       time.Duration
	attempts      int
	retryInterval time.Duration
}

func New(socketPath string, opts Options) *Client {
	c := &Client{
		socket:        socketPath,
		timeout:       opts.Timeout,
		attempts:      opts.Attempts,
		retryInterval: opts.RetryInterval,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.attempts <= 0 {
		c.attempts = DefaultAttempts
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	return c
}

// Do sends one framed request and awaits one framed response. Connection
// failures and timeouts are retried with a fixed delay; the last failure is
// surfaced once attempts are exhausted. A Response carrying an Error field is
// a successful exchange, not a transport failure, and is never retried.
func (c *Client) Do(req protocol.Request) (protocol.Response, error) {
	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			time.Sleep(c.retryInterval)
		}
		resp, err := c.roundTrip(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return protocol.Response{}, lastErr
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socket, c.timeout)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("%w: %v", protocol.ErrUnreachable, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	if err := protocol.WriteFrame(conn, req); err != nil {
		return protocol.Response{}, fmt.Errorf("%w: write: %v", protocol.ErrUnreachable, err)
	}

	var acc protocol.Accumulator
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			if doc, ok := acc.Complete(); ok {
				return protocol.DecodeResponse(doc)
			}
		}
		if err != nil {
			if isTimeout(err) {
				return protocol.Response{}, fmt.Errorf("%w after %s", protocol.ErrTimeout, c.timeout)
			}
			return protocol.Response{}, fmt.Errorf("%w: read: %v", protocol.ErrUnreachable, err)
		}
	}
}

func isTimeout(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}

// Probe answers "is something listening" by connecting and immediately
// disconnecting, retrying up to attempts times with a fixed delay. Its
// retry/delay budget is independent from the request helper's.
func Probe(socketPath string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(delay)
		}
		conn, err := net.DialTimeout("unix", socketPath, time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %v", protocol.ErrUnreachable, attempts, lastErr)
}
