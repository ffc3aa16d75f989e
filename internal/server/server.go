// Package server translates framed control-plane messages arriving on the
// local socket into supervisor operations.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/loykin/scriptd/internal/protocol"
	"github.com/loykin/scriptd/internal/supervisor"
)

// Server owns the exclusive local rendezvous point. Each accepted connection
// is handled independently; a connection carries one request at a time
// (send, await the response, then maybe send again) except attach, which
// upgrades it into a long-lived entry stream.
type Server struct {
	sup  *supervisor.Supervisor
	ln   net.Listener
	path string
	log  *slog.Logger
}

// Listen removes any stale socket artifact left by an unclean prior shutdown,
// binds the rendezvous point and starts accepting connections.
func Listen(socketPath string, sup *supervisor.Supervisor, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("bind control socket: %w", err)
	}
	s := &Server{sup: sup, ln: ln, path: socketPath, log: log}
	go s.acceptLoop()
	return s, nil
}

// Close stops accepting and removes the socket artifact.
func (s *Server) Close() error {
	err := s.ln.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			// listener closed
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	var acc protocol.Accumulator
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			if doc, ok := acc.Complete(); ok {
				if terminal := s.serveDoc(conn, doc); terminal {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// serveDoc dispatches one complete document. It reports whether the
// connection must close afterwards; only attach (served or refused) is
// terminal, every other fault leaves the connection open for a corrected
// follow-up request.
func (s *Server) serveDoc(conn net.Conn, doc []byte) bool {
	req, err := protocol.DecodeRequest(doc)
	if err != nil {
		s.log.Warn("malformed request", "error", err)
		_ = protocol.WriteFrame(conn, protocol.Errorf("malformed request: %v", err))
		return false
	}
	switch req.Type {
	case protocol.RequestStart:
		id, err := s.sup.Start(req.Script, req.Options)
		if err != nil {
			s.log.Error("spawn failed", "script", req.Script, "error", err)
			_ = protocol.WriteFrame(conn, protocol.Errorf("spawn failed: %v", err))
			return false
		}
		_ = protocol.WriteFrame(conn, protocol.OkID(id))
	case protocol.RequestStop:
		s.sup.Stop(req.ProcessID)
		_ = protocol.WriteFrame(conn, protocol.Stopped())
	case protocol.RequestList:
		_ = protocol.WriteFrame(conn, protocol.OkList(s.sup.List()))
	case protocol.RequestLogs:
		logs, err := s.sup.Logs(req.ProcessID, req.StartIndex, req.Count)
		if err != nil {
			if !errors.Is(err, protocol.ErrNotFound) {
				s.log.Error("logs query failed", "id", req.ProcessID, "error", err)
			}
			_ = protocol.WriteFrame(conn, protocol.Errorf("unknown process: %s", req.ProcessID))
			return false
		}
		_ = protocol.WriteFrame(conn, protocol.OkLogs(logs))
	case protocol.RequestAttach:
		s.serveAttach(conn, req.ProcessID)
		return true
	}
	return false
}

// serveAttach implements replay-then-tail: the entire retained window first,
// then every subsequently produced entry as soon as it is produced. Multiple
// sessions on one id each independently receive every entry. The stream ends
// when the client goes away or the process record is removed; it is never
// timed out from this side.
func (s *Server) serveAttach(conn net.Conn, id string) {
	entries, sub, err := s.sup.Attach(id)
	if err != nil {
		_ = protocol.WriteFrame(conn, protocol.Errorf("unknown process: %s", id))
		return
	}
	defer s.sup.Detach(id, sub)
	for _, e := range entries {
		if err := protocol.WriteFrame(conn, e); err != nil {
			return
		}
	}
	for {
		batch, ok := sub.Next()
		if !ok {
			return
		}
		for _, e := range batch {
			if err := protocol.WriteFrame(conn, e); err != nil {
				return
			}
		}
	}
}
