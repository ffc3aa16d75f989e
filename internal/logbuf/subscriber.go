package logbuf

import (
	"sync"

	"github.com/loykin/scriptd/internal/protocol"
)

// Subscriber is the consuming end of a live fan-out registration. Entries are
// queued without bound so the producing control loop never blocks on a slow
// attach session; the session goroutine drains with Next.
type Subscriber struct {
	mu     sync.Mutex
	queue  []protocol.LogEntry
	ready  chan struct{}
	closed bool
}

func newSubscriber() *Subscriber {
	return &Subscriber{ready: make(chan struct{}, 1)}
}

func (s *Subscriber) push(e protocol.LogEntry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next blocks until at least one entry is queued and returns all queued
// entries in order. It returns ok=false once the subscriber is closed and
// fully drained.
func (s *Subscriber) Next() ([]protocol.LogEntry, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			batch := s.queue
			s.queue = nil
			s.mu.Unlock()
			return batch, true
		}
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()
		<-s.ready
	}
}
