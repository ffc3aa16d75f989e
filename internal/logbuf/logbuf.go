package logbuf

import (
	"github.com/loykin/scriptd/internal/protocol"
)

// DefaultMaxLines is the retained window when a process does not override it.
const DefaultMaxLines = 1000

// Buffer is a fixed-capacity, oldest-evicted log retention window for one
// process, with live subscriber fan-out. It is not internally synchronized:
// the supervisor's control loop is the only mutator, and all reads happen on
// that loop too. Subscribers carry their own synchronization because attach
// sessions drain them from connection goroutines.
type Buffer struct {
	max     int
	entries []protocol.LogEntry
	subs    map[*Subscriber]struct{}
}

func New(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxLines
	}
	return &Buffer{max: max, subs: make(map[*Subscriber]struct{})}
}

// Append retains e, evicting the oldest entry when the window is full, and
// forwards e to every registered subscriber before returning.
func (b *Buffer) Append(e protocol.LogEntry) (evicted bool) {
	if len(b.entries) >= b.max {
		// shift in place so the backing array does not grow past max
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = e
		evicted = true
	} else {
		b.entries = append(b.entries, e)
	}
	for s := range b.subs {
		s.push(e)
	}
	return evicted
}

func (b *Buffer) Len() int { return len(b.entries) }

// Slice returns a copy of the retained window clamped to [start, start+count).
// A negative start is treated as 0, an out-of-range start yields an empty
// slice, and count <= 0 means everything from start.
func (b *Buffer) Slice(start, count int) []protocol.LogEntry {
	if start < 0 {
		start = 0
	}
	if start >= len(b.entries) {
		return []protocol.LogEntry{}
	}
	end := len(b.entries)
	if count > 0 && start+count < end {
		end = start + count
	}
	out := make([]protocol.LogEntry, end-start)
	copy(out, b.entries[start:end])
	return out
}

// Snapshot returns a copy of the whole retained window.
func (b *Buffer) Snapshot() []protocol.LogEntry {
	return b.Slice(0, 0)
}

// Subscribe registers a new live subscriber. The caller sees every entry
// appended after this call, exactly once, in append order.
func (b *Buffer) Subscribe() *Subscriber {
	s := newSubscriber()
	b.subs[s] = struct{}{}
	return s
}

// Unsubscribe removes and closes s. Unknown subscribers are a no-op.
func (b *Buffer) Unsubscribe(s *Subscriber) {
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	s.close()
}

// CloseSubscribers closes every subscriber, ending their attach sessions.
// Called when the owning process record is removed.
func (b *Buffer) CloseSubscribers() {
	for s := range b.subs {
		delete(b.subs, s)
		s.close()
	}
}

// Subscribers returns the current subscriber count.
func (b *Buffer) Subscribers() int { return len(b.subs) }
