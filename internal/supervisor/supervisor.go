// Package supervisor owns the process registry: it spawns scripts as managed
// children, retains their output in per-process ring buffers, applies the
// restart policy, and answers control-plane queries.
//
// All registry and buffer state is owned by a single control loop fed through
// one channel; public methods and the per-child pump/wait goroutines only
// ever communicate with that loop. Correctness rests on this
// single-writer-by-construction discipline, not on locks.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/loykin/scriptd/internal/history"
	"github.com/loykin/scriptd/internal/logbuf"
	"github.com/loykin/scriptd/internal/metrics"
	"github.com/loykin/scriptd/internal/mirror"
	"github.com/loykin/scriptd/internal/protocol"
)

// Config wires the supervisor's collaborators. Mirror and Sinks are optional
// and strictly best-effort: they observe the registry, they never drive it.
type Config struct {
	Logger          *slog.Logger
	Mirror          *mirror.Mirror
	Sinks           []history.Sink
	DefaultMaxLines int
}

// record is one registry entry, owned exclusively by the control loop.
// Exited records stay registered until an explicit stop; list surfaces them
// indefinitely. That staleness is a documented simplicity trade-off.
type record struct {
	id        string
	script    string
	opts      protocol.StartOptions
	startedAt time.Time
	cmd       *exec.Cmd
	pid       int
	buf       *logbuf.Buffer
	running   bool
	exitCode  int
}

type opKind int

const (
	opStart opKind = iota
	opStop
	opList
	opLogs
	opAttach
	opDetach
	evLine
	evExit
)

type op struct {
	kind   opKind
	script string
	opts   protocol.StartOptions
	id     string
	start  int
	count  int
	entry  protocol.LogEntry
	code   int
	sub    *logbuf.Subscriber
	reply  chan result
}

type result struct {
	id   string
	list []protocol.ProcessInfo
	logs []protocol.LogEntry
	sub  *logbuf.Subscriber
	err  error
}

var errNotRunning = errors.New("supervisor not running")

type Supervisor struct {
	ops    chan op
	done   chan struct{}
	histCh chan history.Event

	log   *slog.Logger
	mir   *mirror.Mirror
	sinks []history.Sink

	defaultMaxLines int

	// control-loop state, never touched outside run
	records map[string]*record
	order   []string
	lastID  int64
}

func New(cfg Config) *Supervisor {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxLines := cfg.DefaultMaxLines
	if maxLines <= 0 {
		maxLines = logbuf.DefaultMaxLines
	}
	s := &Supervisor{
		ops:             make(chan op, 64),
		done:            make(chan struct{}),
		log:             log,
		mir:             cfg.Mirror,
		sinks:           cfg.Sinks,
		defaultMaxLines: maxLines,
		records:         make(map[string]*record),
	}
	if len(s.sinks) > 0 {
		s.histCh = make(chan history.Event, 256)
	}
	return s
}

// Run executes the control loop until ctx is canceled. Children are not
// terminated on return: a dying supervisor orphans its children, they keep
// executing unmanaged. That gap is part of the design, not an oversight here.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)
	if s.histCh != nil {
		defer close(s.histCh)
		go s.exportHistory()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-s.ops:
			s.dispatch(o)
		}
	}
}

func (s *Supervisor) dispatch(o op) {
	switch o.kind {
	case opStart:
		id, err := s.launch(o.script, o.opts)
		o.reply <- result{id: id, err: err}
	case opStop:
		s.stop(o.id)
		o.reply <- result{}
	case opList:
		o.reply <- result{list: s.list()}
	case opLogs:
		logs, err := s.logs(o.id, o.start, o.count)
		o.reply <- result{logs: logs, err: err}
	case opAttach:
		logs, sub, err := s.attach(o.id)
		o.reply <- result{logs: logs, sub: sub, err: err}
	case opDetach:
		if rec, ok := s.records[o.id]; ok {
			rec.buf.Unsubscribe(o.sub)
		}
		metrics.AttachClosed()
		o.reply <- result{}
	case evLine:
		if rec, ok := s.records[o.id]; ok {
			if rec.buf.Append(o.entry) {
				metrics.IncEvicted()
			}
			metrics.IncLogLine()
		}
	case evExit:
		s.handleExit(o.id, o.code)
	}
}

// Start spawns script and returns the freshly minted process id. It returns
// as soon as the child is launched; it never waits for completion.
func (s *Supervisor) Start(script string, opts protocol.StartOptions) (string, error) {
	r := s.submit(op{kind: opStart, script: script, opts: opts})
	return r.id, r.err
}

// Stop forcibly terminates the identified process and removes its record.
// An unknown id is a silent no-op.
func (s *Supervisor) Stop(id string) {
	s.submit(op{kind: opStop, id: id})
}

// List snapshots every registered record in insertion order, stale exited
// entries included.
func (s *Supervisor) List() []protocol.ProcessInfo {
	return s.submit(op{kind: opList}).list
}

// Logs returns a clamped slice of the retained log window.
func (s *Supervisor) Logs(id string, start, count int) ([]protocol.LogEntry, error) {
	r := s.submit(op{kind: opLogs, id: id, start: start, count: count})
	return r.logs, r.err
}

// Attach atomically snapshots the retained window and registers a live
// subscriber, so the caller sees history then every later entry exactly once.
func (s *Supervisor) Attach(id string) ([]protocol.LogEntry, *logbuf.Subscriber, error) {
	r := s.submit(op{kind: opAttach, id: id})
	return r.logs, r.sub, r.err
}

// Detach removes an attach subscriber. Safe to call after the record is gone.
func (s *Supervisor) Detach(id string, sub *logbuf.Subscriber) {
	s.submit(op{kind: opDetach, id: id, sub: sub})
}

func (s *Supervisor) submit(o op) result {
	o.reply = make(chan result, 1)
	select {
	case s.ops <- o:
	case <-s.done:
		return result{err: errNotRunning}
	}
	select {
	case r := <-o.reply:
		return r
	case <-s.done:
		return result{err: errNotRunning}
	}
}

// nextID mints a millisecond-epoch id, bumped past the previous one when the
// clock has not advanced. Minted only on the control loop, so collisions are
// structurally impossible.
func (s *Supervisor) nextID() string {
	ms := time.Now().UnixMilli()
	if ms <= s.lastID {
		ms = s.lastID + 1
	}
	s.lastID = ms
	return strconv.FormatInt(ms, 10)
}

func (s *Supervisor) launch(script string, opts protocol.StartOptions) (string, error) {
	maxLines := opts.MaxLogLines
	if maxLines <= 0 {
		maxLines = s.defaultMaxLines
	}
	cmd := buildCommand(script)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("spawn %q: %w", script, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("spawn %q: %w", script, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("spawn %q: %w", script, err)
	}

	id := s.nextID()
	rec := &record{
		id:        id,
		script:    script,
		opts:      opts,
		startedAt: time.Now(),
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		buf:       logbuf.New(maxLines),
		running:   true,
	}
	s.records[id] = rec
	s.order = append(s.order, id)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go s.pump(id, stdout, protocol.OriginStdout, &pumps)
	go s.pump(id, stderr, protocol.OriginStderr, &pumps)
	go s.awaitExit(id, cmd, &pumps)

	s.log.Info("process started", "id", id, "script", script, "pid", rec.pid, "restart", opts.Restart)
	metrics.IncStart()
	if s.mir != nil {
		if err := s.mir.RecordStart(mirror.Record{
			ID: id, Script: script, Restart: opts.Restart,
			PID: rec.pid, StartedAt: rec.startedAt, Status: protocol.StatusRunning,
		}); err != nil {
			s.log.Warn("metadata mirror write failed", "error", err)
		}
	}
	s.sendHistory(history.Event{
		Type: history.EventSpawned, OccurredAt: time.Now().UTC(),
		ProcessID: id, Script: script, PID: rec.pid,
	})
	return id, nil
}

func (s *Supervisor) stop(id string) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	if rec.running && rec.pid > 0 {
		// fire-and-forget: terminate the whole group, never confirm the exit
		terminateGroup(rec.pid)
	}
	rec.buf.CloseSubscribers()
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.Info("process stopped", "id", id, "script", rec.script)
	metrics.IncStop()
	if s.mir != nil {
		if err := s.mir.RecordRemoval(id); err != nil {
			s.log.Warn("metadata mirror write failed", "error", err)
		}
	}
	s.sendHistory(history.Event{
		Type: history.EventStopped, OccurredAt: time.Now().UTC(),
		ProcessID: id, Script: rec.script, PID: rec.pid,
	})
}

func (s *Supervisor) list() []protocol.ProcessInfo {
	now := time.Now()
	out := make([]protocol.ProcessInfo, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		info := protocol.ProcessInfo{
			ID:       rec.id,
			Script:   rec.script,
			UptimeMS: now.Sub(rec.startedAt).Milliseconds(),
			Status:   protocol.StatusRunning,
		}
		if !rec.running {
			code := rec.exitCode
			info.Status = protocol.StatusExited
			info.ExitCode = &code
		}
		out = append(out, info)
	}
	return out
}

func (s *Supervisor) logs(id string, start, count int) ([]protocol.LogEntry, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrNotFound, id)
	}
	return rec.buf.Slice(start, count), nil
}

func (s *Supervisor) attach(id string) ([]protocol.LogEntry, *logbuf.Subscriber, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", protocol.ErrNotFound, id)
	}
	snapshot := rec.buf.Snapshot()
	sub := rec.buf.Subscribe()
	metrics.AttachOpened()
	return snapshot, sub, nil
}

func (s *Supervisor) handleExit(id string, code int) {
	rec, ok := s.records[id]
	if !ok || !rec.running {
		// stopped and forgotten before the waiter reported back
		return
	}
	rec.running = false
	rec.exitCode = code
	s.log.Info("process exited", "id", id, "script", rec.script, "code", code)
	if s.mir != nil {
		if err := s.mir.RecordExit(id, code); err != nil {
			s.log.Warn("metadata mirror write failed", "error", err)
		}
	}
	s.sendHistory(history.Event{
		Type: history.EventExited, OccurredAt: time.Now().UTC(),
		ProcessID: id, Script: rec.script, PID: rec.pid, ExitCode: code,
	})

	if rec.opts.Restart && code != 0 {
		// Immediate, uncapped respawn under a new id; the exited record stays
		// as a closed historical entry. A crash-looping script respawns
		// continuously with no backoff.
		newID, err := s.launch(rec.script, rec.opts)
		if err != nil {
			s.log.Error("restart failed", "id", id, "script", rec.script, "error", err)
			return
		}
		s.log.Warn("process restarted after non-zero exit", "old_id", id, "new_id", newID, "code", code)
		metrics.IncRestart()
		s.sendHistory(history.Event{
			Type: history.EventRestarted, OccurredAt: time.Now().UTC(),
			ProcessID: newID, Script: rec.script, ExitCode: code,
		})
	}
}

// sendHistory queues one event for export. Events are drained by a single
// goroutine so sinks observe lifecycle order; a full queue drops the event
// rather than stall the control loop.
func (s *Supervisor) sendHistory(e history.Event) {
	if s.histCh == nil {
		return
	}
	select {
	case s.histCh <- e:
	default:
		s.log.Debug("history event dropped", "type", e.Type, "id", e.ProcessID)
	}
}

// exportHistory feeds every sink from the event queue, one event at a time,
// until the queue is closed on shutdown.
func (s *Supervisor) exportHistory() {
	for e := range s.histCh {
		for _, sink := range s.sinks {
			if err := sink.Send(context.Background(), e); err != nil {
				s.log.Debug("history sink send failed", "error", err)
			}
		}
	}
}
