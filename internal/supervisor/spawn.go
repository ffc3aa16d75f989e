package supervisor

import (
	"bufio"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/loykin/scriptd/internal/protocol"
)

// pump consumes one output stream line by line and feeds the control loop.
// Per-stream order is preserved because each stream has exactly one pump;
// stdout/stderr interleaving is whatever arrival order the OS delivers.
func (s *Supervisor) pump(id string, r io.Reader, origin string, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		entry := protocol.LogEntry{
			Timestamp: time.Now(),
			Text:      sc.Text(),
			Origin:    origin,
		}
		select {
		case s.ops <- op{kind: evLine, id: id, entry: entry}:
		case <-s.done:
			return
		}
	}
}

// awaitExit reaps the child once both pumps have drained their pipes, then
// reports the exit code to the control loop.
func (s *Supervisor) awaitExit(id string, cmd *exec.Cmd, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	select {
	case s.ops <- op{kind: evExit, id: id, code: code}:
	case <-s.done:
	}
}
