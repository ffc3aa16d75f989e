//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

// Alive reports whether a process with pid exists. On Windows FindProcess
// opens a handle, so an error means the process is gone.
func Alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

func terminate(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func configureDetached(cmd *exec.Cmd) {
	// No session handling on Windows; the child simply is not awaited.
}
