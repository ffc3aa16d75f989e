//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// Alive probes pid with a zero-effect signal.
func Alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func terminate(pid int) {
	_ = syscall.Kill(pid, syscall.SIGTERM)
}

// configureDetached puts the child in its own session so it survives the
// caller's exit.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
