//go:build windows

package supervisor

import (
	"os"
	"os/exec"
	"strings"
)

// buildCommand constructs the *exec.Cmd for a script reference on Windows.
func buildCommand(script string) *exec.Cmd {
	cmdStr := strings.TrimSpace(script)
	if cmdStr == "" {
		return exec.Command("cmd", "/c", "exit 0")
	}
	// #nosec G204
	return exec.Command("cmd", "/c", cmdStr)
}

// terminateGroup kills the child process without waiting. Windows has no
// process groups in the Unix sense; descendants may survive.
func terminateGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}
