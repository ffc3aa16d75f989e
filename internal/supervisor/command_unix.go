//go:build !windows

package supervisor

import (
	"os/exec"
	"strings"
	"syscall"
)

// buildCommand constructs the *exec.Cmd for a script reference. Shell
// metacharacters route through /bin/sh -c; plain commands exec directly.
// The child gets its own process group so stop can signal the whole tree.
func buildCommand(script string) *exec.Cmd {
	cmdStr := strings.TrimSpace(script)
	var cmd *exec.Cmd
	switch {
	case cmdStr == "":
		// #nosec G204
		cmd = exec.Command("/bin/true")
	case strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~"):
		// #nosec G204
		cmd = exec.Command("/bin/sh", "-c", cmdStr)
	default:
		parts := strings.Fields(cmdStr)
		// #nosec G204
		cmd = exec.Command(parts[0], parts[1:]...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// terminateGroup sends SIGTERM to the child's process group without waiting.
func terminateGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}
