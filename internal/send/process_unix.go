//go:build !windows

package send

import (
	"os/exec"
	"syscall"
)

// setProcessGroup places the child in its own process group so
// killProcessTree can signal the whole tree at once, grounded in the
// same Setsid discipline the corpus uses for detached child processes
// (cmd/iter/main.go's daemon launcher).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree force-kills the entire process group rooted at cmd's
// child (spec.md §5: "force-kills the entire child process tree").
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
