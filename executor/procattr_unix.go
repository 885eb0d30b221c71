//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes cancellation kill the whole process group, so
// commands started by the deploy script are stopped along with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
