//go:build unix

package capture

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func terminateGroup(proc *os.Process) error {
	return signalGroup(proc, unix.SIGTERM)
}

func killGroup(proc *os.Process) error {
	return signalGroup(proc, unix.SIGKILL)
}

// signalGroup signals the whole process group, falling back to the leader
// alone when the group is unavailable. A vanished group is not an error.
func signalGroup(proc *os.Process, sig unix.Signal) error {
	if proc == nil || proc.Pid <= 0 {
		return nil
	}
	err := unix.Kill(-proc.Pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
