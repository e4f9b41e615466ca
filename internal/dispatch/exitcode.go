package dispatch

import (
	"errors"
	"os/exec"
	"syscall"
)

// exitStatus classifies the error from cmd.Run. A non-nil launchErr means
// the process never ran. A process terminated by a signal, including a
// context kill, reports code -1 and signaled true.
func exitStatus(err error) (code int, signaled bool, launchErr error) {
	if err == nil {
		return 0, false, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, true, nil
	}
	return exitErr.ExitCode(), false, nil
}
