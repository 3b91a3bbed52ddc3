//go:build !windows

package descriptor

import (
	"os"
	"syscall"
)

// pidExists reports whether a process with the given pid is currently
// running, using the POSIX convention of sending signal 0 (no-op delivery,
// error iff the process doesn't exist or isn't ours to signal).
func pidExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
