//go:build windows

package descriptor

import "os"

// pidExists reports whether a process with the given pid is currently
// running. os.FindProcess on Windows actually opens a handle, so a failure
// there is a reliable "doesn't exist" signal.
func pidExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
