//go:build unix

package holder

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ProcessAlive reports whether a process with pid exists. EPERM means it
// exists under another user.
func ProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
