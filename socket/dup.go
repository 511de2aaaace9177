package socket

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DupFd duplicates fd with the close-on-exec flag set. An fd received in an
// argument is only valid while its message is being handled; DupFd is how a
// handler keeps it longer.
func DupFd(fd int) (int, error) {
	dupfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap(err, "can't dup fd using fcntl")
	}
	return dupfd, nil
}

// CloseFds closes every descriptor in fds, ignoring errors.
func CloseFds(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
