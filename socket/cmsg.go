package socket

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MaxFdsPerMessage is the most descriptors sent along with one message.
const MaxFdsPerMessage = 28

// oobSpace is the control buffer size that holds the descriptors of one
// message. SCM_RIGHTS carries each descriptor as a 4 byte int.
var oobSpace = unix.CmsgSpace(MaxFdsPerMessage * 4)

// unixRights encodes fds as a single SCM_RIGHTS control message.
func unixRights(fds []int) ([]byte, error) {
	if len(fds) == 0 {
		return nil, nil
	}
	if len(fds) > MaxFdsPerMessage {
		return nil, errors.Errorf("sendfd: %d fds exceed the limit of %d", len(fds), MaxFdsPerMessage)
	}
	return unix.UnixRights(fds...), nil
}

// parseUnixRights extracts every descriptor carried by the control
// messages in oob.
func parseUnixRights(oob []byte) ([]int, error) {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, errors.Wrap(err, "recvfd: can't parse control messages")
	}
	var fds []int
	for i := range scms {
		scm := scms[i]
		if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			CloseFds(fds)
			return nil, errors.Wrap(err, "recvfd: can't parse rights")
		}
		fds = append(fds, got...)
	}
	return fds, nil
}
