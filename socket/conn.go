// Package socket carries protocol messages over unix stream sockets, with
// the descriptors of fd arguments passed alongside as SCM_RIGHTS ancillary
// data.
//
// Received descriptors are queued on the Conn in arrival order. Decoding a
// message takes as many as its signature has fd arguments from the front of
// the queue; from then on they belong to whoever handles the message, which
// must close them or keep them with DupFd.
package socket

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/ngrok/wlcommons/wire"
)

// ErrFdsTruncated indicates that the kernel dropped descriptors because more
// arrived at once than the receive buffer had room for.
var ErrFdsTruncated = errors.New("file descriptors were truncated")

const readChunk = 4096

// Conn is one end of a protocol connection.
type Conn struct {
	c *net.UnixConn

	readMu sync.Mutex
	in     []byte
	inFds  []int

	writeMu sync.Mutex

	closeOnce sync.Once
	l         log15.Logger
}

// Option is an option function for Conn and Listener.
type Option func(o *options)

type options struct {
	l log15.Logger
}

// WithLogger configures the logger to use. By default, nothing is logged.
func WithLogger(l log15.Logger) Option {
	return func(o *options) {
		o.l = l
	}
}

func buildOptions(opts []Option) options {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	o := options{l: noopLogger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewConn wraps an established unix socket connection.
func NewConn(c *net.UnixConn, opts ...Option) *Conn {
	o := buildOptions(opts)
	return &Conn{
		c: c,
		l: o.l.New("conn", addrString(c.LocalAddr())),
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return "<unnamed>"
	}
	return a.String()
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't connect to %s", path)
	}
	return NewConn(c.(*net.UnixConn), opts...), nil
}

// Pair returns two connected Conns.
func Pair(opts ...Option) (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "can't create socketpair")
	}
	a, err := fileConn(fds[0], "pair-a")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := fileConn(fds[1], "pair-b")
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return NewConn(a, opts...), NewConn(b, opts...), nil
}

func fileConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, errors.Wrapf(err, "can't convert %s to a connection", name)
	}
	return c.(*net.UnixConn), nil
}

// WriteMessage writes one or more encoded messages and the descriptors of
// their fd arguments. The descriptors are sent with the first byte of data,
// so they arrive no later than the message that refers to them. Ownership of
// fds stays with the caller.
func (c *Conn) WriteMessage(data []byte, fds []int) error {
	oob, err := unixRights(fds)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	n, _, err := c.c.WriteMsgUnix(data, oob, nil)
	if err != nil {
		return errors.Wrap(err, "can't write message")
	}
	for n < len(data) {
		m, err := c.c.Write(data[n:])
		if err != nil {
			return errors.Wrap(err, "can't write message")
		}
		n += m
	}
	c.l.Debug("wrote message", "bytes", len(data), "fds", len(fds))
	return nil
}

// ReadMessage blocks until a complete message is available and returns its
// header and body. Descriptors received so far are queued, see PendingFds.
//
// If ctx is done before a message arrives, the context's error is returned
// wrapped; it can be retrieved with errors.Cause. Bytes already read stay
// buffered.
func (c *Conn) ReadMessage(ctx context.Context) (wire.Header, []byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	functionEnd := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-functionEnd:
		case <-ctx.Done():
			// unblock any pending read; the deadline is cleared on return
			_ = c.c.SetReadDeadline(time.Now())
		}
	}()
	defer func() {
		close(functionEnd)
		<-watcherDone
		_ = c.c.SetReadDeadline(time.Time{})
	}()
	// orContextErr returns a context error instead of the passed error if
	// there is one, on the assumption that the cancellation caused it.
	orContextErr := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, err.Error())
		}
		return err
	}

	buf := make([]byte, readChunk)
	oob := make([]byte, oobSpace)
	for {
		h, body, rest, ok, err := wire.SplitFrame(c.in)
		if err != nil {
			return wire.Header{}, nil, err
		}
		if ok {
			msg := make([]byte, len(body))
			copy(msg, body)
			c.in = append(c.in[:0], rest...)
			return h, msg, nil
		}
		if err := ctx.Err(); err != nil {
			return wire.Header{}, nil, errors.Wrap(err, "reading message")
		}

		n, oobn, flags, _, err := c.c.ReadMsgUnix(buf, oob)
		if oobn > 0 {
			fds, perr := parseUnixRights(oob[:oobn])
			if perr != nil {
				return wire.Header{}, nil, perr
			}
			c.inFds = append(c.inFds, fds...)
		}
		if flags&unix.MSG_CTRUNC != 0 {
			return wire.Header{}, nil, ErrFdsTruncated
		}
		// n is negative when the read fails
		if n > 0 {
			c.in = append(c.in, buf[:n]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return wire.Header{}, nil, orContextErr(errors.Wrap(err, "can't read message"))
		}
		if err != nil || (n <= 0 && oobn <= 0) {
			return wire.Header{}, nil, c.eofLocked()
		}
	}
}

func (c *Conn) eofLocked() error {
	if len(c.in) > 0 {
		return io.ErrUnexpectedEOF
	}
	return io.EOF
}

// PendingFds returns the received descriptors not yet taken by a message.
func (c *Conn) PendingFds() []int {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	fds := make([]int, len(c.inFds))
	copy(fds, c.inFds)
	return fds
}

// TakeFds removes and returns the first n pending descriptors. The caller
// owns them.
func (c *Conn) TakeFds(n int) []int {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if n > len(c.inFds) {
		n = len(c.inFds)
	}
	fds := make([]int, n)
	copy(fds, c.inFds[:n])
	c.inFds = append(c.inFds[:0], c.inFds[n:]...)
	return fds
}

// Close closes the connection and any descriptors no message took.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.c.Close()
		c.readMu.Lock()
		CloseFds(c.inFds)
		c.inFds = nil
		c.readMu.Unlock()
	})
	return err
}
