package socket

import (
	"net"
	"os"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/rkt/rkt/pkg/lock"
)

// ErrAddrInUse indicates that another process holds the lock of the socket
// path passed to Listen.
var ErrAddrInUse = errors.New("socket is owned by another process")

// Listener accepts protocol connections on a unix socket path. The path is
// guarded by an exclusive lock on "<path>.lock", held for the lifetime of
// the listener, so a stale socket file left by a crashed server can be
// replaced safely while a live server's socket never is.
type Listener struct {
	ln   *net.UnixListener
	lock *lock.FileLock
	path string

	closeOnce sync.Once
	opts      []Option
	l         log15.Logger
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Listen takes the lock for path and listens on it.
func Listen(path string, opts ...Option) (*Listener, error) {
	o := buildOptions(opts)
	l := o.l.New("path", path)

	lockPath := path + ".lock"
	if err := touchFile(lockPath); err != nil {
		return nil, errors.Wrapf(err, "can't create lock file %s", lockPath)
	}
	fl, err := lock.TryExclusiveLock(lockPath, lock.RegFile)
	if err == lock.ErrLocked {
		return nil, errors.Wrapf(ErrAddrInUse, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can't lock %s", lockPath)
	}
	l.Info("took lock on socket path", "lock", lockPath)

	// We hold the lock, so whatever is at path was left behind by a previous
	// owner.
	if err := unlinkUnixSocket(path); err != nil && !os.IsNotExist(err) {
		fl.Close()
		return nil, errors.Wrapf(err, "can't remove stale socket %s", path)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		fl.Close()
		return nil, errors.Wrapf(err, "can't listen on %s", path)
	}
	ln.SetUnlinkOnClose(true)
	l.Info("listening for connections")
	return &Listener{
		ln:   ln,
		lock: fl,
		path: path,
		opts: opts,
		l:    l,
	}, nil
}

func unlinkUnixSocket(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Accept waits for the next connection.
func (ln *Listener) Accept() (*Conn, error) {
	c, err := ln.ln.AcceptUnix()
	if err != nil {
		return nil, errors.Wrap(err, "can't accept connection")
	}
	ln.l.Debug("accepted connection")
	return NewConn(c, ln.opts...), nil
}

// Addr returns the socket path.
func (ln *Listener) Addr() string {
	return ln.path
}

// Close stops listening, removes the socket and releases the lock.
func (ln *Listener) Close() error {
	var err error
	ln.closeOnce.Do(func() {
		err = ln.ln.Close()
		if uerr := ln.lock.Close(); uerr != nil && err == nil {
			err = uerr
		}
		ln.l.Info("stopped listening")
	})
	return err
}
