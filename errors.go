package wlcommons

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSignatureMismatch indicates that an argument's variant does not match
	// the type the message signature requires at its position, or that the
	// number of arguments differs from the signature length.
	ErrSignatureMismatch = errors.New("arguments do not match message signature")
	// ErrUnknownOpcode indicates an opcode beyond the interface's request or
	// event list.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrVersionTooLow indicates a message that was added in a later version
	// than the one negotiated for the object it targets.
	ErrVersionTooLow = errors.New("message not available at object version")
	// ErrMalformedPayload indicates wire bytes that cannot be decoded into the
	// arguments of a message: truncated data, bad lengths, invalid strings or
	// missing file descriptors.
	ErrMalformedPayload = errors.New("malformed message payload")
	// ErrInvalidSchema indicates an interface table that violates one of the
	// descriptor invariants.
	ErrInvalidSchema = errors.New("invalid protocol schema")
)

// ProtocolError is a protocol violation detected while processing a single
// message. The wire format has no resynchronisation marker, so any
// ProtocolError is fatal to the connection it was detected on.
type ProtocolError struct {
	// Kind is one of the Err* sentinels of this package, or a sentinel of a
	// runtime built on it, such as an unknown or dead target object.
	Kind      error
	Interface string
	// Message is the message name when known.
	Message string
	Opcode  int
	Detail  string
}

func (e *ProtocolError) Error() string {
	target := e.Interface
	if e.Message != "" && e.Interface != "" {
		target = fmt.Sprintf("%s.%s", e.Interface, e.Message)
	} else if e.Message != "" {
		target = e.Message
	} else if e.Opcode >= 0 {
		target = fmt.Sprintf("%s#%d", e.Interface, e.Opcode)
	}
	msg := fmt.Sprint(e.Kind)
	if target != "" {
		msg = fmt.Sprintf("%s: %s", target, msg)
	}
	if e.Detail == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, e.Detail)
}

// Cause returns the error kind, for errors.Cause.
func (e *ProtocolError) Cause() error { return e.Kind }

func (e *ProtocolError) Unwrap() error { return e.Kind }

// NewProtocolError builds a ProtocolError of the given kind against a
// message. desc may be nil when the message could not be identified.
func NewProtocolError(kind error, iface *Interface, desc *MessageDesc, opcode int, format string, args ...interface{}) *ProtocolError {
	e := &ProtocolError{
		Kind:   kind,
		Opcode: opcode,
		Detail: fmt.Sprintf(format, args...),
	}
	if iface != nil {
		e.Interface = iface.Name
	}
	if desc != nil {
		e.Message = desc.Name
	}
	return e
}

// IsFatal reports whether err is a protocol violation the runtime must answer
// by terminating the connection. Every kind in the taxonomy is fatal, as is
// any ProtocolError.
func IsFatal(err error) bool {
	switch errors.Cause(err) {
	case ErrSignatureMismatch, ErrUnknownOpcode, ErrVersionTooLow, ErrMalformedPayload:
		return true
	}
	var perr *ProtocolError
	return errors.As(err, &perr)
}
