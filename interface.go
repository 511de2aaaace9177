package wlcommons

import (
	"fmt"

	"github.com/pkg/errors"
)

// Direction selects which message list of an interface is meant.
type Direction uint8

const (
	// Request messages are sent by clients to servers.
	Request Direction = iota
	// Event messages are sent by servers to clients.
	Event
)

func (d Direction) String() string {
	switch d {
	case Request:
		return "request"
	case Event:
		return "event"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Interface describes one protocol object type. Interface values are built
// once, usually as package level variables, and must not be modified after
// that; they are shared by pointer.
type Interface struct {
	Name    string
	Version uint32
	// Requests and Events are indexed by opcode.
	Requests []MessageDesc
	Events   []MessageDesc
}

// MessageDesc describes a single request or event.
type MessageDesc struct {
	Name string
	// Since is the interface version the message was introduced in.
	Since uint32
	// IsDestructor marks messages after which the target object is dead.
	IsDestructor bool
	// Signature lists the argument types in wire order.
	Signature []ArgumentType
	// ChildInterface is the interface of the object created by the message's
	// new_id argument. It is set iff the signature holds exactly one new_id.
	ChildInterface *Interface
}

func (i *Interface) String() string {
	if i == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(v%d)", i.Name, i.Version)
}

// Messages returns the message list for dir.
func (i *Interface) Messages(dir Direction) []MessageDesc {
	if dir == Event {
		return i.Events
	}
	return i.Requests
}

// Message returns the descriptor for opcode in the dir list of i, or an
// ErrUnknownOpcode ProtocolError.
func (i *Interface) Message(dir Direction, opcode uint16) (*MessageDesc, error) {
	msgs := i.Messages(dir)
	if int(opcode) >= len(msgs) {
		return nil, NewProtocolError(ErrUnknownOpcode, i, nil, int(opcode),
			"%s opcode %d out of range (%d %ss)", dir, opcode, len(msgs), dir)
	}
	return &msgs[opcode], nil
}

// Request returns the request descriptor for opcode.
func (i *Interface) Request(opcode uint16) (*MessageDesc, error) {
	return i.Message(Request, opcode)
}

// Event returns the event descriptor for opcode.
func (i *Interface) Event(opcode uint16) (*MessageDesc, error) {
	return i.Message(Event, opcode)
}

// Validate checks the invariants of i and of every interface reachable
// through child interface links.
func (i *Interface) Validate() error {
	return i.validate(map[*Interface]bool{})
}

func (i *Interface) validate(seen map[*Interface]bool) error {
	if seen[i] {
		return nil
	}
	seen[i] = true
	if i.Name == "" {
		return errors.Wrap(ErrInvalidSchema, "interface without a name")
	}
	if i.Version < 1 {
		return errors.Wrapf(ErrInvalidSchema, "%s: version must be at least 1", i.Name)
	}
	for _, dir := range []Direction{Request, Event} {
		var since uint32
		msgs := i.Messages(dir)
		for op := range msgs {
			m := &msgs[op]
			if err := m.Validate(); err != nil {
				return errors.Wrapf(err, "%s %s %d", i.Name, dir, op)
			}
			if m.Since < since {
				return errors.Wrapf(ErrInvalidSchema, "%s.%s: since %d after a message with since %d", i.Name, m.Name, m.Since, since)
			}
			if m.Since > i.Version {
				return errors.Wrapf(ErrInvalidSchema, "%s.%s: since %d above interface version %d", i.Name, m.Name, m.Since, i.Version)
			}
			since = m.Since
			if m.ChildInterface != nil {
				if err := m.ChildInterface.validate(seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// MustValidate panics if any of ifaces is invalid. It is meant to be called
// from the init function of packages declaring static tables.
func MustValidate(ifaces ...*Interface) {
	for _, iface := range ifaces {
		if err := iface.Validate(); err != nil {
			panic(fmt.Sprintf("BUG: invalid interface table: %v", err))
		}
	}
}

// NewIDCount returns how many new_id arguments the signature holds.
func (m *MessageDesc) NewIDCount() int {
	return m.count(TypeNewID)
}

// FdCount returns how many file descriptors the message carries out of band.
func (m *MessageDesc) FdCount() int {
	return m.count(TypeFd)
}

func (m *MessageDesc) count(t ArgumentType) int {
	n := 0
	for _, s := range m.Signature {
		if s == t {
			n++
		}
	}
	return n
}

// CreatesObject reports whether applying the message creates an object.
func (m *MessageDesc) CreatesObject() bool {
	return m.ChildInterface != nil
}

// Validate checks the invariants of a single descriptor.
func (m *MessageDesc) Validate() error {
	if m.Name == "" {
		return errors.Wrap(ErrInvalidSchema, "message without a name")
	}
	if m.Since < 1 {
		return errors.Wrapf(ErrInvalidSchema, "%s: since must be at least 1", m.Name)
	}
	for pos, t := range m.Signature {
		if !t.Valid() {
			return errors.Wrapf(ErrInvalidSchema, "%s: argument %d has unknown type %v", m.Name, pos, t)
		}
	}
	newIDs := m.NewIDCount()
	if m.ChildInterface != nil && newIDs != 1 {
		return errors.Wrapf(ErrInvalidSchema, "%s: child interface %s with %d new_id arguments", m.Name, m.ChildInterface.Name, newIDs)
	}
	if m.ChildInterface == nil && newIDs == 1 {
		return errors.Wrapf(ErrInvalidSchema, "%s: new_id argument without a child interface", m.Name)
	}
	if newIDs > 1 {
		return errors.Wrapf(ErrInvalidSchema, "%s: %d new_id arguments", m.Name, newIDs)
	}
	return nil
}

// CheckArguments returns an ErrSignatureMismatch ProtocolError unless args
// has exactly one argument per signature entry, each of the required type.
func CheckArguments[ID Id](m *MessageDesc, args []Argument[ID]) error {
	if len(args) != len(m.Signature) {
		return NewProtocolError(ErrSignatureMismatch, nil, m, -1,
			"got %d arguments, signature has %d", len(args), len(m.Signature))
	}
	for pos, want := range m.Signature {
		if got := args[pos].Type(); got != want {
			return NewProtocolError(ErrSignatureMismatch, nil, m, -1,
				"argument %d is %v, signature requires %v", pos, got, want)
		}
	}
	return nil
}

// NewIDArgument returns the id carried by the new_id argument of a message
// that creates an object.
func NewIDArgument[ID Id](m *MessageDesc, args []Argument[ID]) (ID, bool) {
	for pos, t := range m.Signature {
		if t == TypeNewID && pos < len(args) {
			return args[pos].NewID()
		}
	}
	var zero ID
	return zero, false
}
