// Package registry tracks the live objects of one protocol connection.
//
// The registry consumes the schema hints of the wlcommons model: messages
// with a child interface create objects, destructor messages kill the object
// they are addressed to, and every message is gated on the version of its
// target. Handle is an identifier that carries liveness, for runtimes that
// want more than plain integer ids in their arguments.
package registry

import (
	"fmt"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
)

var (
	// ErrUnknownObject indicates an id that was never registered, or was
	// removed.
	ErrUnknownObject = errors.New("unknown object")
	// ErrDeadObject indicates an id whose object was destroyed.
	ErrDeadObject = errors.New("object is dead")
	// ErrIDInUse indicates an attempt to register an id that is still held by
	// another object, alive or dead.
	ErrIDInUse = errors.New("object id already in use")
)

type entry struct {
	reg   *Registry
	info  wl.ObjectInfo
	state objectState
}

// Handle identifies an object of a Registry. The zero Handle is the null
// object.
//
// A Handle decoded from a new_id argument is not bound to an object yet; the
// Handle returned by Apply or Insert for the same id is, and the two do not
// compare equal.
type Handle struct {
	id    uint32
	entry *entry
}

// ID returns the protocol id.
func (h Handle) ID() uint32 {
	return h.id
}

// IsNull reports whether h refers to no object.
func (h Handle) IsNull() bool {
	return h.id == 0
}

// Alive reports whether h is bound to an object that has not been
// destroyed.
func (h Handle) Alive() bool {
	if h.entry == nil {
		return false
	}
	h.entry.reg.mu.Lock()
	defer h.entry.reg.mu.Unlock()
	return h.entry.state == objectStateAlive
}

// Info returns the identity record of a bound handle.
func (h Handle) Info() (wl.ObjectInfo, bool) {
	if h.entry == nil {
		return wl.ObjectInfo{}, false
	}
	return h.entry.info, true
}

func (h Handle) String() string {
	if h.entry == nil {
		if h.id == 0 {
			return "null"
		}
		return fmt.Sprintf("new@%d", h.id)
	}
	return h.entry.info.String()
}

// Registry maps protocol ids to objects. It is safe for concurrent use,
// although a connection normally drives it from a single goroutine.
type Registry struct {
	mu      sync.Mutex
	objects map[uint32]*entry

	l log15.Logger
}

// Option is an option function for Registry.
type Option func(r *Registry)

// WithLogger configures the logger to use. By default, nothing is logged.
func WithLogger(l log15.Logger) Option {
	return func(r *Registry) {
		r.l = l
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	r := &Registry{
		objects: make(map[uint32]*entry),
		l:       noopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert registers a new live object, such as the display singleton every
// connection starts with.
func (r *Registry) Insert(info wl.ObjectInfo) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(info)
}

func (r *Registry) insertLocked(info wl.ObjectInfo) (Handle, error) {
	if info.ID == 0 {
		return Handle{}, errors.New("object id 0 is reserved for null")
	}
	if info.Interface == nil || info.Version < 1 || info.Version > info.Interface.Version {
		return Handle{}, errors.Errorf("invalid object record %v", info)
	}
	if old, ok := r.objects[info.ID]; ok {
		return Handle{}, errors.Wrapf(ErrIDInUse, "%d is %s (%s)", info.ID, old.info, old.state)
	}
	e := &entry{reg: r, info: info, state: objectStateAlive}
	r.objects[info.ID] = e
	r.l.Debug("object created", "object", info)
	return Handle{id: info.ID, entry: e}, nil
}

// aliveLocked returns the entry of a live object. A peer naming an unknown
// or dead object is a protocol violation, so the errors are ProtocolErrors.
func (r *Registry) aliveLocked(id uint32) (*entry, error) {
	e, ok := r.objects[id]
	if !ok {
		return nil, wl.NewProtocolError(ErrUnknownObject, nil, nil, -1, "id %d", id)
	}
	if e.state != objectStateAlive {
		return nil, wl.NewProtocolError(ErrDeadObject, e.info.Interface, nil, -1, "%s", e.info)
	}
	return e, nil
}

// Get returns the identity record of a live object.
func (r *Registry) Get(id uint32) (wl.ObjectInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.aliveLocked(id)
	if err != nil {
		return wl.ObjectInfo{}, err
	}
	return e.info, nil
}

// Handle returns a bound handle for a live object.
func (r *Registry) Handle(id uint32) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.aliveLocked(id)
	if err != nil {
		return Handle{}, err
	}
	return Handle{id: id, entry: e}, nil
}

// Resolve finds the descriptor of a message addressed to id, checking that
// the object is alive, that the opcode exists and that the object's version
// allows it.
func (r *Registry) Resolve(id uint32, dir wl.Direction, opcode uint16) (wl.ObjectInfo, *wl.MessageDesc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.aliveLocked(id)
	if err != nil {
		return wl.ObjectInfo{}, nil, err
	}
	desc, err := e.info.Lookup(dir, opcode)
	if err != nil {
		return wl.ObjectInfo{}, nil, err
	}
	return e.info, desc, nil
}

// Apply records the effects of a message addressed to id once its handler
// has succeeded: the object created by a new_id argument is registered
// against the message's child interface, at the version of its parent, and
// the target of a destructor becomes dead. The created object's handle is
// returned, or the null Handle if the message creates nothing.
func (r *Registry) Apply(id uint32, dir wl.Direction, opcode uint16, args []wl.Argument[Handle]) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.aliveLocked(id)
	if err != nil {
		return Handle{}, err
	}
	desc, err := e.info.Lookup(dir, opcode)
	if err != nil {
		return Handle{}, err
	}
	if err := wl.CheckArguments(desc, args); err != nil {
		return Handle{}, err
	}

	var created Handle
	if desc.ChildInterface != nil {
		newID, _ := wl.NewIDArgument(desc, args)
		version := e.info.Version
		if version > desc.ChildInterface.Version {
			version = desc.ChildInterface.Version
		}
		info, err := wl.NewObjectInfo(newID.id, desc.ChildInterface, version)
		if err != nil {
			return Handle{}, err
		}
		if created, err = r.insertLocked(info); err != nil {
			return Handle{}, wl.NewProtocolError(errors.Cause(err), e.info.Interface, desc, int(opcode),
				"new_id %d", newID.id)
		}
	}

	if desc.IsDestructor {
		if err := e.state.transitionTo(objectStateDead); err != nil {
			panic(fmt.Sprintf("BUG: destroying %s: %v", e.info, err))
		}
		r.l.Debug("object destroyed", "object", e.info, "message", desc.Name)
	}
	return created, nil
}

// Remove forgets a dead object so that its id may be reused. Live objects
// must be destroyed first.
func (r *Registry) Remove(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objects[id]
	if !ok {
		return errors.Wrapf(ErrUnknownObject, "id %d", id)
	}
	if e.state != objectStateDead {
		return errors.Errorf("cannot remove live object %s", e.info)
	}
	delete(r.objects, id)
	return nil
}

// Teardown kills every object, as happens when the connection closes.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.objects {
		// dead → dead is valid, so this cannot fail
		_ = e.state.transitionTo(objectStateDead)
	}
	r.l.Info("registry torn down", "objects", len(r.objects))
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.objects {
		if e.state == objectStateAlive {
			n++
		}
	}
	return n
}

// EncodeID implements wire.IDCodec.
func (r *Registry) EncodeID(t wl.ArgumentType, h Handle) (uint32, error) {
	if t == wl.TypeNewID && h.IsNull() {
		return 0, errors.Wrap(wl.ErrMalformedPayload, "new_id 0")
	}
	return h.id, nil
}

// DecodeID implements wire.IDCodec. Object ids must name live objects, or be
// 0 for null; new ids must be free.
func (r *Registry) DecodeID(t wl.ArgumentType, raw uint32) (Handle, error) {
	if raw == 0 {
		if t == wl.TypeNewID {
			return Handle{}, errors.Wrap(wl.ErrMalformedPayload, "new_id 0")
		}
		return Handle{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == wl.TypeNewID {
		if old, ok := r.objects[raw]; ok {
			return Handle{}, errors.Wrapf(ErrIDInUse, "%d is %s (%s)", raw, old.info, old.state)
		}
		return Handle{id: raw}, nil
	}
	e, err := r.aliveLocked(raw)
	if err != nil {
		return Handle{}, err
	}
	return Handle{id: raw, entry: e}, nil
}
