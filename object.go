package wlcommons

import (
	"fmt"

	"github.com/pkg/errors"
)

// ObjectInfo binds a live protocol object to its id, interface and the
// version negotiated for it. The runtime owning the object keeps the record;
// ObjectInfo does not track liveness itself.
type ObjectInfo struct {
	ID        uint32
	Interface *Interface
	Version   uint32
}

// NewObjectInfo returns the record for a new object. The version must be
// between 1 and the interface's version.
func NewObjectInfo(id uint32, iface *Interface, version uint32) (ObjectInfo, error) {
	if iface == nil {
		return ObjectInfo{}, errors.Errorf("object %d: nil interface", id)
	}
	if version < 1 || version > iface.Version {
		return ObjectInfo{}, errors.Errorf("object %d: version %d outside 1..%d of %s", id, version, iface.Version, iface.Name)
	}
	return ObjectInfo{ID: id, Interface: iface, Version: version}, nil
}

// Supports reports whether desc may be sent to or from this object.
func (o ObjectInfo) Supports(desc *MessageDesc) bool {
	return desc.Since <= o.Version
}

// CheckVersion returns an ErrVersionTooLow ProtocolError if desc was added
// after the object's version.
func (o ObjectInfo) CheckVersion(desc *MessageDesc) error {
	if o.Supports(desc) {
		return nil
	}
	return NewProtocolError(ErrVersionTooLow, o.Interface, desc, -1,
		"since %d, %s has version %d", desc.Since, o, o.Version)
}

// Lookup returns the descriptor for opcode after checking both that it is
// in range and that the object's version allows it.
func (o ObjectInfo) Lookup(dir Direction, opcode uint16) (*MessageDesc, error) {
	desc, err := o.Interface.Message(dir, opcode)
	if err != nil {
		return nil, err
	}
	if err := o.CheckVersion(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

func (o ObjectInfo) String() string {
	name := "<nil>"
	if o.Interface != nil {
		name = o.Interface.Name
	}
	return fmt.Sprintf("%s@%d.v%d", name, o.ID, o.Version)
}
