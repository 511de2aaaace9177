package wlcommons

import (
	"bytes"
	"fmt"
	"strconv"
)

// ArgumentType is the wire kind of one message argument.
type ArgumentType uint8

const (
	// TypeInt is a signed 32 bit integer.
	TypeInt ArgumentType = iota
	// TypeUint is an unsigned 32 bit integer.
	TypeUint
	// TypeFixed is a signed 24.8 fixed point number.
	TypeFixed
	// TypeStr is a NUL terminated string.
	TypeStr
	// TypeObject is the id of an existing object.
	TypeObject
	// TypeNewID is the id of an object created by the message carrying it.
	TypeNewID
	// TypeArray is an opaque byte array.
	TypeArray
	// TypeFd is a file descriptor, passed out of band.
	TypeFd

	numArgumentTypes
)

var argumentTypeNames = [numArgumentTypes]string{
	TypeInt:    "int",
	TypeUint:   "uint",
	TypeFixed:  "fixed",
	TypeStr:    "string",
	TypeObject: "object",
	TypeNewID:  "new_id",
	TypeArray:  "array",
	TypeFd:     "fd",
}

// Valid reports whether t is one of the eight known argument types.
func (t ArgumentType) Valid() bool {
	return t < numArgumentTypes
}

func (t ArgumentType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ArgumentType(%d)", uint8(t))
	}
	return argumentTypeNames[t]
}

// ParseArgumentType is the inverse of ArgumentType.String.
func ParseArgumentType(s string) (ArgumentType, bool) {
	for i, name := range argumentTypeNames {
		if name == s {
			return ArgumentType(i), true
		}
	}
	return 0, false
}

// Id is the capability set an object identifier must provide to be carried
// in an Argument: it is copied by value, compared with ==, and printed.
type Id interface {
	comparable
	fmt.Stringer
}

// ObjectID is the plain protocol id, as used by clients that do not track
// any per-object state in their identifiers.
type ObjectID uint32

func (id ObjectID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Argument is one decoded, or about to be encoded, message argument.
//
// Exactly one payload is meaningful, selected by Type. The string and array
// payloads are kept behind pointers since they are rare in practice and would
// otherwise dominate the size of every argument.
type Argument[ID Id] struct {
	typ ArgumentType
	// word holds Int, Uint and Fixed payloads as their 32 bit pattern.
	word uint32
	fd   int
	id   ID
	str  *string
	arr  *[]byte
}

// IntArg returns an int argument.
func IntArg[ID Id](v int32) Argument[ID] {
	return Argument[ID]{typ: TypeInt, word: uint32(v)}
}

// UintArg returns a uint argument.
func UintArg[ID Id](v uint32) Argument[ID] {
	return Argument[ID]{typ: TypeUint, word: v}
}

// FixedArg returns a fixed argument holding the raw 24.8 value v. Conversion
// from floating point belongs to the codec, see wire.FixedFromFloat64.
func FixedArg[ID Id](v int32) Argument[ID] {
	return Argument[ID]{typ: TypeFixed, word: uint32(v)}
}

// StrArg returns a string argument.
func StrArg[ID Id](s string) Argument[ID] {
	return Argument[ID]{typ: TypeStr, str: &s}
}

// ObjectArg returns a reference to an existing object.
func ObjectArg[ID Id](id ID) Argument[ID] {
	return Argument[ID]{typ: TypeObject, id: id}
}

// NewIDArg returns the id of an object created by the message.
func NewIDArg[ID Id](id ID) Argument[ID] {
	return Argument[ID]{typ: TypeNewID, id: id}
}

// ArrayArg returns an array argument holding a copy of b.
func ArrayArg[ID Id](b []byte) Argument[ID] {
	buf := make([]byte, len(b))
	copy(buf, b)
	return Argument[ID]{typ: TypeArray, arr: &buf}
}

// FdArg returns a file descriptor argument. The argument does not own fd:
// whoever moves it across the transport is responsible for duplicating or
// closing it.
func FdArg[ID Id](fd int) Argument[ID] {
	return Argument[ID]{typ: TypeFd, fd: fd}
}

// Type returns the variant of a.
func (a Argument[ID]) Type() ArgumentType {
	return a.typ
}

// Int returns the payload of an int argument.
func (a Argument[ID]) Int() (int32, bool) {
	return int32(a.word), a.typ == TypeInt
}

// Uint returns the payload of a uint argument.
func (a Argument[ID]) Uint() (uint32, bool) {
	return a.word, a.typ == TypeUint
}

// Fixed returns the raw 24.8 payload of a fixed argument.
func (a Argument[ID]) Fixed() (int32, bool) {
	return int32(a.word), a.typ == TypeFixed
}

// Str returns the payload of a string argument.
func (a Argument[ID]) Str() (string, bool) {
	if a.typ != TypeStr || a.str == nil {
		return "", false
	}
	return *a.str, true
}

// Object returns the id referenced by an object argument.
func (a Argument[ID]) Object() (ID, bool) {
	if a.typ != TypeObject {
		var zero ID
		return zero, false
	}
	return a.id, true
}

// NewID returns the id carried by a new_id argument.
func (a Argument[ID]) NewID() (ID, bool) {
	if a.typ != TypeNewID {
		var zero ID
		return zero, false
	}
	return a.id, true
}

// Array returns the payload of an array argument. The slice is not copied.
func (a Argument[ID]) Array() ([]byte, bool) {
	if a.typ != TypeArray || a.arr == nil {
		return nil, false
	}
	return *a.arr, true
}

// Fd returns the descriptor carried by an fd argument.
func (a Argument[ID]) Fd() (int, bool) {
	return a.fd, a.typ == TypeFd
}

// Equal reports whether a and b are the same variant with the same payload.
func (a Argument[ID]) Equal(b Argument[ID]) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeInt, TypeUint, TypeFixed:
		return a.word == b.word
	case TypeStr:
		as, _ := a.Str()
		bs, _ := b.Str()
		return as == bs
	case TypeObject, TypeNewID:
		return a.id == b.id
	case TypeArray:
		aa, _ := a.Array()
		ba, _ := b.Array()
		return bytes.Equal(aa, ba)
	case TypeFd:
		return a.fd == b.fd
	}
	return true
}

func (a Argument[ID]) String() string {
	switch a.typ {
	case TypeInt:
		return fmt.Sprintf("Int(%d)", int32(a.word))
	case TypeUint:
		return fmt.Sprintf("Uint(%d)", a.word)
	case TypeFixed:
		return fmt.Sprintf("Fixed(%d)", int32(a.word))
	case TypeStr:
		s, _ := a.Str()
		return fmt.Sprintf("Str(%q)", s)
	case TypeObject:
		return fmt.Sprintf("Object(%v)", a.id)
	case TypeNewID:
		return fmt.Sprintf("NewID(%v)", a.id)
	case TypeArray:
		b, _ := a.Array()
		return fmt.Sprintf("Array(%x)", b)
	case TypeFd:
		return fmt.Sprintf("Fd(%d)", a.fd)
	}
	return fmt.Sprintf("Argument(%v)", a.typ)
}
