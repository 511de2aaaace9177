package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
)

const (
	// HeaderSize is the size of the sender and size/opcode words.
	HeaderSize = 8
	// MaxMessageSize is the largest message the 16 bit size field can
	// describe.
	MaxMessageSize = 1<<16 - 1
)

// ByteOrder is the order words are written in. Peers share a host, so it is
// the native order.
var ByteOrder binary.ByteOrder = binary.NativeEndian

// Header is the fixed prefix of every message.
type Header struct {
	Sender uint32
	Opcode uint16
	// Size is the length of the whole message, header included.
	Size uint16
}

func (h Header) String() string {
	return fmt.Sprintf("sender=%d opcode=%d size=%d", h.Sender, h.Opcode, h.Size)
}

// BodySize returns the number of argument bytes that follow the header.
func (h Header) BodySize() int {
	return int(h.Size) - HeaderSize
}

// PutHeader writes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) {
	ByteOrder.PutUint32(b[0:4], h.Sender)
	ByteOrder.PutUint32(b[4:8], uint32(h.Size)<<16|uint32(h.Opcode))
}

// ParseHeader reads a header from the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Wrapf(wl.ErrMalformedPayload, "short header: %d bytes", len(b))
	}
	word := ByteOrder.Uint32(b[4:8])
	h := Header{
		Sender: ByteOrder.Uint32(b[0:4]),
		Opcode: uint16(word),
		Size:   uint16(word >> 16),
	}
	if h.Size < HeaderSize || h.Size%4 != 0 {
		return Header{}, errors.Wrapf(wl.ErrMalformedPayload, "bad message size %d", h.Size)
	}
	return h, nil
}
