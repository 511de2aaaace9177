package wire

import (
	"strings"

	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
)

// IDCodec maps a runtime's object identifiers to and from their wire ids. t
// is TypeObject or TypeNewID, so implementations can treat ids of objects
// about to be created differently from references to live ones.
type IDCodec[ID wl.Id] interface {
	EncodeID(t wl.ArgumentType, id ID) (uint32, error)
	DecodeID(t wl.ArgumentType, raw uint32) (ID, error)
}

// PlainIDs is the IDCodec for plain ObjectID identifiers.
type PlainIDs struct{}

// EncodeID implements IDCodec.
func (PlainIDs) EncodeID(t wl.ArgumentType, id wl.ObjectID) (uint32, error) {
	if t == wl.TypeNewID && id == 0 {
		return 0, errors.Wrap(wl.ErrMalformedPayload, "new_id 0")
	}
	return uint32(id), nil
}

// DecodeID implements IDCodec.
func (PlainIDs) DecodeID(t wl.ArgumentType, raw uint32) (wl.ObjectID, error) {
	if t == wl.TypeNewID && raw == 0 {
		return 0, errors.Wrap(wl.ErrMalformedPayload, "new_id 0")
	}
	return wl.ObjectID(raw), nil
}

// AppendMessage appends the encoding of a message from sender to buf and the
// descriptors of its fd arguments to fds. The arguments must match the
// signature of desc. On error buf and fds are returned unchanged.
func AppendMessage[ID wl.Id](buf []byte, fds []int, ids IDCodec[ID], sender uint32, opcode uint16, desc *wl.MessageDesc, args []wl.Argument[ID]) ([]byte, []int, error) {
	if err := wl.CheckArguments(desc, args); err != nil {
		return buf, fds, err
	}
	start, nfds := len(buf), len(fds)
	fail := func(err error, pos int) ([]byte, []int, error) {
		return buf[:start], fds[:nfds], argumentError(err, desc, int(opcode), pos)
	}

	buf = append(buf, make([]byte, HeaderSize)...)
	for pos, arg := range args {
		switch arg.Type() {
		case wl.TypeInt:
			v, _ := arg.Int()
			buf = appendWord(buf, uint32(v))
		case wl.TypeUint:
			v, _ := arg.Uint()
			buf = appendWord(buf, v)
		case wl.TypeFixed:
			v, _ := arg.Fixed()
			buf = appendWord(buf, uint32(v))
		case wl.TypeStr:
			s, _ := arg.Str()
			var err error
			if buf, err = appendString(buf, s); err != nil {
				return fail(err, pos)
			}
		case wl.TypeObject, wl.TypeNewID:
			id, _ := arg.Object()
			if arg.Type() == wl.TypeNewID {
				id, _ = arg.NewID()
			}
			raw, err := ids.EncodeID(arg.Type(), id)
			if err != nil {
				return fail(err, pos)
			}
			buf = appendWord(buf, raw)
		case wl.TypeArray:
			b, _ := arg.Array()
			buf = appendArray(buf, b)
		case wl.TypeFd:
			fd, _ := arg.Fd()
			fds = append(fds, fd)
		}
	}

	size := len(buf) - start
	if size > MaxMessageSize {
		return buf[:start], fds[:nfds], wl.NewProtocolError(wl.ErrMalformedPayload, nil, desc, int(opcode),
			"message of %d bytes exceeds %d", size, MaxMessageSize)
	}
	PutHeader(buf[start:], Header{Sender: sender, Opcode: opcode, Size: uint16(size)})
	return buf, fds, nil
}

// DecodeMessage decodes the body of a message, the bytes following its
// header, against desc. fd arguments are taken in order from the front of
// fds; the number consumed is returned. Exactly len(desc.Signature)
// arguments are returned on success.
func DecodeMessage[ID wl.Id](body []byte, fds []int, ids IDCodec[ID], desc *wl.MessageDesc) ([]wl.Argument[ID], int, error) {
	r := &reader{data: body}
	args := make([]wl.Argument[ID], 0, len(desc.Signature))
	nfds := 0
	fail := func(err error, pos int) ([]wl.Argument[ID], int, error) {
		return nil, nfds, argumentError(err, desc, -1, pos)
	}

	for pos, t := range desc.Signature {
		switch t {
		case wl.TypeInt, wl.TypeUint, wl.TypeFixed:
			v, err := r.word()
			if err != nil {
				return fail(err, pos)
			}
			switch t {
			case wl.TypeInt:
				args = append(args, wl.IntArg[ID](int32(v)))
			case wl.TypeUint:
				args = append(args, wl.UintArg[ID](v))
			default:
				args = append(args, wl.FixedArg[ID](int32(v)))
			}
		case wl.TypeStr:
			s, err := r.str()
			if err != nil {
				return fail(err, pos)
			}
			args = append(args, wl.StrArg[ID](s))
		case wl.TypeObject, wl.TypeNewID:
			raw, err := r.word()
			if err != nil {
				return fail(err, pos)
			}
			id, err := ids.DecodeID(t, raw)
			if err != nil {
				return fail(err, pos)
			}
			if t == wl.TypeObject {
				args = append(args, wl.ObjectArg(id))
			} else {
				args = append(args, wl.NewIDArg(id))
			}
		case wl.TypeArray:
			b, err := r.blob()
			if err != nil {
				return fail(err, pos)
			}
			args = append(args, wl.ArrayArg[ID](b))
		case wl.TypeFd:
			if nfds >= len(fds) {
				return fail(errors.Wrap(wl.ErrMalformedPayload, "missing file descriptor"), pos)
			}
			args = append(args, wl.FdArg[ID](fds[nfds]))
			nfds++
		default:
			return fail(errors.Wrapf(wl.ErrSignatureMismatch, "unknown argument type %v", t), pos)
		}
	}
	if r.remaining() != 0 {
		return nil, nfds, wl.NewProtocolError(wl.ErrMalformedPayload, nil, desc, -1,
			"%d trailing bytes after the last argument", r.remaining())
	}
	return args, nfds, nil
}

// argumentError turns the failure to code the argument at pos into a
// ProtocolError of the same kind. The detail keeps what err adds to its
// kind, so the kind is not printed twice.
func argumentError(err error, desc *wl.MessageDesc, opcode, pos int) error {
	kind := errors.Cause(err)
	var detail string
	var perr *wl.ProtocolError
	switch {
	case errors.As(err, &perr):
		detail = perr.Detail
	case err != kind:
		detail = strings.TrimSuffix(err.Error(), ": "+kind.Error())
	}
	if detail == "" {
		return wl.NewProtocolError(kind, nil, desc, opcode, "argument %d", pos)
	}
	return wl.NewProtocolError(kind, nil, desc, opcode, "argument %d: %s", pos, detail)
}

// SplitFrame splits the first complete message off data. ok is false when
// data does not hold a complete message yet.
func SplitFrame(data []byte) (h Header, body, rest []byte, ok bool, err error) {
	if len(data) < HeaderSize {
		return Header{}, nil, data, false, nil
	}
	h, err = ParseHeader(data)
	if err != nil {
		return Header{}, nil, data, false, err
	}
	if len(data) < int(h.Size) {
		return h, nil, data, false, nil
	}
	return h, data[HeaderSize:h.Size], data[h.Size:], true, nil
}
