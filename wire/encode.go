package wire

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
)

// Padded rounds n up to a multiple of 4.
func Padded(n int) int {
	return (n + 3) &^ 3
}

func appendWord(buf []byte, v uint32) []byte {
	var w [4]byte
	ByteOrder.PutUint32(w[:], v)
	return append(buf, w[:]...)
}

// appendBlob appends a length word, data and zero padding.
func appendBlob(buf []byte, length uint32, data []byte, terminate bool) []byte {
	buf = appendWord(buf, length)
	buf = append(buf, data...)
	n := len(data)
	if terminate {
		buf = append(buf, 0)
		n++
	}
	for i := n; i < Padded(n); i++ {
		buf = append(buf, 0)
	}
	return buf
}

func appendString(buf []byte, s string) ([]byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return buf, errors.Wrap(wl.ErrMalformedPayload, "string contains a NUL byte")
	}
	if !utf8.ValidString(s) {
		return buf, errors.Wrap(wl.ErrMalformedPayload, "string is not valid UTF-8")
	}
	return appendBlob(buf, uint32(len(s)+1), []byte(s), true), nil
}

func appendArray(buf []byte, b []byte) []byte {
	return appendBlob(buf, uint32(len(b)), b, false)
}

// reader walks the argument words of one message body.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) word() (uint32, error) {
	if r.remaining() < 4 {
		return 0, errors.Wrapf(wl.ErrMalformedPayload, "truncated at byte %d", r.off)
	}
	v := ByteOrder.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// blob reads a length word and the padded bytes it describes.
func (r *reader) blob() ([]byte, error) {
	length, err := r.word()
	if err != nil {
		return nil, err
	}
	if uint64(length) > uint64(r.remaining()) || Padded(int(length)) > r.remaining() {
		return nil, errors.Wrapf(wl.ErrMalformedPayload, "length %d exceeds the %d bytes left", length, r.remaining())
	}
	data := r.data[r.off : r.off+int(length)]
	r.off += Padded(int(length))
	return data, nil
}

func (r *reader) str() (string, error) {
	data, err := r.blob()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		// a null string
		return "", nil
	}
	if data[len(data)-1] != 0 {
		return "", errors.Wrap(wl.ErrMalformedPayload, "string is missing its terminator")
	}
	data = data[:len(data)-1]
	if bytes.IndexByte(data, 0) >= 0 {
		return "", errors.Wrap(wl.ErrMalformedPayload, "string contains a NUL byte")
	}
	if !utf8.Valid(data) {
		return "", errors.Wrap(wl.ErrMalformedPayload, "string is not valid UTF-8")
	}
	return string(data), nil
}
