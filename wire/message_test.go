package wire

import (
	"testing"
	"testing/quick"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	wl "github.com/ngrok/wlcommons"
	"github.com/ngrok/wlcommons/core"
)

type arg = wl.Argument[wl.ObjectID]

var testSurface = &wl.Interface{
	Name:    "test_surface",
	Version: 3,
	Requests: []wl.MessageDesc{
		{Name: "destroy", Since: 1, IsDestructor: true},
		{Name: "attach", Since: 1, Signature: []wl.ArgumentType{wl.TypeObject, wl.TypeInt, wl.TypeInt}},
		{Name: "set_scale", Since: 2, Signature: []wl.ArgumentType{wl.TypeFixed}},
		{Name: "set_data", Since: 3, Signature: []wl.ArgumentType{wl.TypeStr, wl.TypeArray, wl.TypeFd, wl.TypeUint, wl.TypeFd}},
	},
}

func words(vals ...uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = appendWord(b, v)
	}
	return b
}

func roundtrip(t *testing.T, desc *wl.MessageDesc, args []arg) ([]arg, []byte) {
	t.Helper()
	buf, fds, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 7, 2, desc, args)
	require.NoError(t, err)
	require.Equal(t, desc.FdCount(), len(fds))
	require.Zero(t, len(buf)%4)

	h, body, rest, ok, err := SplitFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, rest)
	require.Equal(t, Header{Sender: 7, Opcode: 2, Size: uint16(len(buf))}, h)

	decoded, used, err := DecodeMessage[wl.ObjectID](body, fds, PlainIDs{}, desc)
	require.NoError(t, err)
	require.Equal(t, len(fds), used)
	require.Len(t, decoded, len(desc.Signature))
	for i := range args {
		require.True(t, args[i].Equal(decoded[i]), "argument %d: %v != %v", i, args[i], decoded[i])
	}
	return decoded, buf
}

func TestRoundtripEveryType(t *testing.T) {
	cases := []struct {
		typ wl.ArgumentType
		arg arg
	}{
		{wl.TypeInt, wl.IntArg[wl.ObjectID](-42)},
		{wl.TypeUint, wl.UintArg[wl.ObjectID](0xdeadbeef)},
		{wl.TypeFixed, wl.FixedArg[wl.ObjectID](-1)},
		{wl.TypeStr, wl.StrArg[wl.ObjectID]("héllo")},
		{wl.TypeStr, wl.StrArg[wl.ObjectID]("")},
		{wl.TypeObject, wl.ObjectArg[wl.ObjectID](12)},
		{wl.TypeObject, wl.ObjectArg[wl.ObjectID](0)},
		{wl.TypeNewID, wl.NewIDArg[wl.ObjectID](0xff000001)},
		{wl.TypeArray, wl.ArrayArg[wl.ObjectID]([]byte{1, 2, 3, 4, 5})},
		{wl.TypeArray, wl.ArrayArg[wl.ObjectID](nil)},
		{wl.TypeFd, wl.FdArg[wl.ObjectID](9)},
	}
	for _, tc := range cases {
		t.Run(tc.arg.String(), func(t *testing.T) {
			desc := &wl.MessageDesc{Name: "m", Since: 1, Signature: []wl.ArgumentType{tc.typ}}
			if tc.typ == wl.TypeNewID {
				desc.ChildInterface = testSurface
			}
			roundtrip(t, desc, []arg{tc.arg})
		})
	}
}

func TestQuickcheckFixedRoundtrip(t *testing.T) {
	desc := &testSurface.Requests[2]
	if err := quick.Check(func(v int32) bool {
		buf, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 2, desc, []arg{wl.FixedArg[wl.ObjectID](v)})
		if err != nil {
			t.Fatalf("encode error: %v", err)
			return false
		}
		decoded, _, err := DecodeMessage[wl.ObjectID](buf[HeaderSize:], nil, PlainIDs{}, desc)
		if err != nil {
			t.Fatalf("decode error: %v", err)
			return false
		}
		got, ok := decoded[0].Fixed()
		return ok && got == v
	}, &quick.Config{}); err != nil {
		t.Error(err)
	}
}

func TestQuickcheckStringRoundtrip(t *testing.T) {
	desc := &wl.MessageDesc{Name: "m", Since: 1, Signature: []wl.ArgumentType{wl.TypeStr, wl.TypeUint}}
	if err := quick.Check(func(s string, u uint32) bool {
		args := []arg{wl.StrArg[wl.ObjectID](s), wl.UintArg[wl.ObjectID](u)}
		buf, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 0, desc, args)
		if err != nil {
			// quick generates valid UTF-8, but may include NUL runes
			return errors.Cause(err) == wl.ErrMalformedPayload
		}
		decoded, _, err := DecodeMessage[wl.ObjectID](buf[HeaderSize:], nil, PlainIDs{}, desc)
		return err == nil && args[0].Equal(decoded[0]) && args[1].Equal(decoded[1])
	}, &quick.Config{}); err != nil {
		t.Error(err)
	}
}

func TestMixedSignature(t *testing.T) {
	desc := &testSurface.Requests[3]
	args := []arg{
		wl.StrArg[wl.ObjectID]("cursor"),
		wl.ArrayArg[wl.ObjectID]([]byte{0xa, 0xb}),
		wl.FdArg[wl.ObjectID](5),
		wl.UintArg[wl.ObjectID](77),
		wl.FdArg[wl.ObjectID](6),
	}
	decoded, buf := roundtrip(t, desc, args)
	// header, "cursor\0" padded to 8, array of 2 padded to 4, one uint
	require.Equal(t, HeaderSize+4+8+4+4+4, len(buf))
	fd, _ := decoded[4].Fd()
	require.Equal(t, 6, fd)
}

func TestDecodeDisplayError(t *testing.T) {
	desc, err := core.Display.Event(core.DisplayError)
	require.NoError(t, err)

	body := words(3, 5, 5)
	body = append(body, 'b', 'o', 'o', 'm', 0, 0, 0, 0)
	args, used, err := DecodeMessage[wl.ObjectID](body, nil, PlainIDs{}, desc)
	require.NoError(t, err)
	require.Zero(t, used)
	want := []arg{
		wl.ObjectArg[wl.ObjectID](3),
		wl.UintArg[wl.ObjectID](5),
		wl.StrArg[wl.ObjectID]("boom"),
	}
	require.Len(t, args, len(want))
	for i := range want {
		require.True(t, want[i].Equal(args[i]), "argument %d: %v != %v", i, want[i], args[i])
	}

	buf, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, core.DisplayID, core.DisplayError, desc, want)
	require.NoError(t, err)
	require.Equal(t, body, buf[HeaderSize:])
}

func TestDecodeSyncCreatesCallback(t *testing.T) {
	desc, err := core.Display.Request(core.DisplaySync)
	require.NoError(t, err)
	require.Equal(t, core.Callback, desc.ChildInterface)

	args, _, err := DecodeMessage[wl.ObjectID](words(4), nil, PlainIDs{}, desc)
	require.NoError(t, err)
	require.Len(t, args, 1)
	id, ok := args[0].NewID()
	require.True(t, ok)
	require.Equal(t, wl.ObjectID(4), id)
}

func TestEncodeSignatureMismatch(t *testing.T) {
	desc := &testSurface.Requests[1]
	_, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 1, desc, []arg{
		wl.ObjectArg[wl.ObjectID](1),
		wl.UintArg[wl.ObjectID](1),
		wl.IntArg[wl.ObjectID](1),
	})
	require.Equal(t, wl.ErrSignatureMismatch, errors.Cause(err))
	require.True(t, wl.IsFatal(err))

	_, _, err = AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 1, desc, nil)
	require.Equal(t, wl.ErrSignatureMismatch, errors.Cause(err))
}

func TestEncodeFailureLeavesBuffers(t *testing.T) {
	desc := &wl.MessageDesc{Name: "m", Since: 1, Signature: []wl.ArgumentType{wl.TypeFd, wl.TypeStr}}
	buf := []byte{1, 2, 3, 4}
	fds := []int{3}
	gotBuf, gotFds, err := AppendMessage[wl.ObjectID](buf, fds, PlainIDs{}, 1, 0, desc, []arg{
		wl.FdArg[wl.ObjectID](8),
		wl.StrArg[wl.ObjectID]("a\x00b"),
	})
	require.Equal(t, wl.ErrMalformedPayload, errors.Cause(err))
	require.Equal(t, buf, gotBuf)
	require.Equal(t, fds, gotFds)
}

func TestEncodeTooLarge(t *testing.T) {
	desc := &wl.MessageDesc{Name: "m", Since: 1, Signature: []wl.ArgumentType{wl.TypeArray}}
	_, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 0, desc, []arg{
		wl.ArrayArg[wl.ObjectID](make([]byte, MaxMessageSize)),
	})
	require.Equal(t, wl.ErrMalformedPayload, errors.Cause(err))
}

func TestDecodeMalformed(t *testing.T) {
	str := &wl.MessageDesc{Name: "s", Since: 1, Signature: []wl.ArgumentType{wl.TypeStr}}
	arr := &wl.MessageDesc{Name: "a", Since: 1, Signature: []wl.ArgumentType{wl.TypeArray}}
	fd := &wl.MessageDesc{Name: "f", Since: 1, Signature: []wl.ArgumentType{wl.TypeFd}}
	newID := &wl.MessageDesc{Name: "n", Since: 1, Signature: []wl.ArgumentType{wl.TypeNewID}, ChildInterface: testSurface}
	u := &wl.MessageDesc{Name: "u", Since: 1, Signature: []wl.ArgumentType{wl.TypeUint}}

	cases := []struct {
		name string
		desc *wl.MessageDesc
		body []byte
	}{
		{"truncated word", u, []byte{1, 2}},
		{"trailing bytes", u, words(1, 2)},
		{"string length past end", str, words(9, 0)},
		{"string without terminator", str, append(words(4), 'a', 'b', 'c', 'd')},
		{"string with embedded nul", str, append(words(4), 'a', 0, 'c', 0)},
		{"string invalid utf8", str, append(words(2), 0xff, 0, 0, 0)},
		{"string missing padding", str, append(words(2), 'a', 0)},
		{"array length past end", arr, words(16)},
		{"missing fd", fd, nil},
		{"new_id zero", newID, words(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeMessage[wl.ObjectID](tc.body, nil, PlainIDs{}, tc.desc)
			require.Error(t, err)
			require.Equal(t, wl.ErrMalformedPayload, errors.Cause(err))
			require.True(t, wl.IsFatal(err))
		})
	}
}

func TestDecodeErrorText(t *testing.T) {
	u := &wl.MessageDesc{Name: "m", Since: 1, Signature: []wl.ArgumentType{wl.TypeUint}}
	_, _, err := DecodeMessage[wl.ObjectID](nil, nil, PlainIDs{}, u)
	require.Equal(t, "m: malformed message payload: argument 0: truncated at byte 0", err.Error())

	desc := &wl.MessageDesc{Name: "n", Since: 1, Signature: []wl.ArgumentType{wl.TypeNewID}, ChildInterface: testSurface}
	_, _, err = AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 1, 3, desc, []arg{wl.NewIDArg[wl.ObjectID](0)})
	require.Equal(t, "n: malformed message payload: argument 0: new_id 0", err.Error())
}

func TestNullStringDecodesEmpty(t *testing.T) {
	desc := &wl.MessageDesc{Name: "s", Since: 1, Signature: []wl.ArgumentType{wl.TypeStr}}
	args, _, err := DecodeMessage[wl.ObjectID](words(0), nil, PlainIDs{}, desc)
	require.NoError(t, err)
	s, ok := args[0].Str()
	require.True(t, ok)
	require.Equal(t, "", s)
}

func TestSplitFrame(t *testing.T) {
	desc := &testSurface.Requests[1]
	args := []arg{wl.ObjectArg[wl.ObjectID](2), wl.IntArg[wl.ObjectID](3), wl.IntArg[wl.ObjectID](4)}
	buf, _, err := AppendMessage[wl.ObjectID](nil, nil, PlainIDs{}, 5, 1, desc, args)
	require.NoError(t, err)
	buf, _, err = AppendMessage[wl.ObjectID](buf, nil, PlainIDs{}, 6, 1, desc, args)
	require.NoError(t, err)

	_, _, _, ok, err := SplitFrame(buf[:10])
	require.NoError(t, err)
	require.False(t, ok)

	h, body, rest, ok, err := SplitFrame(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(5), h.Sender)
	require.Len(t, body, 12)

	h, _, rest, ok, err = SplitFrame(rest)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(6), h.Sender)
	require.Empty(t, rest)

	_, _, _, _, err = SplitFrame(words(1, 3<<16))
	require.Equal(t, wl.ErrMalformedPayload, errors.Cause(err))
}
