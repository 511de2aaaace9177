// Package wire encodes and decodes protocol messages against their
// MessageDesc signatures.
//
// A message is a stream of 32 bit words in host byte order:
//
//	word 0: id of the object the message is addressed to (the sender)
//	word 1: size of the whole message in bytes << 16 | opcode
//	...:    the arguments, in signature order
//
// int, uint, fixed, object and new_id arguments take one word each. A string
// is a length word counting the terminating NUL, the bytes, the NUL and zero
// padding up to the next word. An array is a length word, the bytes and zero
// padding. File descriptors never appear in the byte stream: they travel as
// ancillary data next to it, one per fd argument, in signature order, and are
// handed to this package as a separate list.
//
// Any decoding failure is a ErrMalformedPayload protocol error. The stream
// cannot be resynchronised after one, so callers should drop the connection.
package wire
