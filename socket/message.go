package socket

import (
	"context"

	"github.com/pkg/errors"

	wl "github.com/ngrok/wlcommons"
	"github.com/ngrok/wlcommons/wire"
)

// Message is a decoded message.
type Message[ID wl.Id] struct {
	Header wire.Header
	Desc   *wl.MessageDesc
	Args   []wl.Argument[ID]
}

// LookupFunc returns the descriptor for a received header, typically by
// resolving the sender in an object registry. Its errors are returned by
// Receive unchanged.
type LookupFunc func(h wire.Header) (*wl.MessageDesc, error)

// Send encodes a message and writes it with its descriptors.
func Send[ID wl.Id](c *Conn, ids wire.IDCodec[ID], sender uint32, opcode uint16, desc *wl.MessageDesc, args []wl.Argument[ID]) error {
	buf, fds, err := wire.AppendMessage(nil, nil, ids, sender, opcode, desc, args)
	if err != nil {
		return err
	}
	return c.WriteMessage(buf, fds)
}

// Receive reads and decodes the next message. The descriptors of its fd
// arguments are taken from the connection's queue and belong to the caller,
// valid until it is done handling the message. If the message can't be
// decoded, as many queued descriptors as its signature has fd arguments are
// closed.
func Receive[ID wl.Id](ctx context.Context, c *Conn, ids wire.IDCodec[ID], lookup LookupFunc) (Message[ID], error) {
	h, body, err := c.ReadMessage(ctx)
	if err != nil {
		return Message[ID]{}, err
	}
	desc, err := lookup(h)
	if err != nil {
		return Message[ID]{}, err
	}
	args, used, err := wire.DecodeMessage(body, c.PendingFds(), ids, desc)
	if err != nil {
		// the message's fds past the failing argument must not be taken
		// by the next message
		CloseFds(c.TakeFds(desc.FdCount()))
		c.l.Error("dropping undecodable message", "header", h, "message", desc.Name, "err", err)
		return Message[ID]{}, errors.Wrapf(err, "object %d", h.Sender)
	}
	c.TakeFds(used)
	return Message[ID]{Header: h, Desc: desc, Args: args}, nil
}
