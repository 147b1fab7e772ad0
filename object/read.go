package object

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

// readPayload describes one sub-op of a read run: fill buf starting at
// offset, crediting the number of bytes actually returned into bytesRead.
type readPayload struct {
	name      string
	buf       []byte
	offset    uint64
	bytesRead *uint64
}

// Read schedules a read of len(buf) bytes starting at offset into buf.
// bytesRead is credited once the run completes; a short read (the object is
// smaller than offset+len(buf)) is not an error, it simply credits fewer
// bytes (spec §4.9). A zero-length buf is rejected with an error and
// nothing is enqueued.
func (h *Handle) Read(b *batch.Batch, buf []byte, offset uint64, bytesRead *uint64) error {
	if len(buf) == 0 {
		return errors.Errorf("object: zero-length read of %q", h.name)
	}
	return b.Add(&batch.Op{
		Kind:    batch.ObjectRead,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &readPayload{name: h.name, buf: buf, offset: offset, bytesRead: bytesRead},
		Exec:    h.client.execRead,
	})
}

func (c *Client) execRead(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		// Each sub-op targets its own name and buffer, and the backend
		// serializes access per object internally, so the run fans out
		// across the host instead of reading one name at a time.
		g, _ := errgroup.WithContext(ctx)
		for _, op := range ops {
			op := op
			g.Go(func() error {
				p := op.Payload.(*readPayload)
				oh, err := c.localStore.Open(op.Key.Namespace, p.name)
				if err != nil {
					return errors.Wrapf(err, "object: open %q for read", p.name)
				}
				n, err := c.localStore.Read(oh, p.buf, p.offset)
				if err != nil {
					return errors.Wrapf(err, "object: read %q", p.name)
				}
				if p.bytesRead != nil {
					*p.bytesRead = uint64(n)
				}
				return nil
			})
		}
		return g.Wait()
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.ObjectRead, ns, 40*len(ops))
	for _, op := range ops {
		p := op.Payload.(*readPayload)
		msg.AppendCString(p.name)
		msg.Append8(uint64(len(p.buf)))
		msg.Append8(p.offset)
		msg.AddOperation(16)
	}
	msg.ForceReply() // a read without a reply has nothing to hand back to the caller

	conn, err := c.pool.Object.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "object: acquire connection")
	}
	broken := false
	defer func() { c.pool.Object.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "object: send read")
	}

	// The server may answer a run across more than one reply frame if it
	// cannot satisfy every sub-op from a single pass; this reference server
	// never needs to, but the loop below tolerates it per spec §4.9: it
	// keeps pulling reply frames until every sub-op has been accounted for.
	var failed []string
	remaining := ops
	for len(remaining) > 0 {
		reply, err := wire.Receive(conn)
		if err != nil {
			broken = true
			return errors.Wrap(err, "object: receive read reply")
		}
		answered := int(reply.Count())
		if answered > len(remaining) {
			answered = len(remaining)
		}
		for i := 0; i < answered; i++ {
			p := remaining[i].Payload.(*readPayload)
			n := reply.Get8()
			if n == wire.BulkErrorFlag {
				failed = append(failed, p.name)
				continue
			}
			if n > 0 {
				if _, err := readFullFrom(conn, p.buf[:n]); err != nil {
					broken = true
					return errors.Wrapf(err, "object: read bulk for %q", p.name)
				}
			}
			if p.bytesRead != nil {
				*p.bytesRead += n
			}
		}
		remaining = remaining[answered:]
	}
	if len(failed) > 0 {
		return errors.Errorf("object: read failed for %v", failed)
	}
	return nil
}
