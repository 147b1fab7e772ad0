package object

import (
	"context"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

// writePayload describes one sub-op of a write run.
type writePayload struct {
	name         string
	buf          []byte
	offset       uint64
	bytesWritten *uint64
}

// Write schedules a write of buf at offset. At semantics.SafetyNone,
// bytesWritten is credited with len(buf) immediately on send — the caller
// asked not to wait for any acknowledgement, so "written" means "handed to
// the transport" (spec §4.9). At network or storage safety, bytesWritten is
// credited from the server's reply once the run completes. A zero-length
// buf is rejected with an error and nothing is enqueued.
func (h *Handle) Write(b *batch.Batch, buf []byte, offset uint64, bytesWritten *uint64) error {
	if len(buf) == 0 {
		return errors.Errorf("object: zero-length write of %q", h.name)
	}
	return b.Add(&batch.Op{
		Kind:    batch.ObjectWrite,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &writePayload{name: h.name, buf: buf, offset: offset, bytesWritten: bytesWritten},
		Exec:    h.client.execWrite,
	})
}

func (c *Client) execWrite(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		for _, op := range ops {
			p := op.Payload.(*writePayload)
			oh, err := c.localStore.Open(op.Key.Namespace, p.name)
			if err != nil {
				return errors.Wrapf(err, "object: open %q for write", p.name)
			}
			n, err := c.localStore.Write(oh, p.buf, p.offset)
			if err != nil {
				return errors.Wrapf(err, "object: write %q", p.name)
			}
			if p.bytesWritten != nil {
				*p.bytesWritten = uint64(n)
			}
		}
		return nil
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.ObjectWrite, ns, 40*len(ops))
	for _, op := range ops {
		p := op.Payload.(*writePayload)
		msg.AppendCString(p.name)
		msg.Append8(uint64(len(p.buf)))
		msg.Append8(p.offset)
		msg.AddOperation(16)
		msg.AddSend(p.buf)
	}
	msg.SetSafety(sem)

	conn, err := c.pool.Object.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "object: acquire connection")
	}
	broken := false
	defer func() { c.pool.Object.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "object: send write")
	}

	if sem.Safety() == semantics.SafetyNone {
		for _, op := range ops {
			p := op.Payload.(*writePayload)
			if p.bytesWritten != nil {
				*p.bytesWritten = uint64(len(p.buf))
			}
		}
		return nil
	}

	reply, err := wire.Receive(conn)
	if err != nil {
		broken = true
		return errors.Wrap(err, "object: receive write reply")
	}
	var failed []string
	for _, op := range ops {
		p := op.Payload.(*writePayload)
		n := reply.Get8()
		if n == wire.BulkErrorFlag {
			failed = append(failed, p.name)
			continue
		}
		if p.bytesWritten != nil {
			*p.bytesWritten = n
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("object: write failed for %v", failed)
	}
	return nil
}
