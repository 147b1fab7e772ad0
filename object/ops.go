package object

import (
	"context"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

// Create schedules object creation. Per spec §4.9, create always requests a
// network-level reply regardless of the batch's own safety axis — the
// caller needs to know the name was accepted before issuing further
// operations against the same handle.
func (h *Handle) Create(b *batch.Batch) error {
	return b.Add(&batch.Op{
		Kind:    batch.ObjectCreate,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: h.name,
		Exec:    h.client.execCreate,
	})
}

// Delete schedules object deletion.
func (h *Handle) Delete(b *batch.Batch) error {
	return b.Add(&batch.Op{
		Kind:    batch.ObjectDelete,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: h.name,
		Exec:    h.client.execDelete,
	})
}

// statusPayload holds the out-pointers a status sub-op fills in on success.
type statusPayload struct {
	name  string
	mtime *int64
	size  *uint64
}

// Status schedules a metadata lookup; mtime and size are written once b
// executes successfully.
func (h *Handle) Status(b *batch.Batch, mtime *int64, size *uint64) error {
	return b.Add(&batch.Op{
		Kind:    batch.ObjectStatus,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &statusPayload{name: h.name, mtime: mtime, size: size},
		Exec:    h.client.execStatus,
	})
}

// execCreate and execDelete build one message per run, each sub-op being a
// single object name, dispatched over the connection pool (remote mode) or
// directly against the linked-in backend (local mode).
func (c *Client) execCreate(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		for _, op := range ops {
			name := op.Payload.(string)
			if _, err := c.localStore.Create(op.Key.Namespace, name); err != nil {
				return errors.Wrapf(err, "object: create %q", name)
			}
		}
		return nil
	}
	return c.dispatchNames(ctx, wire.ObjectCreate, ops, sem, true)
}

func (c *Client) execDelete(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		for _, op := range ops {
			name := op.Payload.(string)
			h, err := c.localStore.Open(op.Key.Namespace, name)
			if err != nil {
				return errors.Wrapf(err, "object: open %q for delete", name)
			}
			if err := c.localStore.Delete(h); err != nil {
				return errors.Wrapf(err, "object: delete %q", name)
			}
		}
		return nil
	}
	return c.dispatchNames(ctx, wire.ObjectDelete, ops, sem, false)
}

// dispatchNames sends a create/delete run as one message whose sub-ops are
// bare object names; forceNetwork overrides the batch's safety axis for
// create (spec §4.9). A per-name backend failure (e.g. delete of an absent
// object) does not abort the run on the server side; it comes back as an
// RCError in the matching reply slot, which is surfaced here as an
// aggregate run error (spec §7: "Backend" errors are run failures) without
// discarding the outcome of names that did succeed.
func (c *Client) dispatchNames(ctx context.Context, op wire.Op, ops []*batch.Op, sem *semantics.Semantics, forceNetwork bool) error {
	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex

	msg := wire.New(op, ns, 32*len(ops))
	for _, o := range ops {
		msg.AppendCString(o.Payload.(string))
		msg.AddOperation(0)
	}
	msg.SetSafety(sem)
	if forceNetwork {
		msg.ForceReply()
	}

	conn, err := c.pool.Object.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "object: acquire connection")
	}
	broken := false
	defer func() { c.pool.Object.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "object: send")
	}
	if !forceNetwork && sem.Safety() == semantics.SafetyNone {
		return nil
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		broken = true
		return errors.Wrap(err, "object: receive reply")
	}
	var failed []string
	for _, o := range ops {
		if reply.Get8() != wire.RCOk {
			failed = append(failed, o.Payload.(string))
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("object: %s failed for %v", op, failed)
	}
	return nil
}

func (c *Client) execStatus(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		for _, op := range ops {
			p := op.Payload.(*statusPayload)
			h, err := c.localStore.Open(op.Key.Namespace, p.name)
			if err != nil {
				return errors.Wrapf(err, "object: open %q for status", p.name)
			}
			mtime, size, err := c.localStore.Status(h)
			if err != nil {
				return errors.Wrapf(err, "object: status %q", p.name)
			}
			if p.mtime != nil {
				*p.mtime = mtime
			}
			if p.size != nil {
				*p.size = size
			}
		}
		return nil
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.ObjectStatus, ns, 32*len(ops))
	for _, op := range ops {
		p := op.Payload.(*statusPayload)
		msg.AppendCString(p.name)
		msg.AddOperation(0)
	}
	msg.ForceReply() // status always waits for the reply

	conn, err := c.pool.Object.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "object: acquire connection")
	}
	broken := false
	defer func() { c.pool.Object.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "object: send status")
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		broken = true
		return errors.Wrap(err, "object: receive status reply")
	}
	var failed []string
	for _, op := range ops {
		p := op.Payload.(*statusPayload)
		mtime := int64(reply.Get8())
		size := reply.Get8()
		if mtime == wire.StatusErrMtime {
			failed = append(failed, p.name)
			continue
		}
		if p.mtime != nil {
			*p.mtime = mtime
		}
		if p.size != nil {
			*p.size = size
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("object: status failed for %v", failed)
	}
	return nil
}
