package kv

import (
	"context"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

type putPayload struct {
	key   string
	value []byte
}

// Put schedules a document write. value is referenced, not copied; the
// caller must not mutate it until the batch has executed.
func (h *Handle) Put(b *batch.Batch, value []byte) error {
	return b.Add(&batch.Op{
		Kind:    batch.KVPut,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &putPayload{key: h.key, value: value},
		Exec:    h.client.execPut,
	})
}

// Delete schedules a document removal.
func (h *Handle) Delete(b *batch.Batch) error {
	return b.Add(&batch.Op{
		Kind:    batch.KVDelete,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: h.key,
		Exec:    h.client.execDelete,
	})
}

func (c *Client) execPut(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		ns := ops[0].Key.Namespace
		tok, err := c.localStore.BatchStart(ns, sem.Safety())
		if err != nil {
			return errors.Wrap(err, "kv: batch_start for put run")
		}
		for _, op := range ops {
			p := op.Payload.(*putPayload)
			if err := c.localStore.Put(tok, p.key, p.value); err != nil {
				return errors.Wrapf(err, "kv: put %q", p.key)
			}
		}
		return c.localStore.BatchExecute(tok)
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.KVPut, ns, 64*len(ops))
	keys := make([]string, len(ops))
	for i, op := range ops {
		p := op.Payload.(*putPayload)
		msg.AppendCString(p.key)
		msg.Append4(uint32(len(p.value)))
		msg.AppendN(p.value)
		msg.AddOperation(uint32(4 + len(p.value)))
		keys[i] = p.key
	}
	msg.SetSafety(sem)
	return c.sendChecked(ctx, index, msg, sem.Safety() == semantics.SafetyNone, keys)
}

func (c *Client) execDelete(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		ns := ops[0].Key.Namespace
		tok, err := c.localStore.BatchStart(ns, sem.Safety())
		if err != nil {
			return errors.Wrap(err, "kv: batch_start for delete run")
		}
		for _, op := range ops {
			key := op.Payload.(string)
			if err := c.localStore.Delete(tok, key); err != nil {
				return errors.Wrapf(err, "kv: delete %q", key)
			}
		}
		return c.localStore.BatchExecute(tok)
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.KVDelete, ns, 32*len(ops))
	keys := make([]string, len(ops))
	for i, op := range ops {
		key := op.Payload.(string)
		msg.AppendCString(key)
		msg.AddOperation(0)
		keys[i] = key
	}
	msg.SetSafety(sem)
	return c.sendChecked(ctx, index, msg, sem.Safety() == semantics.SafetyNone, keys)
}

// sendChecked dispatches msg over a pooled kv connection, optionally
// skipping the reply wait when the caller asked for no acknowledgement at
// all. When it does wait, it reads the per-key RCOk/RCError reply field
// put/delete now carry and surfaces any backend failure as an aggregate run
// error (spec §7), rather than silently discarding it the way an unread
// reply body would.
func (c *Client) sendChecked(ctx context.Context, index int, msg *wire.Message, fireAndForget bool, keys []string) error {
	conn, err := c.pool.KV.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "kv: acquire connection")
	}
	broken := false
	defer func() { c.pool.KV.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "kv: send")
	}
	if fireAndForget {
		return nil
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		broken = true
		return errors.Wrap(err, "kv: receive reply")
	}
	var failed []string
	for _, key := range keys {
		if reply.Get8() != wire.RCOk {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("kv: %s failed for %v", msg.Op(), failed)
	}
	return nil
}
