package kv

import (
	"context"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

// getPayload carries either an out-pointer pair (out, found) or a decoder
// callback presented the raw value without a copy; exactly one of the two
// forms is populated.
type getPayload struct {
	key     string
	out     *[]byte
	found   *bool
	decoder func([]byte) error
}

// Get schedules a document read; out and found are written once the batch
// executes. Contiguous gets against the same target merge into a single
// request frame like put/delete (a deliberate reading of the otherwise
// ambiguous source description — see DESIGN.md).
func (h *Handle) Get(b *batch.Batch, out *[]byte, found *bool) error {
	return b.Add(&batch.Op{
		Kind:    batch.KVGet,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &getPayload{key: h.key, out: out, found: found},
		Exec:    h.client.execGet,
	})
}

// GetDecode schedules a document read whose raw bytes are handed to decode
// without being copied into a caller buffer first. decode's slice is only
// valid for the duration of the call.
func (h *Handle) GetDecode(b *batch.Batch, decode func([]byte) error) error {
	return b.Add(&batch.Op{
		Kind:    batch.KVGet,
		Key:     batch.MergeKey{ServerIndex: h.serverIndex, Namespace: h.namespace},
		Payload: &getPayload{key: h.key, decoder: decode},
		Exec:    h.client.execGet,
	})
}

func (c *Client) execGet(ctx context.Context, ops []*batch.Op, sem *semantics.Semantics) error {
	if c.isLocal() {
		ns := ops[0].Key.Namespace
		for _, op := range ops {
			p := op.Payload.(*getPayload)
			value, found, err := c.localStore.Get(ns, p.key)
			if err != nil {
				return errors.Wrapf(err, "kv: get %q", p.key)
			}
			if err := deliver(p, value, found); err != nil {
				return err
			}
		}
		return nil
	}

	ns := ops[0].Key.Namespace
	index := ops[0].Key.ServerIndex
	msg := wire.New(wire.KVGet, ns, 32*len(ops))
	for _, op := range ops {
		msg.AppendCString(op.Payload.(*getPayload).key)
		msg.AddOperation(0)
	}
	msg.ForceReply() // get always needs the value back, regardless of safety axis

	conn, err := c.pool.KV.Pop(ctx, index)
	if err != nil {
		return errors.Wrap(err, "kv: acquire connection")
	}
	broken := false
	defer func() { c.pool.KV.Push(index, conn, broken) }()

	if err := msg.Send(conn); err != nil {
		broken = true
		return errors.Wrap(err, "kv: send get")
	}
	reply, err := wire.Receive(conn)
	if err != nil {
		broken = true
		return errors.Wrap(err, "kv: receive get reply")
	}
	var failed []string
	for _, op := range ops {
		p := op.Payload.(*getPayload)
		n := reply.Get4()
		if n == wire.KVGetErrLen {
			failed = append(failed, p.key)
			continue
		}
		found := n > 0
		var value []byte
		if found {
			value = reply.GetN(int(n))
		}
		if err := deliver(p, value, found); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("kv: get failed for %v", failed)
	}
	return nil
}

func deliver(p *getPayload, value []byte, found bool) error {
	if p.decoder != nil {
		if !found {
			return nil
		}
		return p.decoder(value)
	}
	if p.found != nil {
		*p.found = found
	}
	if p.out != nil && found {
		*p.out = append((*p.out)[:0], value...)
	}
	return nil
}
