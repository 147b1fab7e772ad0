package server

import (
	"net"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/cmn/nlog"
	"github.com/SpaceCafe/julea/semantics"
	"github.com/SpaceCafe/julea/wire"
)

func safetyOf(req *wire.Message) semantics.Safety {
	switch {
	case req.HasSafety(wire.SafetyStorage):
		return semantics.SafetyStorage
	case req.HasSafety(wire.SafetyNetwork):
		return semantics.SafetyNetwork
	default:
		return semantics.SafetyNone
	}
}

// dispatchKVPut and dispatchKVDelete catch a per-key backend error the same
// way the object dispatchers do (spec §7: "Backend" errors are a run
// failure, not a connection failure) — a failing Put/Delete is reported
// back via the documented rc field instead of tearing the connection down
// and dropping every sub-op's reply, including the ones that already
// succeeded. BatchStart/BatchExecute failures are not per-key: they reject
// or fail the whole run up front, so those still propagate and close the
// connection.
func (s *Server) dispatchKVPut(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	tok, err := s.KV.BatchStart(ns, safetyOf(req))
	if err != nil {
		return errors.Wrap(err, "kv batch_start")
	}
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		key := req.GetCString()
		n := req.Get4()
		value := req.GetN(int(n))
		rc := wire.RCOk
		if err := s.KV.Put(tok, key, value); err != nil {
			nlog.Warningf("server: kv put %q: %v", key, err)
			rc = wire.RCError
		}
		reply.Append8(rc)
		reply.AddOperation(8)
	}
	if err := s.KV.BatchExecute(tok); err != nil {
		return errors.Wrap(err, "kv batch_execute")
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) dispatchKVDelete(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	tok, err := s.KV.BatchStart(ns, safetyOf(req))
	if err != nil {
		return errors.Wrap(err, "kv batch_start")
	}
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		key := req.GetCString()
		rc := wire.RCOk
		if err := s.KV.Delete(tok, key); err != nil {
			nlog.Warningf("server: kv delete %q: %v", key, err)
			rc = wire.RCError
		}
		reply.Append8(rc)
		reply.AddOperation(8)
	}
	if err := s.KV.BatchExecute(tok); err != nil {
		return errors.Wrap(err, "kv batch_execute")
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) dispatchKVGet(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		key := req.GetCString()
		value, found, err := s.KV.Get(ns, key)
		if err != nil {
			nlog.Warningf("server: kv get %q: %v", key, err)
			reply.Append4(wire.KVGetErrLen)
			reply.AddOperation(4)
			continue
		}
		if !found {
			reply.Append4(0)
			reply.AddOperation(4)
			continue
		}
		reply.Append4(uint32(len(value)))
		reply.AppendN(value)
		reply.AddOperation(uint32(4 + len(value)))
	}
	// get always answers: a get without a reply returns nothing to the caller.
	return reply.Send(conn)
}
