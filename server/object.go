package server

import (
	"net"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/cmn/nlog"
	"github.com/SpaceCafe/julea/wire"
)

// A backend error (object missing, write to a read-only backend, …) is a
// per-sub-op outcome, not a connection-level failure (spec §7: "Backend"
// errors are surfaced as run failure with partial progress preserved,
// distinct from "I/O / connectivity" errors, which tear the connection
// down). Every dispatch*Object* loop below therefore catches the backend
// call's error, logs it, encodes the documented per-op failure signal, and
// keeps serving the rest of the run and the connection. Only a decode or
// socket error escapes these functions to close the connection.

func (s *Server) dispatchObjectCreate(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		name := req.GetCString()
		rc := wire.RCOk
		if _, err := s.Object.Create(ns, name); err != nil {
			nlog.Warningf("server: create %q: %v", name, err)
			rc = wire.RCError
		}
		reply.Append8(rc)
		reply.AddOperation(8)
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) dispatchObjectDelete(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		name := req.GetCString()
		rc := wire.RCOk
		if h, err := s.Object.Open(ns, name); err != nil {
			nlog.Warningf("server: open %q for delete: %v", name, err)
			rc = wire.RCError
		} else if err := s.Object.Delete(h); err != nil {
			nlog.Warningf("server: delete %q: %v", name, err)
			rc = wire.RCError
		}
		reply.Append8(rc)
		reply.AddOperation(8)
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) dispatchObjectStatus(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		name := req.GetCString()
		mtime, size, err := s.statusOne(ns, name)
		if err != nil {
			nlog.Warningf("server: status %q: %v", name, err)
		}
		reply.Append8(uint64(mtime))
		reply.Append8(size)
		reply.AddOperation(16)
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) statusOne(ns, name string) (mtime int64, size uint64, err error) {
	h, err := s.Object.Open(ns, name)
	if err != nil {
		return wire.StatusErrMtime, 0, errors.Wrapf(err, "open %q", name)
	}
	mtime, size, err = s.Object.Status(h)
	if err != nil {
		return wire.StatusErrMtime, 0, errors.Wrapf(err, "status %q", name)
	}
	return mtime, size, nil
}

func (s *Server) dispatchObjectRead(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	reply := wire.NewReply(req)
	for i := uint32(0); i < req.Count(); i++ {
		name := req.GetCString()
		length := req.Get8()
		offset := req.Get8()

		n, buf, err := s.readOne(ns, name, length, offset)
		if err != nil {
			nlog.Warningf("server: read %q: %v", name, err)
			reply.Append8(wire.BulkErrorFlag)
			reply.AddOperation(8)
			continue
		}
		reply.Append8(uint64(n))
		reply.AddOperation(8)
		if n > 0 {
			reply.AddSend(buf[:n])
		}
	}
	// a read without a reply is pointless: the caller has nothing else to
	// learn its data from, so this always answers regardless of req's flags.
	return reply.Send(conn)
}

func (s *Server) readOne(ns, name string, length, offset uint64) (int, []byte, error) {
	h, err := s.Object.Open(ns, name)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "open %q for read", name)
	}
	buf := make([]byte, length)
	n, err := s.Object.Read(h, buf, offset)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "read %q", name)
	}
	return n, buf, nil
}

func (s *Server) dispatchObjectWrite(conn net.Conn, req *wire.Message) error {
	ns := req.Namespace()
	type subop struct {
		name   string
		length uint64
		offset uint64
	}
	subops := make([]subop, req.Count())
	for i := range subops {
		subops[i] = subop{name: req.GetCString(), length: req.Get8(), offset: req.Get8()}
	}

	reply := wire.NewReply(req)
	for _, so := range subops {
		buf := make([]byte, so.length)
		if so.length > 0 {
			if _, err := readFull(conn, buf); err != nil {
				// bulk bytes are part of the frame itself; losing sync here
				// means the stream can no longer be parsed, so this is an
				// I/O failure and the connection is torn down.
				return errors.Wrapf(err, "read bulk for %q", so.name)
			}
		}
		n, err := s.writeOne(ns, so.name, buf, so.offset)
		if err != nil {
			nlog.Warningf("server: write %q: %v", so.name, err)
			reply.Append8(wire.BulkErrorFlag)
			reply.AddOperation(8)
			continue
		}
		reply.Append8(uint64(n))
		reply.AddOperation(8)
	}
	return maybeReply(conn, req, reply)
}

func (s *Server) writeOne(ns, name string, buf []byte, offset uint64) (int, error) {
	h, err := s.Object.Open(ns, name)
	if err != nil {
		return 0, errors.Wrapf(err, "open %q for write", name)
	}
	n, err := s.Object.Write(h, buf, offset)
	if err != nil {
		return 0, errors.Wrapf(err, "write %q", name)
	}
	return n, nil
}
