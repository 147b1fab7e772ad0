// Package server implements C11: the dispatch loop a julea-server process
// runs. One goroutine accepts connections; one goroutine per accepted
// connection decodes frames and dispatches them against the linked-in
// object and/or kv backend, replying when the request's flags ask for it.
package server

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/backend"
	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/cmn/nlog"
	"github.com/SpaceCafe/julea/wire"
)

// Server owns the listener and the pair of backends it serves requests
// against. Either backend may be nil if this process only serves the other
// store (spec §6's per-store `component = server` configuration).
type Server struct {
	Object backend.ObjectBackend
	KV     backend.KVBackend

	listener net.Listener
	wg       sync.WaitGroup

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, objectBackend backend.ObjectBackend, kvBackend backend.KVBackend) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "server: listen %s", addr)
	}
	return &Server{
		Object:   objectBackend,
		KV:       kvBackend,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled or Shutdown is called,
// spawning one goroutine per connection (spec §6: "one worker per accepted
// connection").
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shuttingDown := s.closed
			s.mu.Unlock()
			if shuttingDown {
				s.wg.Wait()
				return nil
			}
			return errors.Wrap(err, "server: accept")
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Shutdown stops accepting new connections, closes every connection
// currently being served, and waits for their workers to exit.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closed = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	_ = s.listener.Close()
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		req, err := wire.Receive(conn)
		if err != nil {
			if err != io.EOF && !cos.IsErrConnectionReset(err) {
				nlog.Warningf("server: %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		if err := s.dispatch(conn, req); err != nil {
			nlog.Errorf("server: %s: dispatch %s: %v", conn.RemoteAddr(), req.Op(), err)
			return
		}
	}
}

func (s *Server) dispatch(conn net.Conn, req *wire.Message) error {
	switch req.Op() {
	case wire.ObjectCreate:
		return s.dispatchObjectCreate(conn, req)
	case wire.ObjectDelete:
		return s.dispatchObjectDelete(conn, req)
	case wire.ObjectStatus:
		return s.dispatchObjectStatus(conn, req)
	case wire.ObjectRead:
		return s.dispatchObjectRead(conn, req)
	case wire.ObjectWrite:
		return s.dispatchObjectWrite(conn, req)
	case wire.KVPut:
		return s.dispatchKVPut(conn, req)
	case wire.KVDelete:
		return s.dispatchKVDelete(conn, req)
	case wire.KVGet:
		return s.dispatchKVGet(conn, req)
	default:
		return errors.Errorf("server: unknown op %d", req.Op())
	}
}

// maybeReply sends reply iff the request asked for a reply at any safety
// level (spec §6: SAFETY_NONE requests never get an answer back).
func maybeReply(conn net.Conn, req *wire.Message, reply *wire.Message) error {
	if !req.HasSafety(wire.SafetyNetwork) && !req.HasSafety(wire.SafetyStorage) {
		return nil
	}
	return reply.Send(conn)
}
