// Package object implements C9: the public byte-addressable object API.
// Every call appends an operation descriptor to a batch; nothing happens
// until that batch is executed (see package batch).
package object

import (
	"github.com/SpaceCafe/julea/backend"
	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/connpool"
)

// Client is shared by every Handle it creates: it knows how to reach the
// object-server fleet (remote mode) or owns a linked-in backend (local
// mode). A process is one or the other for a given store, per the
// configuration's [object] `component` key.
type Client struct {
	pool        *connpool.Pool
	localStore  backend.ObjectBackend
	serverCount int
}

// NewRemoteClient builds a Client that dispatches every run over the
// connection pool to a fleet of serverCount object servers.
func NewRemoteClient(pool *connpool.Pool, serverCount int) *Client {
	return &Client{pool: pool, serverCount: serverCount}
}

// NewLocalClient builds a Client that executes every run directly against
// a linked-in backend — the "served locally" path in spec §1. serverCount
// is still meaningful: NewHandle derives each handle's server index from
// it, even though there is exactly one backend behind it.
func NewLocalClient(store backend.ObjectBackend, serverCount int) *Client {
	return &Client{localStore: store, serverCount: serverCount}
}

func (c *Client) isLocal() bool { return c.localStore != nil }

// Handle is the client-side object handle (spec §3): server-index,
// namespace and name are fixed at construction; the handle carries a
// reference count.
type Handle struct {
	client      *Client
	serverIndex int
	namespace   string
	name        string
	refcount    int32
}

// NewHandle derives the server index from hash(name) mod server_count
// unless explicit is supplied. All operations scheduled against this
// handle target that one server for its lifetime (spec §3 invariant).
func NewHandle(client *Client, namespace, name string, explicit ...int) *Handle {
	idx := 0
	if len(explicit) > 0 {
		idx = explicit[0]
	} else if client.serverCount > 0 {
		idx = int(cos.HashDigest(name) % uint64(client.serverCount))
	}
	return &Handle{client: client, serverIndex: idx, namespace: namespace, name: name, refcount: 1}
}

func (h *Handle) ServerIndex() int { return h.serverIndex }
func (h *Handle) Namespace() string { return h.namespace }
func (h *Handle) Name() string      { return h.name }

// Retain increments the handle's reference count (spec §3 lifecycle:
// handles are reference counted; last release frees owned memory — in Go
// there is nothing to free explicitly, but the refcount is kept so callers
// written against the original C-style ownership model port directly).
func (h *Handle) Retain() *Handle { h.refcount++; return h }

// Release decrements the reference count.
func (h *Handle) Release() { h.refcount-- }
