// Package kv implements C10: the public opaque-document key-value API.
// Like package object, every call appends a descriptor to a batch; nothing
// runs until the batch executes.
package kv

import (
	"github.com/SpaceCafe/julea/backend"
	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/connpool"
)

// Client knows how to reach the kv-server fleet (remote mode) or owns a
// linked-in backend (local mode), mirroring object.Client.
type Client struct {
	pool        *connpool.Pool
	localStore  backend.KVBackend
	serverCount int
}

func NewRemoteClient(pool *connpool.Pool, serverCount int) *Client {
	return &Client{pool: pool, serverCount: serverCount}
}

func NewLocalClient(store backend.KVBackend, serverCount int) *Client {
	return &Client{localStore: store, serverCount: serverCount}
}

func (c *Client) isLocal() bool { return c.localStore != nil }

// Handle is the client-side kv handle: server index is derived from
// hash(key) mod server_count unless given explicitly.
type Handle struct {
	client      *Client
	serverIndex int
	namespace   string
	key         string
}

func NewHandle(client *Client, namespace, key string, explicit ...int) *Handle {
	idx := 0
	if len(explicit) > 0 {
		idx = explicit[0]
	} else if client.serverCount > 0 {
		idx = int(cos.HashDigest(key) % uint64(client.serverCount))
	}
	return &Handle{client: client, serverIndex: idx, namespace: namespace, key: key}
}

func (h *Handle) ServerIndex() int  { return h.serverIndex }
func (h *Handle) Namespace() string { return h.namespace }
func (h *Handle) Key() string       { return h.key }
