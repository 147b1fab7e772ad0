package kv

import (
	"github.com/pkg/errors"

	"github.com/SpaceCafe/julea/backend"
)

// errRemoteIterationUnsupported is returned by Iterate/IteratePrefix
// against a remote Client: the wire protocol defines no bulk-iteration
// opcode (spec §6 lists only kv_put/kv_delete/kv_get), so iteration is only
// available when a backend is linked directly into the process.
var errRemoteIterationUnsupported = errors.New("kv: iteration is only available against a local backend, not over the wire")

// Iterate walks every document in namespace, outside the batch pipeline
// (spec's prefix-iterate runs synchronously against the backend, it is not
// an operation deferred into a batch).
func (c *Client) Iterate(namespace string) (backend.Iterator, error) {
	if !c.isLocal() {
		return nil, errRemoteIterationUnsupported
	}
	return c.localStore.GetAll(namespace)
}

// IteratePrefix walks every document in namespace whose key starts with prefix.
func (c *Client) IteratePrefix(namespace, prefix string) (backend.Iterator, error) {
	if !c.isLocal() {
		return nil, errRemoteIterationUnsupported
	}
	return c.localStore.GetByPrefix(namespace, prefix)
}
