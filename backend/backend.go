// Package backend defines the two capability contracts (C3) that any
// object or key-value storage engine must satisfy to be usable either
// in-process (the "linked-in" path) or behind a server. Concrete
// production engines (POSIX files, LevelDB, MongoDB) are out of this
// spec's scope; package backend/memstore provides the in-process reference
// implementation exercised by the tests.
package backend

import (
	"github.com/SpaceCafe/julea/semantics"
)

// ObjectHandle is an opaque, backend-owned handle to an open object.
// Clients never inspect its contents; they pass it back unchanged to
// Close/Delete/Status/Sync/Read/Write.
type ObjectHandle any

// ObjectBackend is the byte-addressable object store contract (spec §4.3).
// All methods fail on a missing object except Create. Write past the
// current end of the object extends it (a write "to a hole").
type ObjectBackend interface {
	Init(path string) error
	Fini() error

	Create(ns, name string) (ObjectHandle, error)
	Open(ns, name string) (ObjectHandle, error)
	Delete(h ObjectHandle) error
	Close(h ObjectHandle) error
	Status(h ObjectHandle) (mtime int64, size uint64, err error)
	Sync(h ObjectHandle) error
	Read(h ObjectHandle, buf []byte, offset uint64) (n int, err error)
	Write(h ObjectHandle, buf []byte, offset uint64) (n int, err error)
}

// KVBatchToken scopes a run of Put/Delete calls between BatchStart and
// BatchExecute. Its concrete type is backend-owned.
type KVBatchToken any

// Iterator walks the results of GetAll/GetByPrefix. Each Next call
// overwrites *value with the next result and reports whether one was
// produced.
type Iterator interface {
	Next(key *string, value *[]byte) bool
	Err() error
	Close() error
}

// KVBackend is the opaque-document key-value store contract (spec §4.3).
// Implementations must be thread-safe across disjoint namespaces.
// BatchExecute applies the batch atomically when the engine supports it
// (surfaced to callers as semantics.AtomicityBatch), otherwise best-effort
// in order.
type KVBackend interface {
	Init(path string) error
	Fini() error

	BatchStart(ns string, safety semantics.Safety) (KVBatchToken, error)
	BatchExecute(tok KVBatchToken) error
	Put(tok KVBatchToken, key string, value []byte) error
	Delete(tok KVBatchToken, key string) error

	Get(ns, key string) (value []byte, found bool, err error)
	GetAll(ns string) (Iterator, error)
	GetByPrefix(ns, prefix string) (Iterator, error)
}

// Registry resolves a backend name (the config file's [object]/[kv]
// `backend = ...` value) to a constructor, mirroring the teacher's module
// ABI (spec §6) in a statically-linked, Go-native form: a package's init()
// registers its constructor instead of exporting a C symbol looked up at
// dlopen time.
type (
	NewObjectBackend func() ObjectBackend
	NewKVBackend     func() KVBackend
)

var (
	objectBackends = map[string]NewObjectBackend{}
	kvBackends     = map[string]NewKVBackend{}
)

func RegisterObjectBackend(name string, ctor NewObjectBackend) { objectBackends[name] = ctor }
func RegisterKVBackend(name string, ctor NewKVBackend)         { kvBackends[name] = ctor }

func NewObject(name string) (ObjectBackend, bool) {
	ctor, ok := objectBackends[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

func NewKV(name string) (KVBackend, bool) {
	ctor, ok := kvBackends[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}
