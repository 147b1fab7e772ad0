// Package memstore is the in-process reference backend (C3): an in-memory
// object store and a buntdb-backed key-value store. It is registered under
// the name "memstore", the name a configuration's `backend = ...` key uses
// to select it — a real, runnable backend that is neither POSIX files,
// LevelDB nor MongoDB, so it stays inside the spec's "contract only"
// boundary for concrete engines.
package memstore

import (
	"sync"
	"time"

	"github.com/SpaceCafe/julea/backend"
	"github.com/SpaceCafe/julea/cmn/cos"
)

func nowUnixNano() int64 { return time.Now().UnixNano() }

func init() {
	backend.RegisterObjectBackend("memstore", NewObject)
}

type object struct {
	mu    sync.Mutex
	data  []byte
	mtime int64
}

// objectStore is the ObjectBackend implementation. Objects live for the
// lifetime of the process (or until Delete); there is no on-disk
// persistence, matching the "temporary-local" semantics template.
type objectStore struct {
	mu   sync.RWMutex
	objs map[string]*object
}

func NewObject() backend.ObjectBackend { return &objectStore{} }

func (s *objectStore) Init(_ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs = make(map[string]*object)
	return nil
}

func (s *objectStore) Fini() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs = nil
	return nil
}

func key(ns, name string) string { return ns + "/" + name }

// handle is the concrete type behind backend.ObjectHandle for this backend.
type handle struct {
	obj *object
	key string
}

// Create is idempotent: re-creating an existing object returns its current
// handle without error and without touching its contents (spec §9 "Open
// Questions" — backend_create on already-exists is left ambiguous by the
// source; this implementation documents the decision here and in
// DESIGN.md rather than guessing at C semantics).
func (s *objectStore) Create(ns, name string) (backend.ObjectHandle, error) {
	k := key(ns, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[k]
	if !ok {
		o = &object{mtime: nowUnixNano()}
		s.objs[k] = o
	}
	return &handle{obj: o, key: k}, nil
}

func (s *objectStore) Open(ns, name string) (backend.ObjectHandle, error) {
	k := key(ns, name)
	s.mu.RLock()
	o, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return nil, cos.NewErrNotFound("object %q", k)
	}
	return &handle{obj: o, key: k}, nil
}

func (s *objectStore) Delete(h backend.ObjectHandle) error {
	hh := h.(*handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[hh.key]; !ok {
		return cos.NewErrNotFound("object %q", hh.key)
	}
	delete(s.objs, hh.key)
	return nil
}

func (*objectStore) Close(_ backend.ObjectHandle) error { return nil }

func (*objectStore) Status(h backend.ObjectHandle) (mtime int64, size uint64, err error) {
	hh := h.(*handle)
	hh.obj.mu.Lock()
	defer hh.obj.mu.Unlock()
	return hh.obj.mtime, uint64(len(hh.obj.data)), nil
}

func (*objectStore) Sync(_ backend.ObjectHandle) error { return nil }

func (*objectStore) Read(h backend.ObjectHandle, buf []byte, offset uint64) (int, error) {
	hh := h.(*handle)
	hh.obj.mu.Lock()
	defer hh.obj.mu.Unlock()
	if offset >= uint64(len(hh.obj.data)) {
		return 0, nil
	}
	n := copy(buf, hh.obj.data[offset:])
	return n, nil
}

func (*objectStore) Write(h backend.ObjectHandle, buf []byte, offset uint64) (int, error) {
	hh := h.(*handle)
	hh.obj.mu.Lock()
	defer hh.obj.mu.Unlock()
	end := offset + uint64(len(buf))
	if end > uint64(len(hh.obj.data)) {
		grown := make([]byte, end)
		copy(grown, hh.obj.data)
		hh.obj.data = grown
	}
	n := copy(hh.obj.data[offset:end], buf)
	hh.obj.mtime = nowUnixNano()
	return n, nil
}

