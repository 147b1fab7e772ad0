package memstore

import (
	"testing"

	"github.com/SpaceCafe/julea/semantics"
)

func newKVStore(t *testing.T) *kvStore {
	t.Helper()
	s := &kvStore{}
	if err := s.Init(""); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Fini() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newKVStore(t)

	tok, err := s.BatchStart("ns", semantics.SafetyStorage)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(tok, "k1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchExecute(tok); err != nil {
		t.Fatal(err)
	}

	v, found, err := s.Get("ns", "k1")
	if err != nil || !found || string(v) != "v1" {
		t.Fatalf("Get = %q found=%v err=%v", v, found, err)
	}

	tok2, _ := s.BatchStart("ns", semantics.SafetyStorage)
	if err := s.Delete(tok2, "k1"); err != nil {
		t.Fatal(err)
	}
	if err := s.BatchExecute(tok2); err != nil {
		t.Fatal(err)
	}
	_, found, _ = s.Get("ns", "k1")
	if found {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestBatchIsAtomicAcrossMultipleKeys(t *testing.T) {
	s := newKVStore(t)
	tok, _ := s.BatchStart("ns", semantics.SafetyStorage)
	_ = s.Put(tok, "a", []byte("1"))
	_ = s.Put(tok, "b", []byte("2"))
	if err := s.BatchExecute(tok); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b"} {
		if _, found, _ := s.Get("ns", k); !found {
			t.Fatalf("expected %q to be committed", k)
		}
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	s := newKVStore(t)
	tok, _ := s.BatchStart("ns1", semantics.SafetyStorage)
	_ = s.Put(tok, "k", []byte("ns1-value"))
	_ = s.BatchExecute(tok)

	tok2, _ := s.BatchStart("ns2", semantics.SafetyStorage)
	_ = s.Put(tok2, "k", []byte("ns2-value"))
	_ = s.BatchExecute(tok2)

	v1, _, _ := s.Get("ns1", "k")
	v2, _, _ := s.Get("ns2", "k")
	if string(v1) != "ns1-value" || string(v2) != "ns2-value" {
		t.Fatalf("namespace collision: ns1=%q ns2=%q", v1, v2)
	}
}

func TestGetByPrefix(t *testing.T) {
	s := newKVStore(t)
	tok, _ := s.BatchStart("ns", semantics.SafetyStorage)
	_ = s.Put(tok, "user/1", []byte("a"))
	_ = s.Put(tok, "user/2", []byte("b"))
	_ = s.Put(tok, "order/1", []byte("c"))
	_ = s.BatchExecute(tok)

	it, err := s.GetByPrefix("ns", "user/")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	var key string
	var value []byte
	for it.Next(&key, &value) {
		keys = append(keys, key)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 matches for prefix, got %v", keys)
	}
}
