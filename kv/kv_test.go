package kv

import (
	"context"
	"testing"

	"github.com/SpaceCafe/julea/backend"
	_ "github.com/SpaceCafe/julea/backend/memstore"
	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
)

func newLocalClient(t *testing.T) *Client {
	t.Helper()
	store, ok := backend.NewKV("memstore")
	if !ok {
		t.Fatal("memstore kv backend not registered")
	}
	if err := store.Init(""); err != nil {
		t.Fatal(err)
	}
	return NewLocalClient(store, 1)
}

func TestLocalPutGetDelete(t *testing.T) {
	c := newLocalClient(t)
	h := NewHandle(c, "ns", "key-a")

	b := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Put(b, []byte("value-a")); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b); err != nil || !ok {
		t.Fatalf("put: ok=%v err=%v", ok, err)
	}

	var out []byte
	var found bool
	b2 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Get(b2, &out, &found); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b2); err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !found || string(out) != "value-a" {
		t.Fatalf("got %q found=%v, want \"value-a\" found=true", out, found)
	}

	b3 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Delete(b3); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b3); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}

	b4 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Get(b4, &out, &found); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b4); err != nil || !ok {
		t.Fatalf("get after delete: ok=%v err=%v", ok, err)
	}
	if found {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestGetDecodeAvoidsOutPointer(t *testing.T) {
	c := newLocalClient(t)
	h := NewHandle(c, "ns", "key-b")

	b := batch.New(semantics.New(semantics.TemplatePOSIX))
	_ = h.Put(b, []byte("decoded"))
	if _, err := batch.Execute(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	var decoded string
	b2 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.GetDecode(b2, func(raw []byte) error {
		decoded = string(raw)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := batch.Execute(context.Background(), b2); err != nil {
		t.Fatal(err)
	}
	if decoded != "decoded" {
		t.Fatalf("decoded = %q, want \"decoded\"", decoded)
	}
}

func TestIteratePrefixLocal(t *testing.T) {
	c := newLocalClient(t)
	b := batch.New(semantics.New(semantics.TemplatePOSIX))
	for _, k := range []string{"a/1", "a/2", "b/1"} {
		_ = NewHandle(c, "ns", k).Put(b, []byte("v"))
	}
	if _, err := batch.Execute(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	it, err := c.IteratePrefix("ns", "a/")
	if err != nil {
		t.Fatal(err)
	}
	var n int
	var key string
	var value []byte
	for it.Next(&key, &value) {
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 keys under prefix a/, got %d", n)
	}
}

func TestRemoteIterationUnsupported(t *testing.T) {
	c := NewRemoteClient(nil, 1)
	if _, err := c.Iterate("ns"); err == nil {
		t.Fatal("expected remote Client.Iterate to report unsupported")
	}
}
