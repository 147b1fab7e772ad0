package object

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
	store, ok := backend.NewObject("memstore")
	if !ok {
		t.Fatal("memstore object backend not registered")
	}
	if err := store.Init(""); err != nil {
		t.Fatal(err)
	}
	return NewLocalClient(store, 1)
}

func TestLocalCreateWriteReadStatusDelete(t *testing.T) {
	c := newLocalClient(t)
	h := NewHandle(c, "ns", "obj-a")

	b := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Create(b); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	var written uint64
	b2 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Write(b2, []byte("hello world"), 0, &written); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b2); err != nil || !ok {
		t.Fatalf("write: ok=%v err=%v", ok, err)
	}
	if written != 11 {
		t.Fatalf("bytes written = %d, want 11", written)
	}

	var mtime int64
	var size uint64
	b3 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Status(b3, &mtime, &size); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b3); err != nil || !ok {
		t.Fatalf("status: ok=%v err=%v", ok, err)
	}
	if size != 11 {
		t.Fatalf("size = %d, want 11", size)
	}

	buf := make([]byte, 11)
	var read uint64
	b4 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Read(b4, buf, 0, &read); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b4); err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if read != 11 || string(buf) != "hello world" {
		t.Fatalf("read %q (n=%d), want \"hello world\" (n=11)", buf, read)
	}

	b5 := batch.New(semantics.New(semantics.TemplatePOSIX))
	if err := h.Delete(b5); err != nil {
		t.Fatal(err)
	}
	if ok, err := batch.Execute(context.Background(), b5); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
}

func TestHandleServerIndexIsDeterministic(t *testing.T) {
	c := newLocalClient(t)
	h1 := NewHandle(c, "ns", "same-name")
	h2 := NewHandle(c, "ns", "same-name")
	if h1.ServerIndex() != h2.ServerIndex() {
		t.Fatalf("same name should hash to the same server index: %d vs %d", h1.ServerIndex(), h2.ServerIndex())
	}
}

func TestCreateAndDeleteMergeIntoOneRun(t *testing.T) {
	c := newLocalClient(t)
	b := batch.New(semantics.New(semantics.TemplatePOSIX))
	for _, name := range []string{"a", "b", "c"} {
		if err := NewHandle(c, "ns", name).Create(b); err != nil {
			t.Fatal(err)
		}
	}
	if ok, err := batch.Execute(context.Background(), b); err != nil || !ok {
		t.Fatalf("batch create: ok=%v err=%v", ok, err)
	}
}
