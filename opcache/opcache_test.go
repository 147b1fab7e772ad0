package opcache

import (
	"context"
	"testing"

	"github.com/SpaceCafe/julea/batch"
	"github.com/SpaceCafe/julea/semantics"
)

func newNoopBatch(safety semantics.Safety, executed *int) *batch.Batch {
	b := batch.New(semantics.New(semantics.TemplateDefault).WithSafety(safety))
	_ = b.Add(&batch.Op{
		Kind: batch.ObjectWrite,
		Exec: func(_ context.Context, _ []*batch.Op, _ *semantics.Semantics) error {
			*executed++
			return nil
		},
	})
	return b
}

func TestSafetyNoneIsDeferred(t *testing.T) {
	c := New(10)
	var executed int
	b := newNoopBatch(semantics.SafetyNone, &executed)

	ok, err := c.Execute(context.Background(), b)
	if err != nil || !ok {
		t.Fatalf("Execute: ok=%v err=%v", ok, err)
	}
	if executed != 0 {
		t.Fatalf("safety=none batch should not run immediately, executed=%d", executed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 pending batch, got %d", c.Len())
	}
}

func TestHigherSafetyFlushesPending(t *testing.T) {
	c := New(10)
	var deferredRan, directRan int
	deferred := newNoopBatch(semantics.SafetyNone, &deferredRan)
	if _, err := c.Execute(context.Background(), deferred); err != nil {
		t.Fatal(err)
	}

	direct := newNoopBatch(semantics.SafetyNetwork, &directRan)
	if _, err := c.Execute(context.Background(), direct); err != nil {
		t.Fatal(err)
	}

	if deferredRan != 1 {
		t.Fatalf("deferred batch should have run during flush, ran=%d", deferredRan)
	}
	if directRan != 1 {
		t.Fatalf("direct batch should have run, ran=%d", directRan)
	}
	if c.Len() != 0 {
		t.Fatalf("pending queue should be empty after flush, len=%d", c.Len())
	}
}

func TestFullQueueFlushesSynchronously(t *testing.T) {
	c := New(1)
	var firstRan, secondRan int
	first := newNoopBatch(semantics.SafetyNone, &firstRan)
	second := newNoopBatch(semantics.SafetyNone, &secondRan)

	if _, err := c.Execute(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Execute(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if firstRan != 1 {
		t.Fatalf("queue was full, first batch should have flushed, ran=%d", firstRan)
	}
}

func TestExplicitFlush(t *testing.T) {
	c := New(10)
	var ran int
	b := newNoopBatch(semantics.SafetyNone, &ran)
	if _, err := c.Execute(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	c.Flush(context.Background())
	if ran != 1 {
		t.Fatalf("Flush should have run the deferred batch, ran=%d", ran)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty queue after Flush, len=%d", c.Len())
	}
}
