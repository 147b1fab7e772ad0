// Package batch implements C7, the operation pipeline at the heart of
// JULEA: an ordered list of operation descriptors executed as maximal
// runs of same-kind, same-target operations, each run dispatched to either
// a backend or a single framed message.
package batch

import (
	"context"
	"sync"

	"github.com/SpaceCafe/julea/semantics"
)

// Kind tags an operation descriptor's family. Object and kv operations
// never merge with each other even if their target keys coincide.
type Kind int

const (
	ObjectCreate Kind = iota
	ObjectDelete
	ObjectRead
	ObjectWrite
	ObjectStatus
	KVPut
	KVDelete
	KVGet
)

// MergeKey is the target merge key (spec glossary): operations merge into
// one run only if contiguous in append order AND sharing both Kind and
// MergeKey. Object/key name differences within a matching MergeKey are
// fine — they become distinct sub-ops inside the same run.
type MergeKey struct {
	ServerIndex int
	Namespace   string
}

// Executor runs every Op in a contiguous, same-kind, same-target run as one
// backend call or one framed message. It is supplied by whichever client
// package (object, kv) constructed the Op, already bound to that client's
// backend/connection-pool/server-index — batch itself never talks to a
// backend or the wire directly.
type Executor func(ctx context.Context, ops []*Op, sem *semantics.Semantics) error

// Op is one operation descriptor appended to a batch. Payload is
// kind-specific (e.g. *object.readPayload); Free releases it once the run
// that contains it has finished, successfully or not.
type Op struct {
	Kind    Kind
	Key     MergeKey
	Payload any
	Exec    Executor
	Free    func()
}

// CompletionCB is invoked once per Execute call with the batch's aggregate
// success (logical AND of every run's success).
type CompletionCB func(success bool)

// Batch owns an ordered list of operation descriptors and a Semantics
// bundle. It is a single-owner object (spec §9): concurrent goroutines
// must use separate batches, but its internal locking makes Add safe to
// call concurrently with an in-flight Execute on the same batch.
//
// Reading of spec §4.7's open/executing/completed state machine (recorded
// in DESIGN.md): "executing" is the zero-duration instant in which
// takeOps hands the current operation list off to a run; the Batch itself
// snaps straight back to accepting Add calls against a fresh list, which is
// what lets execute_async keep a batch usable while its previous list runs
// in the background. There is no persisted "completed" state on the
// container itself — completion is the per-call (success, error) that
// Execute/ExecuteAsync return, not a state a reusable Batch gets stuck in.
type Batch struct {
	mu         sync.Mutex
	sem        *semantics.Semantics
	ops        []*Op
	onComplete CompletionCB
}

// New binds sem (freezing it) to a fresh, empty, open batch.
func New(sem *semantics.Semantics) *Batch {
	return &Batch{sem: sem.Bind()}
}

// OnComplete installs the callback invoked at the end of each Execute.
func (b *Batch) OnComplete(cb CompletionCB) { b.onComplete = cb }

func (b *Batch) Semantics() *semantics.Semantics { return b.sem }

// Add appends op to the batch.
func (b *Batch) Add(op *Op) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
	return nil
}

// Len reports the number of operations currently queued (for tests and
// diagnostics only; not part of the core contract).
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// takeOps atomically hands off the current operation list and resets the
// batch to an empty, open list — "further add() on the same batch after
// execute begins a fresh list" (spec §4.7).
func (b *Batch) takeOps() []*Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := b.ops
	b.ops = nil
	return ops
}
