package batch

import (
	"context"

	"github.com/SpaceCafe/julea/cmn/cos"
	"github.com/SpaceCafe/julea/cmn/debug"
	"github.com/SpaceCafe/julea/workerpool"
)

// run is a maximal contiguous subsequence of ops sharing Kind and Key.
type run struct {
	kind Kind
	key  MergeKey
	ops  []*Op
}

// groupRuns partitions ops into maximal runs (spec §4.7 step 2), preserving
// relative order: reordering across kinds is never performed, only
// adjacent same-kind/same-target ops are folded together.
func groupRuns(ops []*Op) []*run {
	var runs []*run
	for _, op := range ops {
		if n := len(runs); n > 0 {
			last := runs[n-1]
			if last.kind == op.Kind && last.key == op.Key {
				last.ops = append(last.ops, op)
				continue
			}
		}
		runs = append(runs, &run{kind: op.Kind, key: op.Key, ops: []*Op{op}})
	}
	return runs
}

// Execute runs every operation currently queued in b: forms maximal runs,
// dispatches each via its Exec function, frees every op's payload, and
// invokes the completion callback with the aggregate success. A failing
// run does not prevent subsequent runs from executing (spec §4.7 step 4-5).
func Execute(ctx context.Context, b *Batch) (bool, error) {
	ops := b.takeOps()
	if len(ops) == 0 {
		if b.onComplete != nil {
			b.onComplete(true)
		}
		return true, nil
	}
	runs := groupRuns(ops)

	ok := true
	var errs cos.Errs
	for _, r := range runs {
		debug.Assert(len(r.ops) > 0)
		if err := r.ops[0].Exec(ctx, r.ops, b.sem); err != nil {
			ok = false
			errs.Add(err)
		}
	}
	for _, op := range ops {
		if op.Free != nil {
			op.Free()
		}
	}
	if b.onComplete != nil {
		b.onComplete(ok)
	}
	return ok, errs.Err()
}

// ExecuteAsync submits b to pool and returns a Task whose Wait() yields the
// same (bool, error) pair Execute would have returned synchronously.
// callback, if non-nil, additionally fires from the worker goroutine.
func ExecuteAsync(pool *workerpool.Pool, b *Batch, callback CompletionCB) *workerpool.Task {
	return pool.Submit(func() (any, error) {
		ok, err := Execute(context.Background(), b)
		if callback != nil {
			callback(ok)
		}
		return ok, err
	})
}

// Wait blocks until an ExecuteAsync task completes.
func Wait(t *workerpool.Task) (bool, error) {
	result, err := t.Wait()
	if result == nil {
		return false, err
	}
	return result.(bool), err
}
