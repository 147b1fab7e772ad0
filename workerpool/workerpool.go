// Package workerpool implements C6: a fixed-size background worker pool.
// Submitting a task returns a handle the caller may Wait() on; the handle
// is reference-counted (pool + caller) so it survives whichever side lets
// go of it first, and uses a mutex/condition pair to signal completion —
// the same pattern the teacher uses for its own async primitives.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SpaceCafe/julea/cmn/cos"
)

// Func is the unit of work submitted to the pool.
type Func func() (any, error)

// Task is a handle to a submitted Func. Wait blocks until the func
// returns, then releases the task's reference.
type Task struct {
	id   string
	fn   Func
	mu   sync.Mutex
	cond *sync.Cond
	done bool

	result   any
	err      error
	refcount atomic.Int32
}

func (t *Task) ID() string { return t.id }

// Wait blocks until the task completes and returns its result.
func (t *Task) Wait() (any, error) {
	t.mu.Lock()
	for !t.done {
		t.cond.Wait()
	}
	result, err := t.result, t.err
	t.mu.Unlock()
	t.release()
	return result, err
}

func (t *Task) release() {
	if t.refcount.Add(-1) == 0 {
		t.fn = nil // drop the closure's captured state promptly
	}
}

// Pool is a fixed-size set of goroutines draining a shared task queue.
type Pool struct {
	tasks chan *Task
	wg    sync.WaitGroup

	queueDepth prometheus.Gauge
}

// New starts a pool of size workers (size<=0 defaults to the host's CPU
// count, matching the teacher's default sizing for its own worker pools).
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		tasks: make(chan *Task, size*4),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "julea", Subsystem: "workerpool", Name: "queue_depth",
			Help: "tasks submitted but not yet picked up by a worker",
		}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) Collector() prometheus.Collector { return p.queueDepth }

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.queueDepth.Dec()
		result, err := t.fn()
		t.mu.Lock()
		t.result, t.err, t.done = result, err, true
		t.mu.Unlock()
		t.cond.Broadcast()
		t.release()
	}
}

// Submit enqueues fn and returns a Task the caller may Wait() on. The
// returned Task is also referenced by the worker until it calls fn, so
// dropping the handle before completion does not leak or cancel the work.
func (p *Pool) Submit(fn Func) *Task {
	t := &Task{id: cos.GenID(), fn: fn}
	t.cond = sync.NewCond(&t.mu)
	t.refcount.Store(2) // pool-side + caller-side
	p.queueDepth.Inc()
	p.tasks <- t
	return t
}

// Fini drains every pending task before returning: closing the channel lets
// workers finish whatever is already queued, then exit their range loops.
func (p *Pool) Fini() {
	close(p.tasks)
	p.wg.Wait()
}
