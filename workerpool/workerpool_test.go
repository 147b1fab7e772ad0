package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSubmitAndWait(t *testing.T) {
	p := New(2)
	defer p.Fini()

	task := p.Submit(func() (any, error) { return 42, nil })
	result, err := task.Wait()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(int) != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Fini()

	wantErr := errors.New("boom")
	task := p.Submit(func() (any, error) { return nil, wantErr })
	_, err := task.Wait()
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestManyTasksAllComplete(t *testing.T) {
	p := New(4)
	defer p.Fini()

	const n = 200
	var completed atomic.Int64
	tasks := make([]*Task, n)
	for i := range tasks {
		tasks[i] = p.Submit(func() (any, error) {
			completed.Add(1)
			return nil, nil
		})
	}
	for _, task := range tasks {
		if _, err := task.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := completed.Load(); got != n {
		t.Fatalf("completed = %d, want %d", got, n)
	}
}

func TestDefaultSizeIsPositive(t *testing.T) {
	p := New(0)
	defer p.Fini()
	task := p.Submit(func() (any, error) { return nil, nil })
	if _, err := task.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
