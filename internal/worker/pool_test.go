package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	id  int
	err error
}

func (r *mockResult) Err() error {
	return r.err
}

type mockJob struct {
	id        int
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{id: j.id, err: errors.New("job error")}
	}
	return &mockResult{id: j.id}
}

func TestNewPool(t *testing.T) {
	if p := NewPool(context.Background(), 5); p.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p.workers)
	}
	if p := NewPool(context.Background(), 0); p.workers != 1 {
		t.Errorf("expected 1 worker for 0 input, got %d", p.workers)
	}
	if p := NewPool(context.Background(), -1); p.workers != 1 {
		t.Errorf("expected 1 worker for negative input, got %d", p.workers)
	}
}

func TestPool_ExecutionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var executed int32
	count := 12
	for i := 0; i < count; i++ {
		// later jobs finish first
		pool.Submit(&mockJob{id: i, duration: time.Duration(count-i) * time.Millisecond, executed: &executed})
	}

	results := pool.Wait()
	if len(results) != count {
		t.Fatalf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
	for i, r := range results {
		if got := r.(*mockResult).id; got != i {
			t.Errorf("result %d has id %d, want submission order", i, got)
		}
	}
}

type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var current, maxConcurrent, completed int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		pool.Submit(&concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			duration: 5 * time.Millisecond,
		})
	}
	pool.Wait()

	if atomic.LoadInt32(&completed) != 20 {
		t.Errorf("expected 20 completed jobs, got %d", completed)
	}
	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", maxConcurrent, workers)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{})

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err() == nil || results[1].Err() != nil {
		t.Errorf("unexpected errors: %v, %v", results[0].Err(), results[1].Err())
	}
}

func TestPool_SubmitAfterWait(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Wait()

	done := make(chan bool)
	go func() {
		done <- pool.Submit(&mockJob{})
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("Submit after Wait should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit after Wait blocked")
	}
}

func TestPool_MoreJobsThanBuffers(t *testing.T) {
	workers := 2
	count := 5*workers*4 + 1

	done := make(chan []Result)
	go func() {
		pool := NewPool(context.Background(), workers)
		pool.Start()
		for i := 0; i < count; i++ {
			pool.Submit(&mockJob{id: i})
		}
		done <- pool.Wait()
	}()

	select {
	case results := <-done:
		if len(results) != count {
			t.Fatalf("expected %d results, got %d", count, len(results))
		}
		for i, r := range results {
			if r == nil || r.(*mockResult).id != i {
				t.Fatalf("result %d missing or out of order: %v", i, r)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not finish: Submit blocked on unread results")
	}
}

func TestPool_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(&concurrencyJob{start: func() { close(started) }, duration: 10 * time.Millisecond})
	<-started
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after parent cancel")
	}
}

func TestPool_CancelLeavesNilSlots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	pool.Submit(&concurrencyJob{start: func() { close(started) }, duration: 20 * time.Millisecond})
	pool.Submit(&mockJob{id: 1})
	<-started
	cancel()

	results := pool.Wait()
	if len(results) != 2 {
		t.Fatalf("expected a slot per accepted job, got %d", len(results))
	}
	if results[0] == nil {
		t.Error("running job should keep its result")
	}
}
