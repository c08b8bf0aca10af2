package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	Err() error
}

type envelope struct {
	seq    int
	result Result
}

type queued struct {
	seq int
	job Job
}

// Pool runs jobs on a fixed number of workers and returns results in
// submission order. Results are collected while jobs are still being
// submitted, so Submit never waits on an unread result.
type Pool struct {
	workers    int
	jobQueue   chan queued
	results    chan envelope
	wg         sync.WaitGroup
	collected  chan []envelope
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu     sync.Mutex
	next   int
	closed bool
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan queued, workers*2),
		results:    make(chan envelope, workers*2),
		collected:  make(chan []envelope, 1),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := q.job.Execute(p.ctx)
			p.results <- envelope{seq: q.seq, result: result}
		}
	}
}

func (p *Pool) collect() {
	var out []envelope
	for env := range p.results {
		out = append(out, env)
	}
	p.collected <- out
}

// Submit queues a job. It returns false when the pool's context is done;
// a rejected job takes no slot in the results.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.ctx.Err() != nil {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- queued{seq: p.next, job: job}:
		p.next++
		return true
	}
}

// Wait closes the queue, waits for the workers and returns one slot per
// accepted job, in submission order. A job dropped by cancellation before
// it ran leaves a nil slot.
func (p *Pool) Wait() []Result {
	p.mu.Lock()
	p.closed = true
	close(p.jobQueue)
	n := p.next
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)
	collected := <-p.collected
	p.cancelFunc()

	results := make([]Result, n)
	for _, env := range collected {
		results[env.seq] = env.result
	}
	return results
}
