// Package workerpool runs tasks on a fixed set of workers fed by an
// unbounded queue. Tasks may submit further tasks, and Await waits for the
// whole recursively growing set to finish.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sdejongh/assurance/pkg/logging"
)

// DefaultSize is used when a pool is created with fewer than two workers
const DefaultSize = 4

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("worker pool is closed")

// Task is a unit of work. The context is the one passed to Submit.
type Task func(ctx context.Context)

type queuedTask struct {
	ctx  context.Context
	task Task
}

// Pool is a fixed-size worker pool with a dynamic completion barrier
type Pool struct {
	size    int
	logger  logging.Logger
	barrier *Barrier

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queuedTask
	closed bool

	workers sync.WaitGroup
}

// Option configures a Pool
type Option func(*Pool)

// WithLogger sets the logger used to report recovered panics
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		p.logger = logging.OrNull(logger)
	}
}

// New starts a pool with size workers
func New(size int, opts ...Option) *Pool {
	if size < 2 {
		size = DefaultSize
	}
	p := &Pool{
		size:    size,
		logger:  logging.NewNullLogger(),
		barrier: NewBarrier(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < size; i++ {
		p.workers.Add(1)
		go p.runWorker(i)
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Submit enqueues task. The task is registered on the barrier before any
// worker can see it. A cancelled ctx refuses the task without registering.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.barrier.Register()
	p.queue = append(p.queue, queuedTask{ctx: ctx, task: task})
	p.cond.Signal()
	return nil
}

// Await blocks until every submitted task, including tasks submitted by
// running tasks, has finished
func (p *Pool) Await() {
	p.barrier.Await()
}

// AwaitContext is Await bounded by ctx
func (p *Pool) AwaitContext(ctx context.Context) error {
	return p.barrier.AwaitContext(ctx)
}

// Pending returns the number of submitted tasks that have not finished
func (p *Pool) Pending() int {
	return p.barrier.Pending()
}

// Close stops accepting tasks, lets the workers drain the queue and waits
// for them to exit
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.workers.Wait()
}

// runWorker is the worker goroutine that processes tasks
func (p *Pool) runWorker(workerID int) {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue[0] = queuedTask{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(workerID, next)
	}
}

func (p *Pool) run(workerID int, q queuedTask) {
	defer p.barrier.Deregister()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(q.ctx, "task panicked", fmt.Errorf("%v", r), logging.Fields{
				"worker": workerID,
				"stack":  string(debug.Stack()),
			})
		}
	}()

	// work queued before cancellation is skipped but still deregistered
	if q.ctx.Err() != nil {
		return
	}
	q.task(q.ctx)
}
