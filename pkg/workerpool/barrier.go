package workerpool

import (
	"context"
	"sync"
)

// Barrier counts in-flight tasks whose number grows while waiters block.
// A task must Register before it becomes reachable by any worker and
// Deregister exactly once when it finishes. Await returns once the count
// reaches zero and is a no-op when nothing is registered. The barrier is
// reusable: registrations after a drain start a new phase.
type Barrier struct {
	mu      sync.Mutex
	pending int
	drained chan struct{}
}

// NewBarrier creates an empty barrier
func NewBarrier() *Barrier {
	return &Barrier{}
}

// Register adds one in-flight task
func (b *Barrier) Register() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == 0 {
		b.drained = make(chan struct{})
	}
	b.pending++
}

// Deregister removes one in-flight task. Calling it more often than
// Register panics.
func (b *Barrier) Deregister() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == 0 {
		panic("workerpool: Deregister without matching Register")
	}
	b.pending--
	if b.pending == 0 {
		close(b.drained)
	}
}

// Pending returns the number of registered tasks
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Await blocks until no task is registered
func (b *Barrier) Await() {
	if ch := b.phase(); ch != nil {
		<-ch
	}
}

// AwaitContext is Await bounded by ctx
func (b *Barrier) AwaitContext(ctx context.Context) error {
	ch := b.phase()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Barrier) phase() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == 0 {
		return nil
	}
	return b.drained
}
