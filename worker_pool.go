package ecs

import (
	"context"
	"sync"
)

// workerPool bounds how many system jobs run at once during a parallel
// batch. Each job runs on its own goroutine gated by a slot semaphore, so
// submission never blocks the stage goroutine.
type workerPool struct {
	slots chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// jobResult is what a system job produces: an error, or the commands the
// system deferred while running.
type jobResult struct {
	err      error
	commands []Command
}

func (r jobResult) Err() error { return r.err }

func (r jobResult) Commands() []Command { return r.commands }

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		return nil
	}
	return &workerPool{
		slots: make(chan struct{}, size),
		done:  make(chan struct{}),
	}
}

// Submit schedules fn and returns a handle to wait on. A nil pool runs fn
// inline, which keeps single-threaded callers free of goroutine overhead.
// Submitting to a closed pool yields ErrWorkerPoolClosed through the handle.
func (p *workerPool) Submit(ctx context.Context, fn func(context.Context) jobResult) *jobHandle {
	out := make(chan jobResult, 1)
	handle := &jobHandle{result: out}

	if fn == nil {
		out <- jobResult{}
		close(out)
		return handle
	}
	if p == nil {
		out <- fn(ctx)
		close(out)
		return handle
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(out)

		// Closed pools and dead contexts reject before competing for a slot.
		select {
		case <-p.done:
			out <- jobResult{err: ErrWorkerPoolClosed}
			return
		case <-ctx.Done():
			out <- jobResult{err: ctx.Err()}
			return
		default:
		}

		select {
		case <-p.done:
			out <- jobResult{err: ErrWorkerPoolClosed}
			return
		case <-ctx.Done():
			out <- jobResult{err: ctx.Err()}
			return
		case p.slots <- struct{}{}:
		}
		defer func() { <-p.slots }()

		if err := ctx.Err(); err != nil {
			out <- jobResult{err: err}
			return
		}
		out <- fn(ctx)
	}()
	return handle
}

// Close rejects new work and waits for in-flight jobs to finish.
func (p *workerPool) Close() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

// jobHandle delivers a single job's result exactly once.
type jobHandle struct {
	result chan jobResult
}

func (h *jobHandle) Wait() jobResult {
	if h == nil || h.result == nil {
		return jobResult{}
	}
	res, ok := <-h.result
	if !ok {
		return jobResult{}
	}
	return res
}
