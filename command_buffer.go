package ecs

import "sync"

// maxPooledBufferCap keeps one oversized flush from pinning a large backing
// array in the pool forever.
const maxPooledBufferCap = 1024

// CommandBuffer collects deferred commands while a system runs. Not safe
// for concurrent use; every system in a stage writes to its own buffer.
type CommandBuffer struct {
	queue []Command
}

// NewCommandBuffer creates an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Len reports how many commands are queued.
func (b *CommandBuffer) Len() int {
	return len(b.queue)
}

// Push appends a command. Nil commands are ignored.
func (b *CommandBuffer) Push(cmd Command) {
	if cmd == nil {
		return
	}
	b.queue = append(b.queue, cmd)
}

// Drain hands the queued commands to the caller and leaves the buffer
// empty. The returned slice is detached; later pushes do not touch it.
func (b *CommandBuffer) Drain() []Command {
	out := b.queue
	b.queue = nil
	return out
}

// Snapshot marks the current queue position for a later Restore.
func (b *CommandBuffer) Snapshot() int {
	return len(b.queue)
}

// Restore drops every command pushed since the snapshot was taken.
func (b *CommandBuffer) Restore(snapshot int) {
	if snapshot < 0 {
		snapshot = 0
	}
	if snapshot < len(b.queue) {
		b.queue = b.queue[:snapshot]
	}
}

// CommandBufferPool recycles buffers across stage runs.
type CommandBufferPool struct {
	pool sync.Pool
}

func NewCommandBufferPool() *CommandBufferPool {
	p := &CommandBufferPool{}
	p.pool.New = func() any { return NewCommandBuffer() }
	return p
}

// Get returns an empty buffer, reusing a recycled one when available.
func (p *CommandBufferPool) Get() *CommandBuffer {
	return p.pool.Get().(*CommandBuffer)
}

// Put recycles the buffer. Buffers that grew past the retention cap are
// dropped instead so their backing arrays can be collected.
func (p *CommandBufferPool) Put(buf *CommandBuffer) {
	if buf == nil {
		return
	}
	if cap(buf.queue) > maxPooledBufferCap {
		return
	}
	buf.queue = buf.queue[:0]
	p.pool.Put(buf)
}
