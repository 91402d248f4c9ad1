package ecs

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

// Events is a typed, buffered event queue stored in the world as a resource.
// Sent events are kept across two update cycles before eviction, so systems
// running on the following tick still observe them. Readers hold independent
// cursors; Drain additionally advances a shared consumption watermark so
// consecutive drains never return overlapping events.
//
// Event types should be plain value types: readers and drains hand back
// copies, never references into the queue.
type Events[E any] struct {
	mu       sync.Mutex
	front    []eventInstance[E] // sent during the previous update cycle
	back     []eventInstance[E] // sent during the current update cycle
	sent     uint64             // total events ever sent
	consumed uint64             // drain watermark
}

type eventInstance[E any] struct {
	id    uint64
	value E
}

// NewEvents constructs an empty queue. Queues meant for system consumption
// are normally created through RegisterEvents instead.
func NewEvents[E any]() *Events[E] {
	return &Events[E]{}
}

// Send appends an event to the current buffer.
func (q *Events[E]) Send(event E) {
	q.mu.Lock()
	q.back = append(q.back, eventInstance[E]{id: q.sent, value: event})
	q.sent++
	q.mu.Unlock()
}

// Len reports how many events are currently buffered, including ones
// already seen by some readers.
func (q *Events[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.front) + len(q.back)
}

// Update ages the buffers: events from the previous cycle are evicted and
// current events become eligible for eviction on the next call. The App
// invokes this once per tick for every registered queue.
func (q *Events[E]) Update() {
	q.mu.Lock()
	q.front = q.back
	q.back = nil
	q.mu.Unlock()
}

// NewReader returns an independent cursor positioned at the drain watermark.
// Events already taken by a Drain are not visible to new readers.
func (q *Events[E]) NewReader() *EventReader[E] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return &EventReader[E]{queue: q, last: q.consumed}
}

// Drain copies out every event visible to a fresh reader, in arrival order,
// and marks them consumed. The side effect happens here, eagerly: an
// immediately following Drain returns nothing even if the first result is
// never used.
func (q *Events[E]) Drain() []E {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.collectLocked(q.consumed)
	q.consumed = q.sent
	return out
}

func (q *Events[E]) collectLocked(after uint64) []E {
	var out []E
	for _, inst := range q.front {
		if inst.id >= after {
			out = append(out, inst.value)
		}
	}
	for _, inst := range q.back {
		if inst.id >= after {
			out = append(out, inst.value)
		}
	}
	return out
}

func (q *Events[E]) updateBuffers() { q.Update() }

// eventAger is satisfied only by event queues in this package; the App uses
// it to age every registered queue without knowing concrete event types.
type eventAger interface {
	updateBuffers()
}

// EventReader is an independent cursor over an event queue. Reads advance
// only this cursor, so multiple readers each observe the full stream.
type EventReader[E any] struct {
	queue *Events[E]
	last  uint64
}

// Read returns buffered events this cursor has not seen yet, oldest first.
func (r *EventReader[E]) Read() []E {
	q := r.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.collectLocked(r.last)
	r.last = q.sent
	return out
}

// EventKey derives the resource key under which Events[E] is stored.
func EventKey[E any]() string {
	return "events[" + reflect.TypeOf((*E)(nil)).Elem().String() + "]"
}

// RegisterEvents inserts an Events[E] resource into the world, returning the
// existing queue when the type was registered before.
func RegisterEvents[E any](w *World) *Events[E] {
	key := EventKey[E]()
	if v, ok := w.resources.Get(key); ok {
		if q, ok := v.(*Events[E]); ok {
			return q
		}
	}
	q := NewEvents[E]()
	w.resources.Set(key, q)
	return q
}

// EventsOf fetches the Events[E] resource, failing with
// ErrEventsNotRegistered when no queue for E was ever registered.
func EventsOf[E any](w *World) (*Events[E], error) {
	key := EventKey[E]()
	v, ok := w.resources.Get(key)
	if !ok {
		return nil, eris.Wrapf(ErrEventsNotRegistered, "%s", key)
	}
	q, ok := v.(*Events[E])
	if !ok {
		return nil, eris.Wrapf(ErrEventsNotRegistered, "%s holds unexpected type %T", key, v)
	}
	return q, nil
}
