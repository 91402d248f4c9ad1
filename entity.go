package ecs

import (
	"fmt"
	"sync"
)

// EntityID is a handle to a live entity. The handle packs a slot index with
// a generation counter, so a handle held across the entity's destruction
// stops matching once the slot is reused.
type EntityID struct {
	handle uint64
}

// EntityIDFromParts assembles a handle from a slot index and generation.
func EntityIDFromParts(index, generation uint32) EntityID {
	return EntityID{handle: uint64(generation)<<32 | uint64(index)}
}

// Index returns the slot index half of the handle.
func (id EntityID) Index() uint32 {
	return uint32(id.handle)
}

// Generation returns the generation half of the handle.
func (id EntityID) Generation() uint32 {
	return uint32(id.handle >> 32)
}

// IsZero reports whether the handle is the zero value, which never refers
// to a live entity.
func (id EntityID) IsZero() bool {
	return id.handle == 0
}

func (id EntityID) String() string {
	return fmt.Sprintf("EntityID(%d:%d)", id.Index(), id.Generation())
}

// entitySlot tracks one allocation slot. The generation survives the slot
// being freed so stale handles keep failing the liveness check.
type entitySlot struct {
	generation uint32
	live       bool
}

// EntityRegistry allocates entity handles and recycles destroyed slots.
// Safe for concurrent use.
type EntityRegistry struct {
	mu    sync.Mutex
	slots []entitySlot
	freed []uint32
	live  int
}

// NewEntityRegistry constructs an empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{}
}

// Create allocates a live entity, preferring recycled slots. Each
// allocation of a slot carries a generation newer than every handle that
// slot has issued before.
func (r *EntityRegistry) Create() EntityID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.freed); n > 0 {
		index = r.freed[n-1]
		r.freed = r.freed[:n-1]
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, entitySlot{})
	}

	slot := &r.slots[index]
	slot.generation++
	slot.live = true
	r.live++
	return EntityIDFromParts(index, slot.generation)
}

// Destroy frees the entity behind the handle. Stale or zero handles are
// rejected and leave the registry untouched.
func (r *EntityRegistry) Destroy(id EntityID) bool {
	if id.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.lookupLocked(id)
	if slot == nil {
		return false
	}

	slot.live = false
	r.freed = append(r.freed, id.Index())
	r.live--
	return true
}

// IsAlive reports whether the handle still refers to a live entity.
func (r *EntityRegistry) IsAlive(id EntityID) bool {
	if id.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(id) != nil
}

// Count returns the number of live entities.
func (r *EntityRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *EntityRegistry) lookupLocked(id EntityID) *entitySlot {
	index := id.Index()
	if index >= uint32(len(r.slots)) {
		return nil
	}
	slot := &r.slots[index]
	if !slot.live || slot.generation != id.Generation() {
		return nil
	}
	return slot
}
