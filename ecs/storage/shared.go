package storage

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"

	ecs "github.com/stagewright/ecs"
)

// NewSharedStrategy constructs a storage strategy that deduplicates equal
// component values: every entity of an archetype points at one shared
// instance. Worth it when large populations carry identical data, such as
// all grunts sharing base stats.
//
// A shared value is immutable through any single entity. "Modifying" one
// means setting a new value, which re-points the entity and releases its
// reference to the old instance.
func NewSharedStrategy() ecs.StorageStrategy {
	return sharedStrategy{}
}

type sharedStrategy struct{}

func (sharedStrategy) Name() string {
	return "shared"
}

func (sharedStrategy) NewStore(t ecs.ComponentType) ecs.ComponentStore {
	return &sharedStore{
		typ:      t,
		byEntity: make(map[ecs.EntityID]uint32),
		entries:  make(map[uint32]*sharedEntry),
		fast:     make(map[any]uint32),
		nextID:   1,
	}
}

// sharedEntry is one deduplicated instance plus its reference count.
type sharedEntry struct {
	value any
	refs  int
}

// sharedStore maps entities to entry IDs. Comparable values dedup through
// the fast map; uncomparable ones (slices, maps inside structs) fall back
// to a DeepEqual scan over the entries.
type sharedStore struct {
	mu       sync.RWMutex
	typ      ecs.ComponentType
	byEntity map[ecs.EntityID]uint32
	entries  map[uint32]*sharedEntry
	fast     map[any]uint32
	nextID   uint32
}

func (s *sharedStore) ComponentType() ecs.ComponentType {
	return s.typ
}

func (s *sharedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEntity)
}

func (s *sharedStore) Has(id ecs.EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEntity[id]
	return ok
}

func (s *sharedStore) Get(id ecs.EntityID) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entryID, ok := s.byEntity[id]
	if !ok {
		return nil, false
	}
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

func (s *sharedStore) Iterate(fn func(ecs.EntityID, any) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, entryID := range s.byEntity {
		entry, ok := s.entries[entryID]
		if !ok {
			continue
		}
		if !fn(id, entry.value) {
			return
		}
	}
}

func (s *sharedStore) Set(id ecs.EntityID, value any) error {
	if id.IsZero() {
		return eris.New("shared: cannot set zero entity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byEntity[id]; ok {
		s.releaseLocked(old)
	}
	s.byEntity[id] = s.acquireLocked(value)
	return nil
}

func (s *sharedStore) Remove(id ecs.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.byEntity[id]
	if !ok {
		return false
	}
	delete(s.byEntity, id)
	s.releaseLocked(entryID)
	return true
}

func (s *sharedStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byEntity = make(map[ecs.EntityID]uint32)
	s.entries = make(map[uint32]*sharedEntry)
	s.fast = make(map[any]uint32)
}

// acquireLocked finds an existing entry equal to value, or allocates one,
// and takes a reference either way.
func (s *sharedStore) acquireLocked(value any) uint32 {
	if isComparable(value) {
		if entryID, ok := s.fast[value]; ok {
			s.entries[entryID].refs++
			return entryID
		}
	} else {
		for entryID, entry := range s.entries {
			if reflect.DeepEqual(entry.value, value) {
				entry.refs++
				return entryID
			}
		}
	}

	entryID := s.nextID
	s.nextID++
	s.entries[entryID] = &sharedEntry{value: value, refs: 1}
	if isComparable(value) {
		s.fast[value] = entryID
	}
	return entryID
}

// releaseLocked drops one reference, freeing the entry when none remain.
func (s *sharedStore) releaseLocked(entryID uint32) {
	entry, ok := s.entries[entryID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(s.entries, entryID)
	if isComparable(entry.value) {
		delete(s.fast, entry.value)
	}
}

func isComparable(value any) bool {
	t := reflect.TypeOf(value)
	return t != nil && t.Comparable()
}

// Stats reports sharing metrics for debugging and tuning.
func (s *sharedStore) Stats() SharedStorageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SharedStorageStats{
		EntityCount:      len(s.byEntity),
		UniqueValueCount: len(s.entries),
		SharingRatio:     float64(len(s.byEntity)) / float64(max(len(s.entries), 1)),
	}
}

// SharedStorageStats describes how effectively a shared store dedups.
type SharedStorageStats struct {
	EntityCount      int
	UniqueValueCount int
	SharingRatio     float64
}

var _ ecs.ComponentStore = (*sharedStore)(nil)
