package storage

import (
	"github.com/rotisserie/eris"

	ecs "github.com/stagewright/ecs"
)

type denseStrategy struct{}

// NewDenseStrategy constructs the default storage strategy: components
// packed into one contiguous slice, with a sparse index keyed by entity
// slot. Iteration touches only live values, and removal swaps the last
// value into the hole so the packed slice never fragments.
func NewDenseStrategy() ecs.StorageStrategy {
	return denseStrategy{}
}

func (denseStrategy) Name() string {
	return "dense"
}

func (denseStrategy) NewStore(t ecs.ComponentType) ecs.ComponentStore {
	return &denseStore{
		typ:   t,
		index: make(map[uint32]int),
	}
}

// denseStore is a sparse-set: index maps an entity slot to a position in
// the packed ids/values pair. Generation mismatches read as absent, so
// stale handles never alias a recycled entity's data.
type denseStore struct {
	typ    ecs.ComponentType
	index  map[uint32]int
	ids    []ecs.EntityID
	values []any
}

func (s *denseStore) ComponentType() ecs.ComponentType {
	return s.typ
}

func (s *denseStore) Len() int {
	return len(s.ids)
}

func (s *denseStore) Has(id ecs.EntityID) bool {
	_, ok := s.lookup(id)
	return ok
}

func (s *denseStore) Get(id ecs.EntityID) (any, bool) {
	pos, ok := s.lookup(id)
	if !ok {
		return nil, false
	}
	return s.values[pos], true
}

func (s *denseStore) Iterate(fn func(ecs.EntityID, any) bool) {
	for pos, id := range s.ids {
		if !fn(id, s.values[pos]) {
			return
		}
	}
}

func (s *denseStore) Set(id ecs.EntityID, value any) error {
	if id.IsZero() {
		return eris.New("dense: cannot set zero entity")
	}

	if pos, ok := s.index[id.Index()]; ok {
		// Same slot, possibly a recycled entity: the newer handle wins.
		s.ids[pos] = id
		s.values[pos] = value
		return nil
	}

	s.index[id.Index()] = len(s.ids)
	s.ids = append(s.ids, id)
	s.values = append(s.values, value)
	return nil
}

func (s *denseStore) Remove(id ecs.EntityID) bool {
	pos, ok := s.lookup(id)
	if !ok {
		return false
	}

	last := len(s.ids) - 1
	if pos != last {
		s.ids[pos] = s.ids[last]
		s.values[pos] = s.values[last]
		s.index[s.ids[pos].Index()] = pos
	}
	s.ids = s.ids[:last]
	s.values[last] = nil
	s.values = s.values[:last]
	delete(s.index, id.Index())
	return true
}

func (s *denseStore) Clear() {
	s.index = make(map[uint32]int)
	s.ids = nil
	s.values = nil
}

// lookup resolves a handle to its packed position, treating generation
// mismatches as absent.
func (s *denseStore) lookup(id ecs.EntityID) (int, bool) {
	pos, ok := s.index[id.Index()]
	if !ok || s.ids[pos] != id {
		return 0, false
	}
	return pos, true
}

var _ ecs.ComponentStore = (*denseStore)(nil)
