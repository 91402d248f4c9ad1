package ecs

import (
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

type resourceMap struct {
	mu     sync.RWMutex
	values map[string]any
}

func newResourceMap() *resourceMap {
	return &resourceMap{values: make(map[string]any)}
}

func (r *resourceMap) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

func (r *resourceMap) Set(name string, value any) {
	r.mu.Lock()
	r.values[name] = value
	r.mu.Unlock()
}

func (r *resourceMap) Delete(name string) {
	r.mu.Lock()
	delete(r.values, name)
	r.mu.Unlock()
}

func (r *resourceMap) Range(fn func(string, any) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, v := range r.values {
		if !fn(k, v) {
			return
		}
	}
}

var _ ResourceContainer = (*resourceMap)(nil)

// ResourceKey derives the container key for a resource type. Typed and
// string-keyed access share one namespace, so a resource stored through
// SetResource can still be inspected through the raw container.
func ResourceKey[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// SetResource inserts or replaces the singleton resource of type T.
func SetResource[T any](w *World, value T) {
	w.resources.Set(ResourceKey[T](), value)
}

// ResourceOf fetches the singleton resource of type T, failing with
// ErrResourceNotFound when it was never inserted.
func ResourceOf[T any](w *World) (T, error) {
	var zero T
	key := ResourceKey[T]()
	v, ok := w.resources.Get(key)
	if !ok {
		return zero, eris.Wrapf(ErrResourceNotFound, "resource %s", key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, eris.Wrapf(ErrResourceNotFound, "resource %s holds unexpected type %T", key, v)
	}
	return typed, nil
}

// RemoveResource deletes the singleton resource of type T if present.
func RemoveResource[T any](w *World) {
	w.resources.Delete(ResourceKey[T]())
}
