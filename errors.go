package ecs

import "github.com/rotisserie/eris"

var (
	// ErrComponentAlreadyRegistered indicates an attempt to register the same component twice.
	ErrComponentAlreadyRegistered = eris.New("ecs: component already registered")
	// ErrComponentNotRegistered signals lookup on an unknown component type.
	ErrComponentNotRegistered = eris.New("ecs: component not registered")
	// ErrResourceNotFound signals lookup of a resource that was never inserted into the world.
	ErrResourceNotFound = eris.New("ecs: resource not found")
	// ErrEventsNotRegistered signals access to an event queue that was never registered.
	ErrEventsNotRegistered = eris.New("ecs: event type not registered")
	// ErrNilStorageStrategy is returned when storage registration receives a nil strategy.
	ErrNilStorageStrategy = eris.New("ecs: nil storage strategy")
	// ErrNilComponentStore is returned when a strategy produces a nil store.
	ErrNilComponentStore = eris.New("ecs: strategy returned nil store")
	// ErrWorkerPoolClosed indicates jobs cannot be submitted because the pool closed.
	ErrWorkerPoolClosed = eris.New("ecs: worker pool closed")
)
