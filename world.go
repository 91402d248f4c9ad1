package ecs

import "github.com/rotisserie/eris"

// WorldOption customizes world construction.
type WorldOption func(*World)

// WithEntityRegistry backs the world with an existing registry.
func WithEntityRegistry(registry *EntityRegistry) WorldOption {
	return func(w *World) {
		if registry != nil {
			w.registry = registry
		}
	}
}

// WithStorageProvider swaps in a custom component storage provider.
func WithStorageProvider(provider StorageProvider) WorldOption {
	return func(w *World) {
		if provider != nil {
			w.storage = provider
		}
	}
}

// WithResourceContainer swaps in a custom resource container.
func WithResourceContainer(container ResourceContainer) WorldOption {
	return func(w *World) {
		if container != nil {
			w.resources = container
		}
	}
}

// NewWorld assembles a world from defaults plus the given overrides.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		registry:  NewEntityRegistry(),
		storage:   newStorageProvider(),
		resources: newResourceMap(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Registry exposes the entity registry.
func (w *World) Registry() *EntityRegistry { return w.registry }

// Storage exposes the component storage provider.
func (w *World) Storage() StorageProvider { return w.storage }

// Resources exposes the raw resource container. Typed access goes through
// SetResource and ResourceOf.
func (w *World) Resources() ResourceContainer { return w.resources }

// RegisterComponent binds a component type to a storage strategy. Each type
// registers at most once.
func (w *World) RegisterComponent(t ComponentType, strategy StorageStrategy) error {
	return w.storage.RegisterComponent(t, strategy)
}

// ViewComponent looks up the store for a registered component type.
func (w *World) ViewComponent(t ComponentType) (ComponentView, error) {
	return w.storage.View(t)
}

// ApplyCommands flushes deferred commands against the world in order. The
// first failing command aborts the flush; commands before it stay applied.
func (w *World) ApplyCommands(commands []Command) error {
	for i, cmd := range commands {
		if cmd == nil {
			continue
		}
		if err := cmd.Apply(w); err != nil {
			return eris.Wrapf(err, "ecs: command %d of %d", i+1, len(commands))
		}
	}
	return nil
}
