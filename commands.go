package ecs

import "github.com/rotisserie/eris"

// commandFunc adapts a plain function to the Command interface. All
// commands in this package are closures over their arguments; they carry
// no state beyond what the constructor captured.
type commandFunc func(*World) error

func (f commandFunc) Apply(world *World) error {
	return f(world)
}

// NewCreateEntityCommand defers an entity allocation. When target is
// non-nil, the handle allocated at flush time is written through it.
func NewCreateEntityCommand(target *EntityID) Command {
	return commandFunc(func(world *World) error {
		id := world.registry.Create()
		if target != nil {
			*target = id
		}
		return nil
	})
}

// NewDestroyEntityCommand defers destruction of the entity. Flushing fails
// when the handle is zero or already stale.
func NewDestroyEntityCommand(id EntityID) Command {
	return commandFunc(func(world *World) error {
		if id.IsZero() {
			return eris.New("ecs: destroy zero entity")
		}
		if !world.registry.Destroy(id) {
			return eris.Errorf("ecs: destroy stale entity %v", id)
		}
		return nil
	})
}

// NewAddComponentCommand defers setting a component value on the entity.
func NewAddComponentCommand(id EntityID, component ComponentType, value any) Command {
	return commandFunc(func(world *World) error {
		if id.IsZero() {
			return eris.Errorf("ecs: add %s to zero entity", component)
		}
		store, err := writableStore(world, component)
		if err != nil {
			return err
		}
		return store.Set(id, value)
	})
}

// NewRemoveComponentCommand defers removing a component from the entity.
// Removing a component the entity does not have is not an error.
func NewRemoveComponentCommand(id EntityID, component ComponentType) Command {
	return commandFunc(func(world *World) error {
		if id.IsZero() {
			return eris.Errorf("ecs: remove %s from zero entity", component)
		}
		store, err := writableStore(world, component)
		if err != nil {
			return err
		}
		store.Remove(id)
		return nil
	})
}

func writableStore(world *World, component ComponentType) (ComponentStore, error) {
	view, err := world.storage.View(component)
	if err != nil {
		return nil, err
	}
	store, ok := view.(ComponentStore)
	if !ok {
		return nil, eris.Errorf("ecs: component %s is not writable", component)
	}
	return store, nil
}
