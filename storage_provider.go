package ecs

import (
	"sync"

	"github.com/rotisserie/eris"
)

// storageProvider is the default StorageProvider: a guarded registry of
// component stores, one per registered type.
type storageProvider struct {
	mu     sync.RWMutex
	stores map[ComponentType]ComponentStore
}

func newStorageProvider() *storageProvider {
	return &storageProvider{stores: make(map[ComponentType]ComponentStore)}
}

func (p *storageProvider) RegisterComponent(t ComponentType, strategy StorageStrategy) error {
	if strategy == nil {
		return eris.Wrapf(ErrNilStorageStrategy, "component %s", t)
	}
	store := strategy.NewStore(t)
	if store == nil {
		return eris.Wrapf(ErrNilComponentStore, "strategy %s", strategy.Name())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.stores[t]; taken {
		return eris.Wrapf(ErrComponentAlreadyRegistered, "component %s", t)
	}
	p.stores[t] = store
	return nil
}

func (p *storageProvider) View(t ComponentType) (ComponentView, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	store, ok := p.stores[t]
	if !ok {
		return nil, eris.Wrapf(ErrComponentNotRegistered, "component %s", t)
	}
	return store, nil
}

var _ StorageProvider = (*storageProvider)(nil)
