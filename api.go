package ecs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// System represents a unit of executable logic operating on a World. The
// descriptor declares every component and resource the system touches so
// stages can schedule non-conflicting systems concurrently.
type System interface {
	Descriptor() SystemDescriptor
	Run(ctx context.Context, exec ExecutionContext) error
}

// SystemDescriptor declares access sets and metadata for a system.
type SystemDescriptor struct {
	Name      string
	Reads     []ComponentType
	Writes    []ComponentType
	Resources []ResourceAccess
}

// SystemFunc wraps a plain function together with its declared access sets,
// so closures can participate in stage scheduling without a named type.
type SystemFunc struct {
	Name      string
	Reads     []ComponentType
	Writes    []ComponentType
	Resources []ResourceAccess
	Fn        func(ctx context.Context, exec ExecutionContext) error
}

func (s SystemFunc) Descriptor() SystemDescriptor {
	return SystemDescriptor{
		Name:      s.Name,
		Reads:     s.Reads,
		Writes:    s.Writes,
		Resources: s.Resources,
	}
}

func (s SystemFunc) Run(ctx context.Context, exec ExecutionContext) error {
	if s.Fn == nil {
		return nil
	}
	return s.Fn(ctx, exec)
}

// ExecutionContext supplies a running system with scoped access to the world.
// Structural mutations go through Defer and are applied only once the whole
// stage has finished.
type ExecutionContext interface {
	World() *World
	TimeDelta() time.Duration
	TickIndex() uint64
	Logger() zerolog.Logger
	Defer(cmd Command)
}

// World encapsulates entity/component storage and resources.
type World struct {
	registry  *EntityRegistry
	storage   StorageProvider
	resources ResourceContainer
}

// StorageProvider manages component storage backends.
type StorageProvider interface {
	RegisterComponent(ComponentType, StorageStrategy) error
	View(ComponentType) (ComponentView, error)
}

// StorageStrategy describes how a component type is stored internally.
type StorageStrategy interface {
	Name() string
	NewStore(ComponentType) ComponentStore
}

// ComponentType identifies a component storage bucket.
type ComponentType string

// ResourceAccess declares mutable or immutable access to a resource.
type ResourceAccess struct {
	Name string
	Mode AccessMode
}

// AccessMode indicates read or write intent when using a resource.
type AccessMode uint8

const (
	AccessModeRead AccessMode = iota
	AccessModeWrite
)

// ComponentStore permits read/write access to component instances.
type ComponentStore interface {
	ComponentView
	Set(EntityID, any) error
	Remove(EntityID) bool
	Clear()
}

// ComponentView exposes read-only iteration over stored components.
type ComponentView interface {
	ComponentType() ComponentType
	Len() int
	Has(EntityID) bool
	Get(EntityID) (any, bool)
	Iterate(func(EntityID, any) bool)
}

// Command represents a deferred mutation applied outside system execution.
type Command interface {
	Apply(world *World) error
}

// ResourceContainer holds shared resources accessible to systems.
type ResourceContainer interface {
	Get(name string) (any, bool)
	Set(name string, value any)
	Delete(name string)
	Range(func(string, any) bool)
}

// StageObserver receives a summary after each stage run completes.
type StageObserver interface {
	StageCompleted(summary StageSummary)
}

// StageSummary captures execution metadata for one stage run.
type StageSummary struct {
	Stage           string
	Tick            uint64
	Duration        time.Duration
	SystemsTotal    int
	SystemsExecuted int
	Batches         int
	Error           error
	ComponentReads  []ComponentType
	ComponentWrites []ComponentType
	ResourceReads   []string
	ResourceWrites  []string
}
