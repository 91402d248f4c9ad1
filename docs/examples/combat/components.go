// Package combat demonstrates wiring the framework together: shared base
// stats for whole archetypes, dense per-entity health, a damage event queue,
// and systems scheduled through an App.
package combat

import (
	ecs "github.com/stagewright/ecs"
)

const (
	// ComponentBaseStats is stored with the shared strategy: every entity
	// of an archetype references one deduplicated instance.
	ComponentBaseStats ecs.ComponentType = "base_stats"
	// ComponentHealth is stored densely, one value per entity.
	ComponentHealth ecs.ComponentType = "health"
)

// BaseStats is the immutable per-archetype statistic block.
type BaseStats struct {
	MaxHealth int
	Defense   int
}

// Health is the mutable per-entity state.
type Health struct {
	Current int
	Dead    bool
}

// DamageEvent requests that an entity take damage.
type DamageEvent struct {
	Target ecs.EntityID
	Amount int
}

// DeathEvent reports that an entity's health reached zero.
type DeathEvent struct {
	Entity ecs.EntityID
}
