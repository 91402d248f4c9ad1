package combat_test

import (
	"context"
	"testing"
	"time"

	ecs "github.com/stagewright/ecs"
	"github.com/stagewright/ecs/docs/examples/combat"
	ecsstorage "github.com/stagewright/ecs/ecs/storage"
	"github.com/stagewright/ecs/ecstest"
	"github.com/stretchr/testify/require"
)

func TestDamageReducesHealthThroughDefense(t *testing.T) {
	app, err := combat.NewApp()
	require.NoError(t, err)
	t.Cleanup(app.Close)
	world := app.World()

	knight, err := combat.Spawn(world, combat.BaseStats{MaxHealth: 100, Defense: 10})
	require.NoError(t, err)

	damage, err := ecs.EventsOf[combat.DamageEvent](world)
	require.NoError(t, err)
	damage.Send(combat.DamageEvent{Target: knight, Amount: 35})

	require.NoError(t, app.Update(context.Background(), time.Millisecond*16))

	view, err := world.ViewComponent(combat.ComponentHealth)
	require.NoError(t, err)
	raw, ok := view.Get(knight)
	require.True(t, ok)
	require.Equal(t, combat.Health{Current: 75}, raw)
}

func TestLethalDamageEmitsDeathAndReaps(t *testing.T) {
	app, err := combat.NewApp()
	require.NoError(t, err)
	t.Cleanup(app.Close)
	world := app.World()

	rat, err := combat.Spawn(world, combat.BaseStats{MaxHealth: 5})
	require.NoError(t, err)

	damage, err := ecs.EventsOf[combat.DamageEvent](world)
	require.NoError(t, err)
	damage.Send(combat.DamageEvent{Target: rat, Amount: 20})

	ctx := context.Background()

	// First tick: the reaper stage runs before the damage stage, so the
	// death queued this tick is not reaped yet. The entity is marked dead
	// but stays alive in the registry.
	require.NoError(t, app.Update(ctx, time.Millisecond*16))
	view, err := world.ViewComponent(combat.ComponentHealth)
	require.NoError(t, err)
	raw, ok := view.Get(rat)
	require.True(t, ok)
	require.Equal(t, combat.Health{Current: 0, Dead: true}, raw)
	require.True(t, world.Registry().IsAlive(rat))

	deaths, err := ecstest.CollectEvents[combat.DeathEvent](world)
	require.NoError(t, err)
	require.Equal(t, []combat.DeathEvent{{Entity: rat}}, deaths)

	// Second tick: the reaper sees the death and destroys the entity.
	require.NoError(t, app.Update(ctx, time.Millisecond*16))
	require.False(t, world.Registry().IsAlive(rat))
}

func TestDefenseAbsorbsWeakHits(t *testing.T) {
	app, err := combat.NewApp()
	require.NoError(t, err)
	t.Cleanup(app.Close)
	world := app.World()

	golem, err := combat.Spawn(world, combat.BaseStats{MaxHealth: 50, Defense: 8})
	require.NoError(t, err)

	damage, err := ecs.EventsOf[combat.DamageEvent](world)
	require.NoError(t, err)
	damage.Send(combat.DamageEvent{Target: golem, Amount: 8})
	damage.Send(combat.DamageEvent{Target: golem, Amount: 3})

	require.NoError(t, app.Update(context.Background(), time.Millisecond*16))

	view, err := world.ViewComponent(combat.ComponentHealth)
	require.NoError(t, err)
	raw, ok := view.Get(golem)
	require.True(t, ok)
	require.Equal(t, combat.Health{Current: 50}, raw)
}

func TestSharedStatsDeduplicateAcrossArchetype(t *testing.T) {
	app, err := combat.NewApp()
	require.NoError(t, err)
	t.Cleanup(app.Close)
	world := app.World()

	stats := combat.BaseStats{MaxHealth: 30, Defense: 2}
	for i := 0; i < 4; i++ {
		_, err := combat.Spawn(world, stats)
		require.NoError(t, err)
	}

	view, err := world.ViewComponent(combat.ComponentBaseStats)
	require.NoError(t, err)
	require.Equal(t, 4, view.Len())

	statsProvider, ok := view.(interface{ Stats() ecsstorage.SharedStorageStats })
	require.True(t, ok)
	require.Equal(t, 1, statsProvider.Stats().UniqueValueCount)
}
