package combat

import (
	"context"

	ecs "github.com/stagewright/ecs"
	ecsstorage "github.com/stagewright/ecs/ecs/storage"
)

// DamageSystem drains queued damage events and applies them to entity
// health, deferring component writes so the whole stage observes one
// consistent world. Deaths are reported through the DeathEvent queue.
type DamageSystem struct {
	reader *ecs.EventReader[DamageEvent]
}

func (s *DamageSystem) Descriptor() ecs.SystemDescriptor {
	return ecs.SystemDescriptor{
		Name:   "damage",
		Reads:  []ecs.ComponentType{ComponentBaseStats},
		Writes: []ecs.ComponentType{ComponentHealth},
		Resources: []ecs.ResourceAccess{
			{Name: ecs.EventKey[DamageEvent](), Mode: ecs.AccessModeWrite},
			{Name: ecs.EventKey[DeathEvent](), Mode: ecs.AccessModeWrite},
		},
	}
}

func (s *DamageSystem) Run(_ context.Context, exec ecs.ExecutionContext) error {
	world := exec.World()

	damage, err := ecs.EventsOf[DamageEvent](world)
	if err != nil {
		return err
	}
	deaths, err := ecs.EventsOf[DeathEvent](world)
	if err != nil {
		return err
	}
	if s.reader == nil {
		s.reader = damage.NewReader()
	}

	healthView, err := world.ViewComponent(ComponentHealth)
	if err != nil {
		return err
	}
	statsView, err := world.ViewComponent(ComponentBaseStats)
	if err != nil {
		return err
	}

	for _, hit := range s.reader.Read() {
		raw, ok := healthView.Get(hit.Target)
		if !ok {
			continue
		}
		health := raw.(Health)
		if health.Dead {
			continue
		}

		amount := hit.Amount
		if rawStats, ok := statsView.Get(hit.Target); ok {
			if stats, ok := rawStats.(BaseStats); ok {
				amount -= stats.Defense
			}
		}
		if amount <= 0 {
			continue
		}

		health.Current -= amount
		if health.Current <= 0 {
			health.Current = 0
			health.Dead = true
			deaths.Send(DeathEvent{Entity: hit.Target})
		}
		exec.Defer(ecs.NewAddComponentCommand(hit.Target, ComponentHealth, health))
	}
	return nil
}

// ReaperSystem removes entities that died on an earlier tick.
type ReaperSystem struct {
	reader *ecs.EventReader[DeathEvent]
}

func (s *ReaperSystem) Descriptor() ecs.SystemDescriptor {
	return ecs.SystemDescriptor{
		Name: "reaper",
		Resources: []ecs.ResourceAccess{
			{Name: ecs.EventKey[DeathEvent](), Mode: ecs.AccessModeRead},
		},
	}
}

func (s *ReaperSystem) Run(_ context.Context, exec ecs.ExecutionContext) error {
	deaths, err := ecs.EventsOf[DeathEvent](exec.World())
	if err != nil {
		return err
	}
	if s.reader == nil {
		s.reader = deaths.NewReader()
	}
	for _, death := range s.reader.Read() {
		exec.Defer(ecs.NewDestroyEntityCommand(death.Entity))
	}
	return nil
}

// NewApp assembles a ready-to-run combat app: component registration,
// event queues, and the damage/reaper schedule.
func NewApp(opts ...ecs.AppOption) (*ecs.App, error) {
	app := ecs.NewApp(opts...)
	world := app.World()

	if err := world.RegisterComponent(ComponentBaseStats, ecsstorage.NewSharedStrategy()); err != nil {
		return nil, err
	}
	if err := world.RegisterComponent(ComponentHealth, ecsstorage.NewDenseStrategy()); err != nil {
		return nil, err
	}
	ecs.AddEvents[DamageEvent](app)
	ecs.AddEvents[DeathEvent](app)

	// The reaper runs before the damage stage, so a death queued this tick
	// is handled on the next one. Event buffers keep events for two ticks,
	// which is exactly the lag this schedule needs.
	app.AddSystems("reaper", &ReaperSystem{})
	app.AddSystems("damage", &DamageSystem{})
	return app, nil
}

// Spawn creates an entity immediately with archetype stats and full health.
func Spawn(world *ecs.World, stats BaseStats) (ecs.EntityID, error) {
	id := world.Registry().Create()
	commands := []ecs.Command{
		ecs.NewAddComponentCommand(id, ComponentBaseStats, stats),
		ecs.NewAddComponentCommand(id, ComponentHealth, Health{Current: stats.MaxHealth}),
	}
	if err := world.ApplyCommands(commands); err != nil {
		return ecs.EntityID{}, err
	}
	return id, nil
}
