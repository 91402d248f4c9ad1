package ecs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// App ties a world to an ordered schedule of stages. Update runs one tick:
// every scheduled stage in order, then an aging pass over all registered
// event queues so events expire after two ticks.
type App struct {
	world    *World
	stages   []*Stage
	logger   zerolog.Logger
	observer StageObserver
	workers  int
	tick     uint64
}

type AppOption func(*App)

// WithWorld backs the app with an existing world instead of a fresh one.
func WithWorld(world *World) AppOption {
	return func(a *App) {
		if world != nil {
			a.world = world
		}
	}
}

// WithLogger routes stage and system logging through the given logger.
func WithLogger(logger zerolog.Logger) AppOption {
	return func(a *App) { a.logger = logger }
}

// WithObserver registers an observer applied to every scheduled stage.
func WithObserver(observer StageObserver) AppOption {
	return func(a *App) {
		if observer != nil {
			a.observer = observer
		}
	}
}

// WithWorkers caps worker pool sizes for scheduled parallel stages.
func WithWorkers(count int) AppOption {
	return func(a *App) {
		if count > 0 {
			a.workers = count
		}
	}
}

// NewApp constructs an app with an empty schedule.
func NewApp(opts ...AppOption) *App {
	a := &App{
		world:    NewWorld(),
		logger:   zerolog.Nop(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// World exposes the app's world.
func (a *App) World() *World {
	return a.world
}

// Logger returns the logger the app hands to its stages.
func (a *App) Logger() zerolog.Logger {
	return a.logger
}

// AddStage appends a stage to the schedule.
func (a *App) AddStage(stage *Stage) *App {
	if stage != nil {
		a.stages = append(a.stages, stage)
	}
	return a
}

// AddSystems wraps the systems in a named stage configured with the app's
// logger, observer, and worker cap, and appends it to the schedule.
func (a *App) AddSystems(name string, systems ...System) *App {
	opts := []StageOption{
		WithStageName(name),
		WithStageLogger(a.logger),
		WithStageObserver(a.observer),
	}
	if a.workers > 0 {
		opts = append(opts, WithStageWorkers(a.workers))
	}
	return a.AddStage(NewStage(systems, opts...))
}

// AddEvents registers an Events[E] queue in the app's world, returning the
// queue. Registering the same event type twice yields the original queue.
func AddEvents[E any](a *App) *Events[E] {
	return RegisterEvents[E](a.world)
}

// TickIndex reports how many updates have completed.
func (a *App) TickIndex() uint64 {
	return a.tick
}

// Update runs one tick of the schedule. Any stage failure aborts the tick
// and suppresses the event aging pass, so a retried tick still sees the
// same events.
func (a *App) Update(ctx context.Context, dt time.Duration) error {
	for _, stage := range a.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stage.run(ctx, a.world, a.tick, dt); err != nil {
			return err
		}
	}
	a.ageEvents()
	a.tick++
	return nil
}

// Run executes the schedule for the requested number of ticks.
func (a *App) Run(ctx context.Context, steps int, dt time.Duration) error {
	for i := 0; i < steps; i++ {
		if err := a.Update(ctx, dt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases worker pools held by scheduled stages.
func (a *App) Close() {
	for _, stage := range a.stages {
		stage.Close()
	}
}

func (a *App) ageEvents() {
	a.world.resources.Range(func(_ string, value any) bool {
		if ager, ok := value.(eventAger); ok {
			ager.updateBuffers()
		}
		return true
	})
}
