// Package ecstest provides development-only helpers that cut boilerplate in
// unit tests for code built on this module: running systems once outside the
// scheduled update loop, and draining typed event queues into plain slices
// for assertions. It trades performance for test cleanliness and is not
// meant for production use.
package ecstest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	ecs "github.com/stagewright/ecs"
)

// RunSystemOnce executes the system exactly once, synchronously, on the
// calling goroutine. The system is not added to any schedule and has no
// effect on the app's standing stages. Commands the system defers are
// flushed before return, so the caller observes a fully consistent world.
// A failure inside the system propagates to the caller and none of its
// deferred commands are applied.
func RunSystemOnce(ctx context.Context, world *ecs.World, system ecs.System) error {
	stage := ecs.NewStage([]ecs.System{system}, ecs.WithStageName("run_once"))
	defer stage.Close()
	return stage.Run(ctx, world)
}

// RunSystemsOnce executes every listed system exactly once. Systems with
// disjoint declared access sets may run concurrently; conflicting systems
// are serialized. Relative order between systems is otherwise unspecified.
// Deferred commands from the whole batch are flushed together only after
// every system has finished, so no system observes another's structural
// mutations within the same call.
func RunSystemsOnce(ctx context.Context, world *ecs.World, systems ...ecs.System) error {
	stage := ecs.NewStage(systems, ecs.WithStageName("run_systems_once"))
	defer stage.Close()
	return stage.Run(ctx, world)
}

// CollectEvents drains every event of type E currently visible to a fresh
// reader into an owned slice, in arrival order. The drain side effect
// happens eagerly at call time: events are consumed from the world whether
// or not the returned slice is used, so an immediately repeated call
// returns an empty result. It fails when Events[E] was never registered.
func CollectEvents[E any](world *ecs.World) ([]E, error) {
	queue, err := ecs.EventsOf[E](world)
	if err != nil {
		return nil, err
	}
	return queue.Drain(), nil
}

// NewTestApp creates an App suitable for unit tests: logging goes to the
// test log and worker pools are released when the test finishes.
func NewTestApp(tb testing.TB, opts ...ecs.AppOption) *ecs.App {
	tb.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(tb))
	app := ecs.NewApp(append([]ecs.AppOption{ecs.WithLogger(logger)}, opts...)...)
	tb.Cleanup(app.Close)
	return app
}
