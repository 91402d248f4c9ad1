package ecs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stagewright/ecs"
)

type recordingObserver struct {
	mu        sync.Mutex
	summaries []ecs.StageSummary
}

func (o *recordingObserver) StageCompleted(summary ecs.StageSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries = append(o.summaries, summary)
}

func (o *recordingObserver) last(t *testing.T) ecs.StageSummary {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.summaries)
	return o.summaries[len(o.summaries)-1]
}

func namedSystem(name string, writes []ecs.ComponentType, fn func(ecs.ExecutionContext) error) ecs.SystemFunc {
	return ecs.SystemFunc{
		Name:   name,
		Writes: writes,
		Fn: func(_ context.Context, exec ecs.ExecutionContext) error {
			if fn == nil {
				return nil
			}
			return fn(exec)
		},
	}
}

func TestStageRunsConflictingSystemsInListedOrder(t *testing.T) {
	world := ecs.NewWorld()
	observer := &recordingObserver{}

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ecs.ExecutionContext) error {
		return func(ecs.ExecutionContext) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// All three write the same component, so each lands in its own batch.
	writes := []ecs.ComponentType{"position"}
	stage := ecs.NewStage([]ecs.System{
		namedSystem("first", writes, record("first")),
		namedSystem("second", writes, record("second")),
		namedSystem("third", writes, record("third")),
	}, ecs.WithStageObserver(observer))
	defer stage.Close()

	require.NoError(t, stage.Run(context.Background(), world))
	require.Equal(t, []string{"first", "second", "third"}, order)

	summary := observer.last(t)
	require.Equal(t, 3, summary.Batches)
	require.Equal(t, 3, summary.SystemsExecuted)
}

func TestStageRunsDisjointSystemsConcurrently(t *testing.T) {
	world := ecs.NewWorld()

	ready1 := make(chan struct{})
	ready2 := make(chan struct{})
	rendezvous := func(announce, wait chan struct{}) func(ecs.ExecutionContext) error {
		return func(ecs.ExecutionContext) error {
			close(announce)
			select {
			case <-wait:
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("peer system never started; batch was serialized")
			}
		}
	}

	stage := ecs.NewStage([]ecs.System{
		namedSystem("left", []ecs.ComponentType{"left"}, rendezvous(ready1, ready2)),
		namedSystem("right", []ecs.ComponentType{"right"}, rendezvous(ready2, ready1)),
	}, ecs.WithStageWorkers(2))
	defer stage.Close()

	require.NoError(t, stage.Run(context.Background(), world))
}

func TestStageSerializesConflictingSystems(t *testing.T) {
	world := ecs.NewWorld()

	var active, maxActive atomic.Int32
	busy := func(ecs.ExecutionContext) error {
		now := active.Add(1)
		for {
			seen := maxActive.Load()
			if now <= seen || maxActive.CompareAndSwap(seen, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil
	}

	writes := []ecs.ComponentType{"position"}
	stage := ecs.NewStage([]ecs.System{
		namedSystem("first", writes, busy),
		namedSystem("second", writes, busy),
	})
	defer stage.Close()

	require.NoError(t, stage.Run(context.Background(), world))
	require.EqualValues(t, 1, maxActive.Load())
}

func TestStageErrorPropagatesWithoutPartialFlush(t *testing.T) {
	world := ecs.NewWorld()
	cause := errors.New("physics exploded")

	ok := ecs.SystemFunc{
		Name:   "spawner",
		Writes: []ecs.ComponentType{"a"},
		Fn: func(_ context.Context, exec ecs.ExecutionContext) error {
			exec.Defer(ecs.NewCreateEntityCommand(nil))
			return nil
		},
	}
	failing := ecs.SystemFunc{
		Name:   "physics",
		Writes: []ecs.ComponentType{"a"},
		Fn: func(_ context.Context, _ ecs.ExecutionContext) error {
			return cause
		},
	}

	stage := ecs.NewStage([]ecs.System{ok, failing})
	defer stage.Close()

	err := stage.Run(context.Background(), world)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "physics")

	// Nothing flushed: the successful system's command is dropped too.
	require.Zero(t, world.Registry().Count())
}

func TestStageCancelledContext(t *testing.T) {
	world := ecs.NewWorld()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	stage := ecs.NewStage([]ecs.System{
		namedSystem("never", nil, func(ecs.ExecutionContext) error {
			ran = true
			return nil
		}),
	})
	defer stage.Close()

	require.ErrorIs(t, stage.Run(ctx, world), context.Canceled)
	require.False(t, ran)
}

func TestStageDropsNilSystems(t *testing.T) {
	stage := ecs.NewStage([]ecs.System{nil, namedSystem("only", nil, nil), nil})
	defer stage.Close()
	require.Len(t, stage.Systems(), 1)
}

func TestStageSummaryAccessSets(t *testing.T) {
	world := ecs.NewWorld()
	observer := &recordingObserver{}

	stage := ecs.NewStage([]ecs.System{
		ecs.SystemFunc{
			Name:   "mover",
			Reads:  []ecs.ComponentType{"velocity"},
			Writes: []ecs.ComponentType{"position"},
			Resources: []ecs.ResourceAccess{
				{Name: "clock", Mode: ecs.AccessModeRead},
				{Name: "frame", Mode: ecs.AccessModeWrite},
			},
		},
	}, ecs.WithStageObserver(observer), ecs.WithStageName("movement"))
	defer stage.Close()

	require.NoError(t, stage.Run(context.Background(), world))

	summary := observer.last(t)
	require.Equal(t, "movement", summary.Stage)
	require.Equal(t, []ecs.ComponentType{"position", "velocity"}, summary.ComponentReads)
	require.Equal(t, []ecs.ComponentType{"position"}, summary.ComponentWrites)
	require.Equal(t, []string{"clock", "frame"}, summary.ResourceReads)
	require.Equal(t, []string{"frame"}, summary.ResourceWrites)
}
