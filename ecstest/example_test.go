package ecstest_test

import (
	"context"
	"fmt"

	ecs "github.com/stagewright/ecs"
	"github.com/stagewright/ecs/ecstest"
)

type scored struct {
	Points int
}

func ExampleRunSystemOnce() {
	world := ecs.NewWorld()
	ecs.SetResource(world, 0)

	bump := ecs.SystemFunc{
		Name: "bump",
		Resources: []ecs.ResourceAccess{
			{Name: ecs.ResourceKey[int](), Mode: ecs.AccessModeWrite},
		},
		Fn: func(_ context.Context, exec ecs.ExecutionContext) error {
			n, err := ecs.ResourceOf[int](exec.World())
			if err != nil {
				return err
			}
			ecs.SetResource(exec.World(), n+1)
			return nil
		},
	}

	if err := ecstest.RunSystemOnce(context.Background(), world, bump); err != nil {
		fmt.Println("error:", err)
		return
	}
	n, _ := ecs.ResourceOf[int](world)
	fmt.Println("counter:", n)
	// Output: counter: 1
}

func ExampleCollectEvents() {
	world := ecs.NewWorld()
	queue := ecs.RegisterEvents[scored](world)
	queue.Send(scored{Points: 3})
	queue.Send(scored{Points: 7})

	events, _ := ecstest.CollectEvents[scored](world)
	fmt.Println("collected:", len(events))

	events, _ = ecstest.CollectEvents[scored](world)
	fmt.Println("collected again:", len(events))
	// Output:
	// collected: 2
	// collected again: 0
}
