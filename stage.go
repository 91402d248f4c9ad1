package ecs

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Stage is a transient execution unit: it runs each of its systems exactly
// once per Run call. Systems whose declared access sets are disjoint run
// concurrently on the worker pool; a system that conflicts with one before
// it is pushed into a later batch, serializing the pair. All deferred
// commands are applied together only after every system has finished, so no
// system observes another's structural mutations mid-run.
type Stage struct {
	name     string
	systems  []System
	logger   zerolog.Logger
	observer StageObserver
	workers  int
	pool     *workerPool
	bufPool  *CommandBufferPool
}

type StageOption func(*Stage)

// WithStageName labels the stage in logs and summaries.
func WithStageName(name string) StageOption {
	return func(st *Stage) {
		if name != "" {
			st.name = name
		}
	}
}

// WithStageLogger attaches a logger; the default discards everything.
func WithStageLogger(logger zerolog.Logger) StageOption {
	return func(st *Stage) { st.logger = logger }
}

// WithStageObserver registers an observer for run summaries.
func WithStageObserver(observer StageObserver) StageOption {
	return func(st *Stage) {
		if observer != nil {
			st.observer = observer
		}
	}
}

// WithStageWorkers caps the worker pool size used for parallel batches.
func WithStageWorkers(count int) StageOption {
	return func(st *Stage) {
		if count > 0 {
			st.workers = count
		}
	}
}

// NewStage builds a stage over the given systems. Nil systems are dropped.
func NewStage(systems []System, opts ...StageOption) *Stage {
	kept := make([]System, 0, len(systems))
	for _, sys := range systems {
		if sys != nil {
			kept = append(kept, sys)
		}
	}
	st := &Stage{
		name:     "stage",
		systems:  kept,
		logger:   zerolog.Nop(),
		observer: noopObserver{},
		bufPool:  NewCommandBufferPool(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Systems returns the stage's systems in listed order.
func (st *Stage) Systems() []System {
	return append([]System(nil), st.systems...)
}

// Run executes every system exactly once against the world and flushes all
// deferred commands before returning. On any system failure the error
// propagates and none of the buffered commands are applied.
func (st *Stage) Run(ctx context.Context, world *World) error {
	return st.run(ctx, world, 0, 0)
}

// Close releases the worker pool, if one was ever spun up.
func (st *Stage) Close() {
	if st.pool != nil {
		st.pool.Close()
		st.pool = nil
	}
}

func (st *Stage) run(ctx context.Context, world *World, tick uint64, dt time.Duration) error {
	batches := partitionSystems(st.systems)

	summary := StageSummary{
		Stage:        st.name,
		Tick:         tick,
		SystemsTotal: len(st.systems),
		Batches:      len(batches),
	}
	st.fillAccessSummary(&summary)

	start := time.Now()
	err := st.runBatches(ctx, world, batches, tick, dt, &summary)
	summary.Duration = time.Since(start)
	summary.Error = err
	st.observer.StageCompleted(summary)
	return err
}

func (st *Stage) runBatches(ctx context.Context, world *World, batches [][]System, tick uint64, dt time.Duration, summary *StageSummary) error {
	// Commands are kept per system and flushed in listed order once the
	// whole stage has succeeded.
	pending := make([]Command, 0)

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(batch) == 1 {
			commands, err := st.runSystem(ctx, batch[0], world, tick, dt)
			if err != nil {
				return err
			}
			pending = append(pending, commands...)
			summary.SystemsExecuted++
			continue
		}

		st.ensurePool()
		handles := make([]*jobHandle, len(batch))
		for i, sys := range batch {
			system := sys
			handles[i] = st.pool.Submit(ctx, func(jobCtx context.Context) jobResult {
				commands, err := st.runSystem(jobCtx, system, world, tick, dt)
				if err != nil {
					return jobResult{err: err}
				}
				return jobResult{commands: commands}
			})
		}

		var batchErr error
		for _, handle := range handles {
			res := handle.Wait()
			if res.Err() != nil {
				if batchErr == nil {
					batchErr = res.Err()
				}
				continue
			}
			pending = append(pending, res.Commands()...)
			summary.SystemsExecuted++
		}
		if batchErr != nil {
			return batchErr
		}
	}

	if len(pending) > 0 {
		if err := world.ApplyCommands(pending); err != nil {
			return eris.Wrapf(err, "ecs: stage %s command flush", st.name)
		}
	}
	return nil
}

func (st *Stage) runSystem(ctx context.Context, sys System, world *World, tick uint64, dt time.Duration) ([]Command, error) {
	desc := sys.Descriptor()
	name := desc.Name
	if name == "" {
		name = "<unnamed>"
	}

	buf := st.bufPool.Get()
	defer st.bufPool.Put(buf)

	exec := &systemExecutionContext{
		world:    world,
		dt:       dt,
		tick:     tick,
		logger:   st.logger.With().Str("stage", st.name).Str("system", name).Logger(),
		commands: buf,
	}

	if err := sys.Run(ctx, exec); err != nil {
		return nil, eris.Wrapf(err, "ecs: system %s failed", name)
	}
	exec.logger.Debug().Msg("system executed")
	return buf.Drain(), nil
}

func (st *Stage) ensurePool() {
	if st.pool != nil {
		return
	}
	workers := st.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers <= 0 {
			workers = 1
		}
	}
	st.pool = newWorkerPool(workers)
}

func (st *Stage) fillAccessSummary(summary *StageSummary) {
	compReads := make(map[ComponentType]struct{})
	compWrites := make(map[ComponentType]struct{})
	resReads := make(map[string]struct{})
	resWrites := make(map[string]struct{})
	for _, sys := range st.systems {
		acc := newAccessSet(sys.Descriptor())
		for c := range acc.compReads {
			compReads[c] = struct{}{}
		}
		for c := range acc.compWrites {
			compWrites[c] = struct{}{}
		}
		for r := range acc.resReads {
			resReads[r] = struct{}{}
		}
		for r := range acc.resWrites {
			resWrites[r] = struct{}{}
		}
	}
	summary.ComponentReads = componentSetToSlice(compReads)
	summary.ComponentWrites = componentSetToSlice(compWrites)
	summary.ResourceReads = stringSetToSlice(resReads)
	summary.ResourceWrites = stringSetToSlice(resWrites)
}

// accessSet is the flattened view of a system's declared reads and writes.
type accessSet struct {
	compReads  map[ComponentType]struct{}
	compWrites map[ComponentType]struct{}
	resReads   map[string]struct{}
	resWrites  map[string]struct{}
}

func newAccessSet(desc SystemDescriptor) accessSet {
	acc := accessSet{
		compReads:  make(map[ComponentType]struct{}),
		compWrites: make(map[ComponentType]struct{}),
		resReads:   make(map[string]struct{}),
		resWrites:  make(map[string]struct{}),
	}
	for _, c := range desc.Reads {
		acc.compReads[c] = struct{}{}
	}
	for _, c := range desc.Writes {
		acc.compWrites[c] = struct{}{}
		acc.compReads[c] = struct{}{}
	}
	for _, res := range desc.Resources {
		if res.Name == "" {
			continue
		}
		acc.resReads[res.Name] = struct{}{}
		if res.Mode == AccessModeWrite {
			acc.resWrites[res.Name] = struct{}{}
		}
	}
	return acc
}

func (a accessSet) conflictsWith(b accessSet) bool {
	for c := range a.compWrites {
		if _, ok := b.compReads[c]; ok {
			return true
		}
	}
	for c := range b.compWrites {
		if _, ok := a.compReads[c]; ok {
			return true
		}
	}
	for r := range a.resWrites {
		if _, ok := b.resReads[r]; ok {
			return true
		}
	}
	for r := range b.resWrites {
		if _, ok := a.resReads[r]; ok {
			return true
		}
	}
	return false
}

// partitionSystems groups systems into batches that may run concurrently.
// Listed order is preserved: a system conflicting with the open batch seals
// it and starts the next one, which serializes the conflicting pair.
func partitionSystems(systems []System) [][]System {
	if len(systems) == 0 {
		return nil
	}

	var batches [][]System
	var current []System
	var currentAccess []accessSet

	for _, sys := range systems {
		acc := newAccessSet(sys.Descriptor())
		conflict := false
		for _, other := range currentAccess {
			if acc.conflictsWith(other) {
				conflict = true
				break
			}
		}
		if conflict {
			batches = append(batches, current)
			current = nil
			currentAccess = nil
		}
		current = append(current, sys)
		currentAccess = append(currentAccess, acc)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// Internal execution context handed to running systems.
type systemExecutionContext struct {
	world    *World
	dt       time.Duration
	tick     uint64
	logger   zerolog.Logger
	commands *CommandBuffer
}

func (c *systemExecutionContext) World() *World { return c.world }

func (c *systemExecutionContext) TimeDelta() time.Duration { return c.dt }

func (c *systemExecutionContext) TickIndex() uint64 { return c.tick }

func (c *systemExecutionContext) Logger() zerolog.Logger { return c.logger }

func (c *systemExecutionContext) Defer(cmd Command) { c.commands.Push(cmd) }

type noopObserver struct{}

func (noopObserver) StageCompleted(StageSummary) {}

func componentSetToSlice(set map[ComponentType]struct{}) []ComponentType {
	if len(set) == 0 {
		return nil
	}
	out := make([]ComponentType, 0, len(set))
	for comp := range set {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func stringSetToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for val := range set {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}
