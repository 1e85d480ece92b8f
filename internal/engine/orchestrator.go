package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voksel/engine/internal/config"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/event"
	"github.com/voksel/engine/internal/core/sched"
	"github.com/voksel/engine/internal/core/task"
	"github.com/voksel/engine/internal/metrics"
	"go.uber.org/zap"
)

var ErrNotBuilt = errors.New("orchestrator not built")

// FrameData is the immutable per-frame snapshot handed to user callbacks.
type FrameData struct {
	DeltaTime   float64
	TotalTime   float64
	FrameNumber uint64
}

// Callbacks is the fixed record of optional per-frame hooks. Each runs on
// the main thread at the head of its phase, before the phase's task graph.
type Callbacks struct {
	PreFrame  func(FrameData)
	UserInput func(FrameData)
	Update    func(FrameData)
	Render    func(FrameData)
	PostFrame func(FrameData)
}

type userTask struct {
	name     string
	priority task.Priority
	work     task.Work
}

type userDep struct {
	successor   string
	predecessor string
}

// Orchestrator drives one frame as a sequence of phases, each realized by a
// task graph executed over the worker pool. The system scheduler's per-stage
// plans become tasks in the appropriate phase, alongside user-added tasks.
//
// All mutation (Register through the scheduler, AddTaskToPhase, callbacks)
// happens on the main thread; only graph execution fans out.
type Orchestrator struct {
	log       *zap.Logger
	cfg       config.EngineConfig
	world     *ecs.World
	bus       *event.Bus
	pool      *task.Pool
	scheduler *sched.Scheduler
	collector *metrics.Collector

	callbacks Callbacks
	userTasks [phaseCount][]userTask
	userDeps  [phaseCount][]userDep
	graphs    [phaseCount]*task.Graph
	dirty     [phaseCount]bool

	built   bool
	frame   FrameData // snapshot read by system task closures during a phase
	lastTic time.Time
	stop    chan struct{}
}

func New(cfg config.EngineConfig, world *ecs.World, log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		log:       log,
		cfg:       cfg,
		world:     world,
		bus:       event.NewBus(),
		pool:      task.NewPool(cfg.WorkerCount, log),
		scheduler: sched.NewScheduler(log),
		stop:      make(chan struct{}),
	}
	if cfg.Profiling {
		o.collector = metrics.NewCollector(log)
	}
	return o
}

func (o *Orchestrator) Scheduler() *sched.Scheduler { return o.scheduler }
func (o *Orchestrator) World() *ecs.World { return o.world }
func (o *Orchestrator) Bus() *event.Bus { return o.bus }
func (o *Orchestrator) Pool() *task.Pool { return o.pool }
func (o *Orchestrator) Metrics() *metrics.Collector { return o.collector }
func (o *Orchestrator) SetCallbacks(cb Callbacks) { o.callbacks = cb }
func (o *Orchestrator) Stats() []sched.Stat { return o.scheduler.ExecutionStats() }
func (o *Orchestrator) Visualization() string { return o.scheduler.Visualization() }

// StageNodes exposes a stage's registered systems so callers can bracket a
// whole stage with user tasks (render pass begin/end, for example).
func (o *Orchestrator) StageNodes(stage sched.Stage) []*sched.Node {
	return o.scheduler.StageNodes(stage)
}

// AddTaskToPhase registers a user task in the given phase's graph. Legal
// before and after Build; the phase graph is rebuilt on the next frame.
func (o *Orchestrator) AddTaskToPhase(phase Phase, name string, priority task.Priority, work task.Work) error {
	if work == nil {
		return fmt.Errorf("add task %q to %s: nil work", name, phase)
	}
	if _, ok := o.scheduler.Lookup(name); ok {
		return fmt.Errorf("add task %q to %s: %w (collides with a system)", name, phase, task.ErrDuplicateTask)
	}
	for _, ut := range o.userTasks[phase] {
		if ut.name == name {
			return fmt.Errorf("add task %q to %s: %w", name, phase, task.ErrDuplicateTask)
		}
	}
	o.userTasks[phase] = append(o.userTasks[phase], userTask{name: name, priority: priority, work: work})
	o.dirty[phase] = true
	return nil
}

// AddTaskDependency orders two tasks of a phase: successor never starts
// before predecessor completes. Either side may name a system task. Cycles
// are rejected when the phase graph is next sealed.
func (o *Orchestrator) AddTaskDependency(phase Phase, successor, predecessor string) error {
	if !o.knownInPhase(phase, successor) {
		return fmt.Errorf("add dependency in %s: successor %q: %w", phase, successor, task.ErrUnknownTask)
	}
	if !o.knownInPhase(phase, predecessor) {
		return fmt.Errorf("add dependency in %s: predecessor %q: %w", phase, predecessor, task.ErrUnknownTask)
	}
	o.userDeps[phase] = append(o.userDeps[phase], userDep{successor: successor, predecessor: predecessor})
	o.dirty[phase] = true
	return nil
}

func (o *Orchestrator) knownInPhase(phase Phase, name string) bool {
	if n, ok := o.scheduler.Lookup(name); ok {
		return PhaseOfStage(n.Meta().Stage) == phase
	}
	for _, ut := range o.userTasks[phase] {
		if ut.name == name {
			return true
		}
	}
	return false
}

// Build freezes the system scheduler and prepares phase graphs. A scheduler
// build failure is fatal: the orchestrator cannot run without a valid plan.
func (o *Orchestrator) Build() error {
	if err := o.scheduler.Build(o.world); err != nil {
		return fmt.Errorf("build execution graph: %w", err)
	}
	for _, p := range Phases() {
		o.dirty[p] = true
	}
	o.built = true
	return nil
}

// Run executes frames until the context is cancelled or Stop is called.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.built {
		return ErrNotBuilt
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.stop:
			return nil
		default:
		}
		if err := o.ExecuteFrame(ctx); err != nil {
			return err
		}
	}
}

// Stop requests the frame loop to exit after the current frame.
func (o *Orchestrator) Stop() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

// Shutdown drains the pool and stops the metrics endpoint.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.pool.Close()
	if o.collector != nil {
		o.collector.Shutdown(ctx)
	}
}

// ExecuteFrame runs one full frame: PreFrame, Input, Update, Render,
// PostFrame. A PartialFailure in any phase is logged and the frame
// continues; only orchestrator misuse returns an error.
func (o *Orchestrator) ExecuteFrame(ctx context.Context) error {
	if !o.built {
		return ErrNotBuilt
	}

	frameStart := time.Now()
	var dt float64
	if !o.lastTic.IsZero() {
		dt = frameStart.Sub(o.lastTic).Seconds()
		if dt > o.cfg.MaxDeltaSeconds {
			dt = o.cfg.MaxDeltaSeconds
		}
	}
	o.lastTic = frameStart
	o.frame = FrameData{
		DeltaTime:   dt,
		TotalTime:   o.frame.TotalTime + dt,
		FrameNumber: o.frame.FrameNumber + 1,
	}

	if o.callbacks.PreFrame != nil {
		o.callbacks.PreFrame(o.frame)
	}
	if err := o.runPhase(ctx, PhasePreFrame); err != nil {
		return err
	}

	o.bus.Poll()
	if o.callbacks.UserInput != nil {
		o.callbacks.UserInput(o.frame)
	}
	if err := o.runPhase(ctx, PhaseInput); err != nil {
		return err
	}

	if o.callbacks.Update != nil {
		o.callbacks.Update(o.frame)
	}
	if err := o.runPhase(ctx, PhaseUpdate); err != nil {
		return err
	}

	if o.callbacks.Render != nil {
		o.callbacks.Render(o.frame)
	}
	if err := o.runPhase(ctx, PhaseRender); err != nil {
		return err
	}

	if o.callbacks.PostFrame != nil {
		o.callbacks.PostFrame(o.frame)
	}
	if err := o.runPhase(ctx, PhasePostFrame); err != nil {
		return err
	}
	o.world.FlushDestroyQueue()

	if o.collector != nil {
		o.collector.ObserveFrame(time.Since(frameStart))
	}
	o.limitFrameRate(frameStart)
	return nil
}

// limitFrameRate sleeps until the next frame boundary when a limit is set.
func (o *Orchestrator) limitFrameRate(frameStart time.Time) {
	if o.cfg.FrameLimitHz <= 0 {
		return
	}
	period := time.Second / time.Duration(o.cfg.FrameLimitHz)
	if elapsed := time.Since(frameStart); elapsed < period {
		time.Sleep(period - elapsed)
	}
}

func (o *Orchestrator) runPhase(ctx context.Context, phase Phase) error {
	g, err := o.phaseGraph(phase)
	if err != nil {
		return err
	}
	if g.Len() == 0 {
		return nil
	}

	phaseStart := time.Now()
	outcome, err := g.Execute(ctx, o.pool)
	if err != nil {
		return fmt.Errorf("phase %s: %w", phase, err)
	}
	elapsed := time.Since(phaseStart)

	if outcome != task.OutcomeSuccess {
		failed := g.FailedTasks()
		fields := []zap.Field{
			zap.Stringer("phase", phase),
			zap.Stringer("outcome", outcome),
			zap.Uint64("frame", o.frame.FrameNumber),
			zap.Strings("failed", failed),
		}
		for _, name := range failed {
			fields = append(fields, zap.NamedError("err_"+name, g.TaskErr(name)))
		}
		o.log.Warn("phase finished with failures", fields...)
	}
	if o.cfg.PhaseBudget > 0 && elapsed > o.cfg.PhaseBudget {
		o.log.Warn("phase exceeded soft budget",
			zap.Stringer("phase", phase),
			zap.Duration("elapsed", elapsed),
			zap.Duration("budget", o.cfg.PhaseBudget))
	}
	if o.collector != nil {
		o.collector.ObservePhase(phase.String(), elapsed)
		completed, failed, cancelled := g.Counts()
		o.collector.AddTaskOutcomes("completed", completed)
		o.collector.AddTaskOutcomes("failed", failed)
		o.collector.AddTaskOutcomes("cancelled", cancelled)
	}
	return nil
}

// phaseGraph returns the phase's graph, rebuilding it when membership or
// dependencies changed and resetting it otherwise.
func (o *Orchestrator) phaseGraph(phase Phase) (*task.Graph, error) {
	if o.graphs[phase] != nil && !o.dirty[phase] {
		if err := o.graphs[phase].Reset(); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phase, err)
		}
		return o.graphs[phase], nil
	}
	g, err := o.buildPhaseGraph(phase)
	if err != nil {
		return nil, fmt.Errorf("phase %s: %w", phase, err)
	}
	o.graphs[phase] = g
	o.dirty[phase] = false
	return g, nil
}

// buildPhaseGraph composes a phase's graph: one task per system of each
// mapped stage, barrier edges between consecutive stage groups, the
// scheduler's intra-stage edges, serialization edges for non-parallel
// systems, then user tasks with their declared dependencies.
func (o *Orchestrator) buildPhaseGraph(phase Phase) (*task.Graph, error) {
	g := task.NewGraph(phase.String())

	var prevGroup []string
	for _, stage := range stagesOf(phase) {
		plan := o.scheduler.StagePlan(stage)
		if len(plan) == 0 {
			continue
		}
		group := make([]string, 0, len(plan))
		for _, n := range plan {
			if err := g.AddTask(n.Name(), task.PriorityNormal, o.systemWork(n)); err != nil {
				return nil, err
			}
			group = append(group, n.Name())
		}
		// Stage order is a barrier: everything in this stage waits for
		// everything in the previous non-empty stage of the phase.
		for _, name := range group {
			for _, prev := range prevGroup {
				if err := g.AddDependency(name, prev); err != nil {
					return nil, err
				}
			}
		}
		// Scheduler edges within the stage.
		for _, n := range plan {
			for _, pred := range n.Predecessors() {
				if err := g.AddDependency(n.Name(), pred.Name()); err != nil {
					return nil, err
				}
			}
		}
		// A non-parallel system overlaps with nothing in its stage: order
		// the whole stage around it at its plan position.
		for i, n := range plan {
			if n.Meta().Parallel {
				continue
			}
			for j, other := range plan {
				if i == j {
					continue
				}
				if j < i {
					if err := g.AddDependency(n.Name(), other.Name()); err != nil {
						return nil, err
					}
				} else {
					if err := g.AddDependency(other.Name(), n.Name()); err != nil {
						return nil, err
					}
				}
			}
		}
		prevGroup = group
	}

	for _, ut := range o.userTasks[phase] {
		if err := g.AddTask(ut.name, ut.priority, ut.work); err != nil {
			return nil, err
		}
	}
	for _, dep := range o.userDeps[phase] {
		if err := g.AddDependency(dep.successor, dep.predecessor); err != nil {
			return nil, err
		}
	}

	if err := g.Seal(); err != nil {
		return nil, err
	}
	return g, nil
}

// systemWork wraps a system node as graph work: run, time, record.
func (o *Orchestrator) systemWork(n *sched.Node) task.Work {
	return func(_ context.Context) error {
		start := time.Now()
		n.System().Run(o.world, o.frame.DeltaTime)
		d := time.Since(start)
		n.RecordRuntime(d)
		if o.collector != nil {
			o.collector.SetSystemRuntime(n.Name(), d)
		}
		return nil
	}
}
