package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/config"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/event"
	"github.com/voksel/engine/internal/core/sched"
	"github.com/voksel/engine/internal/core/task"
	"github.com/voksel/engine/internal/engine"
	"github.com/voksel/engine/internal/pipeline"
	"github.com/voksel/engine/internal/scripting"
	"github.com/voksel/engine/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	flagConfig string
	flagFrames int
)

func main() {
	root := &cobra.Command{
		Use:   "voksel",
		Short: "Voksel engine demo driver",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "config/engine.toml", "path to engine config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the headless frame loop",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLoop()
		},
	}
	runCmd.Flags().IntVar(&flagFrames, "frames", 0, "frame count to execute (0 = until signal)")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the system execution graph as DOT",
		RunE: func(_ *cobra.Command, _ []string) error {
			return printGraph()
		},
	}

	root.AddCommand(runCmd, graphCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// consoleTarget is the headless stand-in for the graphics backend.
type consoleTarget struct {
	uploads atomic.Int64
	draws   atomic.Int64
	passes  atomic.Int64
}

func (t *consoleTarget) UploadMesh(_ int) { t.uploads.Add(1) }
func (t *consoleTarget) DrawMesh(_ int)   { t.draws.Add(1) }

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if p := os.Getenv("VOKSEL_CONFIG"); p != "" {
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

// setup wires the full demo: world, components, systems, scripting pipeline,
// and the render-pass bracketing tasks around the Render stage.
func setup(cfg *config.Config, log *zap.Logger) (*engine.Orchestrator, *scripting.Engine, *consoleTarget, error) {
	world := ecs.NewWorld()
	stores, err := component.NewStores(world.Registry())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("register components: %w", err)
	}

	orch := engine.New(cfg.Engine, world, log)
	target := &consoleTarget{}

	// Demo scene: a camera and a handful of drifting entities.
	cam := world.CreateEntity()
	stores.Transforms.Set(cam, &component.Transform{X: 0, Y: 20, Z: 40})
	stores.Cameras.Set(cam, &component.Camera{FOV: 1.05, Aspect: 16.0 / 9.0, Near: 0.1, Far: 500})
	for i := 0; i < 8; i++ {
		e := world.CreateEntity()
		stores.Transforms.Set(e, &component.Transform{X: float64(i) * 2})
		stores.Velocities.Set(e, &component.Velocity{DX: 1, DZ: 0.5})
	}

	systems := []interface {
		sched.System
		Metadata() sched.Metadata
	}{
		system.NewCameraControllerSystem(stores, orch.Bus()),
		system.NewVoxelBootstrapSystem(stores),
		system.NewMovementSystem(stores),
		system.NewVoxelMeshingSystem(stores),
		system.NewMeshUploadSystem(stores, target),
		system.NewVoxelRenderSystem(stores, target),
		system.NewStatsLogSystem(orch.Scheduler(), 300, log),
	}
	for _, s := range systems {
		if _, err := orch.Scheduler().Register(s.Metadata(), s); err != nil {
			return nil, nil, nil, err
		}
	}

	scripts, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return nil, nil, nil, err
	}
	scripts.BindWorld(world)
	if cfg.Scripting.Pipeline != "" {
		pf, err := pipeline.Load(cfg.Scripting.Pipeline)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pipeline.Apply(pf, orch, scripts); err != nil {
			return nil, nil, nil, fmt.Errorf("apply pipeline: %w", err)
		}
	}

	// Bracket every Render-stage system between pass begin and end.
	if err := orch.AddTaskToPhase(engine.PhaseRender, "BeginRenderPass", task.PriorityHigh,
		func(context.Context) error { target.passes.Add(1); return nil }); err != nil {
		return nil, nil, nil, err
	}
	if err := orch.AddTaskToPhase(engine.PhaseRender, "EndRenderPass", task.PriorityHigh,
		func(context.Context) error { return nil }); err != nil {
		return nil, nil, nil, err
	}
	for _, node := range orch.StageNodes(sched.StageRender) {
		if err := orch.AddTaskDependency(engine.PhaseRender, node.Name(), "BeginRenderPass"); err != nil {
			return nil, nil, nil, err
		}
		if err := orch.AddTaskDependency(engine.PhaseRender, "EndRenderPass", node.Name()); err != nil {
			return nil, nil, nil, err
		}
	}

	if err := orch.Build(); err != nil {
		scripts.Close()
		return nil, nil, nil, err
	}
	return orch, scripts, target, nil
}

func runLoop() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	orch, scripts, target, err := setup(cfg, log)
	if err != nil {
		return err
	}
	defer scripts.Close()

	if cfg.Engine.Profiling && orch.Metrics() != nil {
		orch.Metrics().Serve(cfg.Metrics.BindAddress)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	event.Subscribe(orch.Bus(), func(event.QuitRequested) { orch.Stop() })

	log.Info("starting frame loop",
		zap.Int("workers", orch.Pool().WorkerCount()),
		zap.Int("systems", len(orch.Scheduler().Nodes())),
		zap.Int("frame_limit_hz", cfg.Engine.FrameLimitHz))

	start := time.Now()
	if flagFrames > 0 {
		for i := 0; i < flagFrames; i++ {
			if err := orch.ExecuteFrame(ctx); err != nil {
				return err
			}
		}
	} else {
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
	}

	log.Info("frame loop finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("uploads", target.uploads.Load()),
		zap.Int64("draws", target.draws.Load()),
		zap.Int64("passes", target.passes.Load()))
	for _, st := range orch.Stats() {
		log.Info("system runtime", zap.String("system", st.Name), zap.Duration("last", st.LastRuntime))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	orch.Shutdown(shutdownCtx)
	return nil
}

func printGraph() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})
	if err != nil {
		return err
	}
	defer log.Sync()

	orch, scripts, _, err := setup(cfg, log)
	if err != nil {
		return err
	}
	defer scripts.Close()
	fmt.Print(orch.Visualization())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	orch.Shutdown(shutdownCtx)
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
