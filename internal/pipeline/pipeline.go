package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"github.com/voksel/engine/internal/core/sched"
	"github.com/voksel/engine/internal/core/task"
	"github.com/voksel/engine/internal/engine"
	"github.com/voksel/engine/internal/scripting"
	"gopkg.in/yaml.v3"
)

// File is a declarative pipeline definition: Lua-scripted systems with their
// scheduling metadata, scripted user tasks, and task dependencies. Loaded at
// boot, applied before the orchestrator builds.
type File struct {
	Systems      []SystemDecl `yaml:"systems"`
	Tasks        []TaskDecl   `yaml:"tasks"`
	Dependencies []DepDecl    `yaml:"dependencies"`
}

type SystemDecl struct {
	Name     string   `yaml:"name"`
	Stage    string   `yaml:"stage"`
	Priority int      `yaml:"priority"`
	Reads    []string `yaml:"reads"`
	Writes   []string `yaml:"writes"`
	Script   string   `yaml:"script"` // relative to the scripting dir
	Func     string   `yaml:"func"`   // lua global taking (dt)
	Before   []string `yaml:"before"`
	After    []string `yaml:"after"`
	With     []string `yaml:"with"`
}

type TaskDecl struct {
	Phase    string `yaml:"phase"`
	Name     string `yaml:"name"`
	Priority string `yaml:"priority"` // "low" | "normal" | "high"
	Script   string `yaml:"script"`
	Func     string `yaml:"func"`
}

type DepDecl struct {
	Phase       string `yaml:"phase"`
	Successor   string `yaml:"successor"`
	Predecessor string `yaml:"predecessor"`
}

// Load parses a pipeline YAML file. Unknown fields are rejected so typos in
// declarations fail at boot, not silently.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse pipeline %s: %w", path, err)
	}
	return &f, nil
}

// Apply loads every referenced script and registers the declared systems,
// tasks, and dependencies with the orchestrator. Must run before Build.
func Apply(f *File, o *engine.Orchestrator, scripts *scripting.Engine) error {
	for _, decl := range f.Systems {
		if err := applySystem(decl, o, scripts); err != nil {
			return fmt.Errorf("system %q: %w", decl.Name, err)
		}
	}
	for _, decl := range f.Tasks {
		if err := applyTask(decl, o, scripts); err != nil {
			return fmt.Errorf("task %q: %w", decl.Name, err)
		}
	}
	for _, decl := range f.Dependencies {
		phase, err := engine.ParsePhase(decl.Phase)
		if err != nil {
			return err
		}
		if err := o.AddTaskDependency(phase, decl.Successor, decl.Predecessor); err != nil {
			return err
		}
	}
	return nil
}

func applySystem(decl SystemDecl, o *engine.Orchestrator, scripts *scripting.Engine) error {
	stage, err := sched.ParseStage(decl.Stage)
	if err != nil {
		return err
	}
	reg := o.World().Registry()
	reads, err := reg.MaskByNames(decl.Reads)
	if err != nil {
		return fmt.Errorf("reads: %w", err)
	}
	writes, err := reg.MaskByNames(decl.Writes)
	if err != nil {
		return fmt.Errorf("writes: %w", err)
	}
	if decl.Script != "" {
		if err := scripts.LoadFile(decl.Script); err != nil {
			return err
		}
	}
	sys, err := scripts.SystemFromGlobal(decl.Name, decl.Func)
	if err != nil {
		return err
	}
	var deps []sched.Dep
	for _, t := range decl.Before {
		deps = append(deps, sched.Dep{Target: t, Kind: sched.Before})
	}
	for _, t := range decl.After {
		deps = append(deps, sched.Dep{Target: t, Kind: sched.After})
	}
	for _, t := range decl.With {
		deps = append(deps, sched.Dep{Target: t, Kind: sched.With})
	}
	meta := sched.Metadata{
		Name:     decl.Name,
		Stage:    stage,
		Reads:    reads,
		Writes:   writes,
		Priority: decl.Priority,
		Deps:     deps,
		// A shared Lua VM is single-threaded; the stage barrier for
		// non-parallel systems is what makes scripted systems safe.
		Parallel: false,
	}
	_, err = o.Scheduler().Register(meta, sys)
	return err
}

func applyTask(decl TaskDecl, o *engine.Orchestrator, scripts *scripting.Engine) error {
	phase, err := engine.ParsePhase(decl.Phase)
	if err != nil {
		return err
	}
	priority, err := parsePriority(decl.Priority)
	if err != nil {
		return err
	}
	if decl.Script != "" {
		if err := scripts.LoadFile(decl.Script); err != nil {
			return err
		}
	}
	work, err := scripts.TaskFromGlobal(decl.Func)
	if err != nil {
		return err
	}
	return o.AddTaskToPhase(phase, decl.Name, priority, work)
}

func parsePriority(s string) (task.Priority, error) {
	switch s {
	case "", "normal":
		return task.PriorityNormal, nil
	case "low":
		return task.PriorityLow, nil
	case "high":
		return task.PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}
