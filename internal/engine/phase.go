package engine

import (
	"fmt"

	"github.com/voksel/engine/internal/core/sched"
)

// Phase is the orchestrator-level grouping under which one or more scheduler
// stages execute as a single task graph.
type Phase int

const (
	PhasePreFrame Phase = iota
	PhaseInput
	PhaseUpdate
	PhaseRender
	PhasePostFrame

	phaseCount
)

func Phases() []Phase {
	return []Phase{PhasePreFrame, PhaseInput, PhaseUpdate, PhaseRender, PhasePostFrame}
}

func (p Phase) String() string {
	switch p {
	case PhasePreFrame:
		return "PreFrame"
	case PhaseInput:
		return "Input"
	case PhaseUpdate:
		return "Update"
	case PhaseRender:
		return "Render"
	case PhasePostFrame:
		return "PostFrame"
	default:
		return "Unknown"
	}
}

// ParsePhase resolves a phase name from pipeline declarations.
func ParsePhase(name string) (Phase, error) {
	for _, p := range Phases() {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// stagesOf maps scheduler stages onto orchestrator phases. PreRender sits at
// the head of Render so it runs after every Update-stage write but before
// any draw-pass task; PostRender lands in PostFrame.
func stagesOf(p Phase) []sched.Stage {
	switch p {
	case PhaseUpdate:
		return []sched.Stage{sched.StagePreUpdate, sched.StageUpdate, sched.StagePostUpdate}
	case PhaseRender:
		return []sched.Stage{sched.StagePreRender, sched.StageRender}
	case PhasePostFrame:
		return []sched.Stage{sched.StagePostRender}
	default:
		return nil
	}
}

// PhaseOfStage returns the phase whose graph carries the given stage.
func PhaseOfStage(s sched.Stage) Phase {
	switch s {
	case sched.StagePreUpdate, sched.StageUpdate, sched.StagePostUpdate:
		return PhaseUpdate
	case sched.StagePreRender, sched.StageRender:
		return PhaseRender
	default:
		return PhasePostFrame
	}
}
