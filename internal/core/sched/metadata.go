package sched

import (
	"fmt"

	"github.com/voksel/engine/internal/core/ecs"
)

// Stage is a coarse lifecycle bucket. Stages compose linearly every frame:
// PreUpdate < Update < PostUpdate < PreRender < Render < PostRender. No
// dependency edge ever spans stages; the linear order supplies the guarantee.
type Stage int

const (
	StagePreUpdate Stage = iota
	StageUpdate
	StagePostUpdate
	StagePreRender
	StageRender
	StagePostRender

	stageCount
)

// Stages lists all stages in execution order.
func Stages() []Stage {
	return []Stage{
		StagePreUpdate, StageUpdate, StagePostUpdate,
		StagePreRender, StageRender, StagePostRender,
	}
}

func (s Stage) String() string {
	switch s {
	case StagePreUpdate:
		return "PreUpdate"
	case StageUpdate:
		return "Update"
	case StagePostUpdate:
		return "PostUpdate"
	case StagePreRender:
		return "PreRender"
	case StageRender:
		return "Render"
	case StagePostRender:
		return "PostRender"
	default:
		return "Unknown"
	}
}

// ParseStage resolves a stage name from config or script declarations.
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// Relation is the kind of an explicit dependency declaration.
type Relation int

const (
	// Before orders the declaring system ahead of the target.
	Before Relation = iota
	// After orders the declaring system behind the target.
	After
	// With exempts the pair from conflict inference so they may run
	// concurrently despite overlapping masks. No edge is added.
	With
)

func (r Relation) String() string {
	switch r {
	case Before:
		return "Before"
	case After:
		return "After"
	case With:
		return "With"
	default:
		return "Unknown"
	}
}

// Dep is one explicit relation to another system, by name.
type Dep struct {
	Target string
	Kind   Relation
}

// Metadata describes a system at registration time. Immutable thereafter.
type Metadata struct {
	Name     string
	Stage    Stage
	Reads    ecs.Mask
	Writes   ecs.Mask
	Priority int // higher runs earlier when a conflict must be ordered
	Deps     []Dep
	// Parallel marks the system safe to overlap with others in its stage
	// when no conflict forbids it. Non-parallel systems are serialized
	// against their whole stage at graph-instantiation time.
	Parallel bool
}

// Conflicts reports whether two access declarations can observe inconsistent
// state: write/write or read/write overlap in either direction.
func Conflicts(a, b Metadata) bool {
	return a.Writes.Overlaps(b.Writes) ||
		a.Reads.Overlaps(b.Writes) ||
		a.Writes.Overlaps(b.Reads)
}

// System is the unit of simulation work. The scheduler holds a non-owning
// handle and invokes Run once per frame on some worker.
type System interface {
	Run(w *ecs.World, dt float64)
}

// Func adapts a bare function to the System interface.
type Func func(w *ecs.World, dt float64)

func (f Func) Run(w *ecs.World, dt float64) { f(w, dt) }
