package system

import (
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
)

// MovementSystem integrates velocities into transforms.
type MovementSystem struct {
	stores *component.Stores
}

func NewMovementSystem(stores *component.Stores) *MovementSystem {
	return &MovementSystem{stores: stores}
}

func (s *MovementSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "Movement",
		Stage:    sched.StageUpdate,
		Reads:    s.stores.Velocities.Mask(),
		Writes:   s.stores.Transforms.Mask(),
		Priority: 10,
		Parallel: true,
	}
}

func (s *MovementSystem) Run(_ *ecs.World, dt float64) {
	ecs.Each2(s.stores.Velocities, s.stores.Transforms,
		func(_ ecs.EntityID, v *component.Velocity, t *component.Transform) {
			t.X += v.DX * dt
			t.Y += v.DY * dt
			t.Z += v.DZ * dt
		})
}
