package component

import "github.com/voksel/engine/internal/core/ecs"

// Stores bundles the demo scene's component stores. Component ids are
// assigned by registration order here, so masks are stable within a run.
type Stores struct {
	Transforms *ecs.Store[Transform]
	Velocities *ecs.Store[Velocity]
	Cameras    *ecs.Store[Camera]
	Chunks     *ecs.Store[Chunk]
	Meshes     *ecs.Store[Mesh]
}

func NewStores(reg *ecs.Registry) (*Stores, error) {
	s := &Stores{}
	var err error
	if s.Transforms, err = ecs.NewStore[Transform](reg, "Transform"); err != nil {
		return nil, err
	}
	if s.Velocities, err = ecs.NewStore[Velocity](reg, "Velocity"); err != nil {
		return nil, err
	}
	if s.Cameras, err = ecs.NewStore[Camera](reg, "Camera"); err != nil {
		return nil, err
	}
	if s.Chunks, err = ecs.NewStore[Chunk](reg, "Chunk"); err != nil {
		return nil, err
	}
	if s.Meshes, err = ecs.NewStore[Mesh](reg, "Mesh"); err != nil {
		return nil, err
	}
	return s, nil
}
