package system

import (
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
)

// VoxelRenderSystem issues draw calls for every uploaded mesh.
type VoxelRenderSystem struct {
	stores *component.Stores
	target RenderTarget
}

func NewVoxelRenderSystem(stores *component.Stores, target RenderTarget) *VoxelRenderSystem {
	return &VoxelRenderSystem{stores: stores, target: target}
}

func (s *VoxelRenderSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "VoxelRender",
		Stage:    sched.StageRender,
		Reads:    s.stores.Meshes.Mask().With(s.stores.Cameras.ID()).With(s.stores.Transforms.ID()),
		Priority: 10,
		Parallel: true,
	}
}

func (s *VoxelRenderSystem) Run(_ *ecs.World, _ float64) {
	s.stores.Meshes.Each(func(_ ecs.EntityID, m *component.Mesh) {
		if m.Uploaded {
			s.target.DrawMesh(m.Vertices)
		}
	})
}
