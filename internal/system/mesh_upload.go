package system

import (
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
)

// MeshUploadSystem pushes freshly meshed chunks to the device. The transfer
// queue is single-consumer, so the system is non-parallel: the scheduler
// serializes its whole stage around it.
type MeshUploadSystem struct {
	stores *component.Stores
	target RenderTarget
}

func NewMeshUploadSystem(stores *component.Stores, target RenderTarget) *MeshUploadSystem {
	return &MeshUploadSystem{stores: stores, target: target}
}

func (s *MeshUploadSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "MeshUpload",
		Stage:    sched.StagePreRender,
		Reads:    s.stores.Meshes.Mask(),
		Writes:   s.stores.Meshes.Mask(),
		Priority: 10,
		Parallel: false,
	}
}

func (s *MeshUploadSystem) Run(_ *ecs.World, _ float64) {
	s.stores.Meshes.Each(func(_ ecs.EntityID, m *component.Mesh) {
		if m.Uploaded {
			return
		}
		s.target.UploadMesh(m.Vertices)
		m.Uploaded = true
	})
}
