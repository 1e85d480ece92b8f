package system

import (
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
)

// WorldExtent is the demo terrain size in chunks per horizontal axis.
const WorldExtent = 2

// VoxelBootstrapSystem seeds the chunk grid on its first run and is idle
// afterwards. High priority so the seed happens before anything reads chunks.
type VoxelBootstrapSystem struct {
	stores *component.Stores
	done   bool
}

func NewVoxelBootstrapSystem(stores *component.Stores) *VoxelBootstrapSystem {
	return &VoxelBootstrapSystem{stores: stores}
}

func (s *VoxelBootstrapSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "VoxelBootstrap",
		Stage:    sched.StagePreUpdate,
		Writes:   s.stores.Chunks.Mask(),
		Priority: 20,
		Parallel: true,
	}
}

func (s *VoxelBootstrapSystem) Run(w *ecs.World, _ float64) {
	if s.done {
		return
	}
	for cx := 0; cx < WorldExtent; cx++ {
		for cz := 0; cz < WorldExtent; cz++ {
			id := w.CreateEntity()
			chunk := &component.Chunk{CX: cx, CZ: cz}
			// Flat ground: solid up to half height.
			for x := 0; x < component.ChunkSize; x++ {
				for z := 0; z < component.ChunkSize; z++ {
					for y := 0; y < component.ChunkSize/2; y++ {
						chunk.SetBlock(x, y, z, 1)
					}
				}
			}
			s.stores.Chunks.Set(id, chunk)
		}
	}
	s.done = true
}
