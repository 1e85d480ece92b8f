package system

import (
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/sched"
)

// VoxelMeshingSystem rebuilds meshes for dirty chunks. It only counts
// exposed faces; real vertex data belongs to the graphics backend.
type VoxelMeshingSystem struct {
	stores *component.Stores
}

func NewVoxelMeshingSystem(stores *component.Stores) *VoxelMeshingSystem {
	return &VoxelMeshingSystem{stores: stores}
}

func (s *VoxelMeshingSystem) Metadata() sched.Metadata {
	return sched.Metadata{
		Name:     "VoxelMeshing",
		Stage:    sched.StagePostUpdate,
		Reads:    s.stores.Chunks.Mask(),
		Writes:   s.stores.Meshes.Mask(),
		Priority: 10,
		Parallel: true,
	}
}

func (s *VoxelMeshingSystem) Run(_ *ecs.World, _ float64) {
	s.stores.Chunks.Each(func(id ecs.EntityID, c *component.Chunk) {
		if !c.Dirty {
			return
		}
		faces := exposedFaces(c)
		s.stores.Meshes.Set(id, &component.Mesh{Vertices: faces * 4})
		c.Dirty = false
	})
}

func exposedFaces(c *component.Chunk) int {
	faces := 0
	n := component.ChunkSize
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				if c.Block(x, y, z) == 0 {
					continue
				}
				if x == 0 || c.Block(x-1, y, z) == 0 {
					faces++
				}
				if x == n-1 || c.Block(x+1, y, z) == 0 {
					faces++
				}
				if y == 0 || c.Block(x, y-1, z) == 0 {
					faces++
				}
				if y == n-1 || c.Block(x, y+1, z) == 0 {
					faces++
				}
				if z == 0 || c.Block(x, y, z-1) == 0 {
					faces++
				}
				if z == n-1 || c.Block(x, y, z+1) == 0 {
					faces++
				}
			}
		}
	}
	return faces
}
