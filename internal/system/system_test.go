package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voksel/engine/internal/component"
	"github.com/voksel/engine/internal/core/ecs"
	"github.com/voksel/engine/internal/core/event"
)

type fakeTarget struct {
	uploads int
	draws   int
}

func (f *fakeTarget) UploadMesh(int) { f.uploads++ }
func (f *fakeTarget) DrawMesh(int)   { f.draws++ }

func newTestWorld(t *testing.T) (*ecs.World, *component.Stores) {
	t.Helper()
	w := ecs.NewWorld()
	stores, err := component.NewStores(w.Registry())
	require.NoError(t, err)
	return w, stores
}

func TestMovementIntegratesVelocity(t *testing.T) {
	w, stores := newTestWorld(t)
	e := w.CreateEntity()
	stores.Transforms.Set(e, &component.Transform{X: 1})
	stores.Velocities.Set(e, &component.Velocity{DX: 2, DY: -1})

	s := NewMovementSystem(stores)
	s.Run(w, 0.5)

	tr, _ := stores.Transforms.Get(e)
	assert.InDelta(t, 2.0, tr.X, 1e-9)
	assert.InDelta(t, -0.5, tr.Y, 1e-9)
}

func TestMovementMasksMatchAccess(t *testing.T) {
	_, stores := newTestWorld(t)
	meta := NewMovementSystem(stores).Metadata()
	assert.True(t, meta.Reads.Has(stores.Velocities.ID()))
	assert.True(t, meta.Writes.Has(stores.Transforms.ID()))
	assert.False(t, meta.Writes.Has(stores.Velocities.ID()))
}

func TestVoxelBootstrapSeedsOnce(t *testing.T) {
	w, stores := newTestWorld(t)
	s := NewVoxelBootstrapSystem(stores)
	s.Run(w, 0)
	seeded := stores.Chunks.Len()
	assert.Equal(t, WorldExtent*WorldExtent, seeded)

	s.Run(w, 0)
	assert.Equal(t, seeded, stores.Chunks.Len(), "bootstrap must be idempotent")
}

func TestMeshingPipeline(t *testing.T) {
	w, stores := newTestWorld(t)
	boot := NewVoxelBootstrapSystem(stores)
	mesh := NewVoxelMeshingSystem(stores)
	boot.Run(w, 0)
	mesh.Run(w, 0)

	assert.Equal(t, stores.Chunks.Len(), stores.Meshes.Len())
	stores.Chunks.Each(func(_ ecs.EntityID, c *component.Chunk) {
		assert.False(t, c.Dirty, "meshing must clear the dirty flag")
	})
	stores.Meshes.Each(func(_ ecs.EntityID, m *component.Mesh) {
		assert.Positive(t, m.Vertices)
		assert.False(t, m.Uploaded)
	})

	// A clean chunk is not remeshed.
	before := meshVertexSum(stores)
	mesh.Run(w, 0)
	assert.Equal(t, before, meshVertexSum(stores))
}

func meshVertexSum(stores *component.Stores) int {
	sum := 0
	stores.Meshes.Each(func(_ ecs.EntityID, m *component.Mesh) { sum += m.Vertices })
	return sum
}

func TestUploadThenRender(t *testing.T) {
	w, stores := newTestWorld(t)
	target := &fakeTarget{}
	NewVoxelBootstrapSystem(stores).Run(w, 0)
	NewVoxelMeshingSystem(stores).Run(w, 0)

	upload := NewMeshUploadSystem(stores, target)
	render := NewVoxelRenderSystem(stores, target)

	render.Run(w, 0)
	assert.Zero(t, target.draws, "nothing drawn before upload")

	upload.Run(w, 0)
	assert.Equal(t, stores.Meshes.Len(), target.uploads)

	upload.Run(w, 0)
	assert.Equal(t, stores.Meshes.Len(), target.uploads, "upload happens once per mesh")

	render.Run(w, 0)
	assert.Equal(t, stores.Meshes.Len(), target.draws)
}

func TestCameraControllerConsumesInput(t *testing.T) {
	w, stores := newTestWorld(t)
	bus := event.NewBus()
	cam := w.CreateEntity()
	stores.Transforms.Set(cam, &component.Transform{})
	stores.Cameras.Set(cam, &component.Camera{})

	s := NewCameraControllerSystem(stores, bus)
	event.Emit(bus, event.KeyPressed{Key: KeyW})
	bus.Poll()
	s.Run(w, 1)

	tr, _ := stores.Transforms.Get(cam)
	assert.NotZero(t, tr.Z, "holding W must move the camera")

	event.Emit(bus, event.KeyReleased{Key: KeyW})
	bus.Poll()
	z := tr.Z
	s.Run(w, 1)
	assert.Equal(t, z, tr.Z, "released key stops movement")
}
