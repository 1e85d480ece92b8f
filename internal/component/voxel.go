package component

// ChunkSize is the edge length of a cubic voxel chunk.
const ChunkSize = 16

// Chunk is a dense block volume at integer chunk coordinates. Dirty marks
// it for remeshing.
type Chunk struct {
	CX, CY, CZ int
	Blocks     [ChunkSize * ChunkSize * ChunkSize]uint8
	Dirty      bool
}

// Block returns the block id at local coordinates.
func (c *Chunk) Block(x, y, z int) uint8 {
	return c.Blocks[(y*ChunkSize+z)*ChunkSize+x]
}

// SetBlock writes a block id and marks the chunk dirty.
func (c *Chunk) SetBlock(x, y, z int, id uint8) {
	c.Blocks[(y*ChunkSize+z)*ChunkSize+x] = id
	c.Dirty = true
}

// Mesh is the CPU-side mesh produced from a chunk, pending GPU upload.
type Mesh struct {
	Vertices int
	Uploaded bool
}
