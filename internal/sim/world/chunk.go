package world

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/render"
	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

type ChunkState int32

const (
	NotReady ChunkState = iota
	MeshAvailable
	Uploaded
)

func (s ChunkState) String() string {
	switch s {
	case NotReady:
		return "NOT_READY"
	case MeshAvailable:
		return "MESH_AVAILABLE"
	case Uploaded:
		return "UPLOADED"
	default:
		return "UNKNOWN"
	}
}

// Chunk is one resident column of the world.
//
// The grid is published once by the chunk's own generation job and is
// read-only afterwards, so any goroutine may read it. Everything else is
// owned by the consumer goroutine.
type Chunk struct {
	coord  store.ChunkCoord
	ticket uint64
	origin mgl32.Vec3

	grid  atomic.Pointer[store.Grid]
	state atomic.Int32

	mesh    *mesh.Mesh
	buffers *render.Buffers

	// Sides of the current mesh that failed open, and whether a remesh job
	// for this admission is outstanding.
	open      mesh.Sides
	remeshing bool
}

func newChunk(coord store.ChunkCoord, ticket uint64) *Chunk {
	return &Chunk{coord: coord, ticket: ticket, origin: coord.Origin()}
}

func (c *Chunk) Coord() store.ChunkCoord { return c.coord }
func (c *Chunk) Origin() mgl32.Vec3      { return c.origin }
func (c *Chunk) Ticket() uint64          { return c.ticket }
func (c *Chunk) State() ChunkState       { return ChunkState(c.state.Load()) }

func (c *Chunk) setState(s ChunkState) { c.state.Store(int32(s)) }

// Generated reports whether the voxel grid has been published.
func (c *Chunk) Generated() bool { return c.grid.Load() != nil }

// GetVoxel is Empty until the grid is published and outside the grid.
func (c *Chunk) GetVoxel(x, y, z int) store.Kind {
	g := c.grid.Load()
	if g == nil {
		return store.Empty
	}
	return g.Get(x, y, z)
}

// IndexCount is the index count of the uploaded mesh, 0 before upload.
func (c *Chunk) IndexCount() int { return c.buffers.IndexCount() }

func (c *Chunk) release() {
	c.buffers.Release()
	c.buffers = nil
	c.mesh = nil
}
