package render

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// DrawCall is one recorded Draw.
type DrawCall struct {
	Handle     Handle
	Offset     mgl32.Vec3
	IndexCount int
}

type liveBuffer struct {
	coord    store.ChunkCoord
	vertices []mesh.PackedVertex
	indices  []uint32
}

// Recorder is an in-memory Renderer. It keeps live buffers and the draw
// calls of the current frame, and can be told to fail allocations.
type Recorder struct {
	mu       sync.Mutex
	next     Handle
	live     map[Handle]liveBuffer
	draws    []DrawCall
	failNext int

	Created   int
	Destroyed int
}

func NewRecorder() *Recorder {
	return &Recorder{live: map[Handle]liveBuffer{}}
}

// FailNext makes the next n allocations return ErrBufferAlloc.
func (r *Recorder) FailNext(n int) {
	r.mu.Lock()
	r.failNext = n
	r.mu.Unlock()
}

func (r *Recorder) CreateOrReplaceMeshBuffers(coord store.ChunkCoord, vertices []mesh.PackedVertex, indices []uint32) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return 0, fmt.Errorf("chunk %s: %w", coord, ErrBufferAlloc)
	}
	r.next++
	r.live[r.next] = liveBuffer{
		coord:    coord,
		vertices: append([]mesh.PackedVertex(nil), vertices...),
		indices:  append([]uint32(nil), indices...),
	}
	r.Created++
	return r.next, nil
}

func (r *Recorder) DestroyMeshBuffers(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[h]; !ok {
		return
	}
	delete(r.live, h)
	r.Destroyed++
}

func (r *Recorder) Draw(h Handle, offset mgl32.Vec3, indexCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws = append(r.draws, DrawCall{Handle: h, Offset: offset, IndexCount: indexCount})
}

// Live returns the number of buffers created and not yet destroyed.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LiveCoords lists the chunk of every live buffer.
func (r *Recorder) LiveCoords() []store.ChunkCoord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.ChunkCoord, 0, len(r.live))
	for _, b := range r.live {
		out = append(out, b.coord)
	}
	store.SortCoords(out)
	return out
}

// LiveMesh returns a copy of the live buffers uploaded for coord.
func (r *Recorder) LiveMesh(coord store.ChunkCoord) (mesh.Mesh, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.live {
		if b.coord == coord {
			return mesh.Mesh{Vertices: b.vertices, Indices: b.indices}, true
		}
	}
	return mesh.Mesh{}, false
}

// TakeDraws returns the draw calls since the last call and resets the list.
func (r *Recorder) TakeDraws() []DrawCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.draws
	r.draws = nil
	return d
}
