// Package render defines the backend contract the streaming world uploads
// chunk meshes through, plus scoped buffer ownership.
package render

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// ErrBufferAlloc is returned by backends that cannot allocate buffers.
var ErrBufferAlloc = errors.New("mesh buffer allocation failed")

// Handle identifies one uploaded vertex/index buffer pair. Zero is never valid.
type Handle uint64

type Renderer interface {
	CreateOrReplaceMeshBuffers(coord store.ChunkCoord, vertices []mesh.PackedVertex, indices []uint32) (Handle, error)
	DestroyMeshBuffers(h Handle)
	Draw(h Handle, offset mgl32.Vec3, indexCount int)
}

// Buffers owns one chunk's renderer resources. Release is idempotent.
type Buffers struct {
	r          Renderer
	handle     Handle
	indexCount int
	once       sync.Once
}

func Acquire(r Renderer, coord store.ChunkCoord, vertices []mesh.PackedVertex, indices []uint32) (*Buffers, error) {
	h, err := r.CreateOrReplaceMeshBuffers(coord, vertices, indices)
	if err != nil {
		return nil, err
	}
	return &Buffers{r: r, handle: h, indexCount: len(indices)}, nil
}

func (b *Buffers) Handle() Handle {
	if b == nil {
		return 0
	}
	return b.handle
}

func (b *Buffers) IndexCount() int {
	if b == nil {
		return 0
	}
	return b.indexCount
}

func (b *Buffers) Draw(offset mgl32.Vec3) {
	if b == nil || b.indexCount == 0 {
		return
	}
	b.r.Draw(b.handle, offset, b.indexCount)
}

func (b *Buffers) Release() {
	if b == nil {
		return
	}
	b.once.Do(func() {
		b.r.DestroyMeshBuffers(b.handle)
	})
}
