package store

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Chunk dimensions. Grid indexing, vertex packing (10 bits per axis) and the
// one-column overlap between neighbors all depend on these staying fixed.
const (
	Width  = 16
	Depth  = 16
	Height = 128
	Volume = Width * Height * Depth
)

type Kind uint8

const (
	Empty Kind = iota
	Solid
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "EMPTY"
	case Solid:
		return "SOLID"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Grid is one chunk's voxels, x fastest, then y, then z.
type Grid [Volume]Kind

type ChunkCoord struct {
	X int
	Z int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Origin is the chunk's world-space origin. Neighbors share one column of
// padding, so the stride is Width-1 / Depth-1 rather than Width / Depth.
func (c ChunkCoord) Origin() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X * (Width - 1)), 0, float32(c.Z * (Depth - 1))}
}

// WorldColumn maps a local column to its world column.
func (c ChunkCoord) WorldColumn(lx, lz int) (wx, wz int) {
	return c.X*(Width-1) + lx, c.Z*(Depth-1) + lz
}

func (c ChunkCoord) West() ChunkCoord  { return ChunkCoord{X: c.X - 1, Z: c.Z} }
func (c ChunkCoord) East() ChunkCoord  { return ChunkCoord{X: c.X + 1, Z: c.Z} }
func (c ChunkCoord) North() ChunkCoord { return ChunkCoord{X: c.X, Z: c.Z - 1} }
func (c ChunkCoord) South() ChunkCoord { return ChunkCoord{X: c.X, Z: c.Z + 1} }
