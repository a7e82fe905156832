package store

import (
	"crypto/sha256"
	"sort"
)

func index(x, y, z int) int {
	return x + Width*(y+Height*z)
}

func InBounds(x, y, z int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height && z >= 0 && z < Depth
}

// Get returns Empty outside the grid.
func (g *Grid) Get(x, y, z int) Kind {
	if !InBounds(x, y, z) {
		return Empty
	}
	return g[index(x, y, z)]
}

func (g *Grid) Set(x, y, z int, k Kind) {
	if !InBounds(x, y, z) {
		return
	}
	g[index(x, y, z)] = k
}

func (g *Grid) SolidCount() int {
	n := 0
	for _, k := range g {
		if k == Solid {
			n++
		}
	}
	return n
}

// ColumnTop returns the highest Solid y in column (x,z), or -1 if the column is empty.
func (g *Grid) ColumnTop(x, z int) int {
	for y := Height - 1; y >= 0; y-- {
		if g.Get(x, y, z) == Solid {
			return y
		}
	}
	return -1
}

func (g *Grid) Digest() [32]byte {
	b := make([]byte, Volume)
	for i, k := range g {
		b[i] = byte(k)
	}
	return sha256.Sum256(b)
}

// SortCoords orders coordinates by X then Z.
func SortCoords(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
}
