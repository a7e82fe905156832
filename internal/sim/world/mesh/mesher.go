package mesh

import (
	"fmt"

	"voxelstream.ai/internal/sim/world/terrain/store"
)

// NeighborLookup gives the mesher read access to resident neighbor grids.
// It returns nil when the neighbor is not resident or its grid is not generated yet.
type NeighborLookup interface {
	NeighborGrid(coord store.ChunkCoord) *store.Grid
}

// NoNeighbors treats every horizontal boundary as open.
type NoNeighbors struct{}

func (NoNeighbors) NeighborGrid(store.ChunkCoord) *store.Grid { return nil }

// Sides is a set of horizontal chunk sides.
type Sides uint8

const (
	SideWest Sides = 1 << iota
	SideEast
	SideNorth
	SideSouth
)

// Has reports whether every side in o is in s.
func (s Sides) Has(o Sides) bool { return s&o == o }

type Mesh struct {
	Vertices []PackedVertex
	Indices  []uint32

	// Open holds the sides where boundary faces were emitted only because
	// the neighbor grid was missing. Remeshing once that neighbor is
	// generated closes them.
	Open Sides
}

func (m *Mesh) FaceCount() int { return len(m.Vertices) / 4 }

// Validate checks the quad/index invariants every renderer relies on.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%4 != 0 {
		return fmt.Errorf("vertex count %d is not a multiple of 4", len(m.Vertices))
	}
	if want := len(m.Vertices) / 4 * 6; len(m.Indices) != want {
		return fmt.Errorf("index count %d want %d", len(m.Indices), want)
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("index %d at %d out of range (%d vertices)", idx, i, len(m.Vertices))
		}
	}
	return nil
}

type mesher struct {
	coord store.ChunkCoord
	grid  *store.Grid
	nb    NeighborLookup

	// Fetched lazily, at most once per side.
	side    [4]*store.Grid
	fetched [4]bool

	out    Mesh
	offset uint32
}

// Build emits one quad per exposed face of every Solid voxel in grid.
func Build(coord store.ChunkCoord, grid *store.Grid, nb NeighborLookup) Mesh {
	if nb == nil {
		nb = NoNeighbors{}
	}
	m := &mesher{coord: coord, grid: grid, nb: nb}
	for z := 0; z < store.Depth; z++ {
		for y := 0; y < store.Height; y++ {
			for x := 0; x < store.Width; x++ {
				if grid.Get(x, y, z) != store.Solid {
					continue
				}
				for f := Left; f <= Front; f++ {
					if m.exposed(x, y, z, f) {
						m.addFace(x, y, z, f)
					}
				}
			}
		}
	}
	return m.out
}

const (
	sideWest = iota
	sideEast
	sideNorth
	sideSouth
)

func (m *mesher) neighbor(side int) *store.Grid {
	if !m.fetched[side] {
		var c store.ChunkCoord
		switch side {
		case sideWest:
			c = m.coord.West()
		case sideEast:
			c = m.coord.East()
		case sideNorth:
			c = m.coord.North()
		default:
			c = m.coord.South()
		}
		m.side[side] = m.nb.NeighborGrid(c)
		m.fetched[side] = true
	}
	return m.side[side]
}

// exposed reports whether face f of voxel (x,y,z) borders empty or unknown space.
func (m *mesher) exposed(x, y, z int, f Face) bool {
	d := faces[f].dir
	nx, ny, nz := x+d[0], y+d[1], z+d[2]

	if ny < 0 || ny >= store.Height {
		return true
	}

	// Horizontal boundary: mirrored column of the resident neighbor.
	var side int
	switch {
	case nx < 0:
		side, nx = sideWest, store.Width-1
	case nx >= store.Width:
		side, nx = sideEast, 0
	case nz < 0:
		side, nz = sideNorth, store.Depth-1
	case nz >= store.Depth:
		side, nz = sideSouth, 0
	default:
		return m.grid.Get(nx, ny, nz) == store.Empty
	}
	g := m.neighbor(side)
	if g == nil {
		m.out.Open |= 1 << side
		return true
	}
	return g.Get(nx, ny, nz) == store.Empty
}

func (m *mesher) addFace(x, y, z int, f Face) {
	def := faces[f]
	for i, c := range def.corners {
		m.out.Vertices = append(m.out.Vertices, NewVertex(x+c[0], y+c[1], z+c[2], def.normal, faceUVs[i]))
	}
	o := m.offset
	m.out.Indices = append(m.out.Indices, o, o+1, o+2, o, o+2, o+3)
	m.offset += 4
}
