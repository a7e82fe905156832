package mesh

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/sim/world/terrain/gen"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

type mapLookup map[store.ChunkCoord]*store.Grid

func (m mapLookup) NeighborGrid(c store.ChunkCoord) *store.Grid { return m[c] }

// classify matches a decoded normal to a face. Zero components decode to
// 1/1023, so the comparison is absolute, not relative.
func classify(n mgl32.Vec3) (Face, bool) {
	for f := Left; f <= Front; f++ {
		if n.Sub(f.Normal()).Len() < 0.01 {
			return f, true
		}
	}
	return Left, false
}

func faceOf(t *testing.T, m Mesh, quad int) Face {
	t.Helper()
	n := UnpackNormal(m.Vertices[quad*4].Normal)
	f, ok := classify(n)
	if !ok {
		t.Fatalf("quad %d: normal %v matches no face", quad, n)
	}
	return f
}

func TestClassify_PackedFaceNormals(t *testing.T) {
	for f := Left; f <= Front; f++ {
		n := UnpackNormal(PackNormal(f.Normal()))
		for i := 0; i < 3; i++ {
			if d := math.Abs(float64(n[i] - f.Normal()[i])); d > 1.0/1023+1e-6 {
				t.Fatalf("%s axis %d: decoded %v off by %v", f, i, n, d)
			}
		}
		got, ok := classify(n)
		if !ok || got != f {
			t.Fatalf("%s: classified as %s ok=%v (normal %v)", f, got, ok, n)
		}
	}
}

func countFaces(t *testing.T, m Mesh) map[Face]int {
	t.Helper()
	out := map[Face]int{}
	for q := 0; q < m.FaceCount(); q++ {
		out[faceOf(t, m, q)]++
	}
	return out
}

func TestBuild_SingleVoxelSixFaces(t *testing.T) {
	var g store.Grid
	g.Set(5, 5, 5, store.Solid)
	m := Build(store.ChunkCoord{}, &g, nil)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if m.FaceCount() != 6 || len(m.Vertices) != 24 || len(m.Indices) != 36 {
		t.Fatalf("faces=%d vertices=%d indices=%d want 6/24/36", m.FaceCount(), len(m.Vertices), len(m.Indices))
	}
	for f, n := range countFaces(t, m) {
		if n != 1 {
			t.Fatalf("face %s count=%d want 1", f, n)
		}
	}
}

func TestBuild_IndexOffsetsAdvanceByFour(t *testing.T) {
	var g store.Grid
	g.Set(1, 1, 1, store.Solid)
	g.Set(3, 1, 1, store.Solid)
	m := Build(store.ChunkCoord{}, &g, nil)
	for q := 0; q < m.FaceCount(); q++ {
		o := uint32(q * 4)
		want := []uint32{o, o + 1, o + 2, o, o + 2, o + 3}
		for i, w := range want {
			if got := m.Indices[q*6+i]; got != w {
				t.Fatalf("quad %d index %d got %d want %d", q, i, got, w)
			}
		}
	}
}

func TestBuild_AdjacentVoxelsShareNoFace(t *testing.T) {
	var g store.Grid
	g.Set(4, 4, 4, store.Solid)
	g.Set(5, 4, 4, store.Solid)
	m := Build(store.ChunkCoord{}, &g, nil)
	if m.FaceCount() != 10 {
		t.Fatalf("faces=%d want 10", m.FaceCount())
	}
	c := countFaces(t, m)
	if c[Left] != 1 || c[Right] != 1 {
		t.Fatalf("left=%d right=%d want 1/1", c[Left], c[Right])
	}
}

func TestBuild_WindingClockwiseFromOutside(t *testing.T) {
	var g store.Grid
	g.Set(2, 2, 2, store.Solid)
	m := Build(store.ChunkCoord{}, &g, nil)
	pos := func(v PackedVertex) mgl32.Vec3 {
		x, y, z := UnpackPosition(v.Position)
		return mgl32.Vec3{float32(x), float32(y), float32(z)}
	}
	for q := 0; q < m.FaceCount(); q++ {
		f := faceOf(t, m, q)
		for tri := 0; tri < 2; tri++ {
			i := m.Indices[q*6+tri*3:]
			v0, v1, v2 := pos(m.Vertices[i[0]]), pos(m.Vertices[i[1]]), pos(m.Vertices[i[2]])
			if d := v1.Sub(v0).Cross(v2.Sub(v0)).Dot(f.Normal()); d >= 0 {
				t.Fatalf("face %s triangle %d: not clockwise from outside (dot=%v)", f, tri, d)
			}
		}
	}
}

func TestBuild_VerticalExtremesExposed(t *testing.T) {
	var g store.Grid
	for y := 0; y < store.Height; y++ {
		g.Set(7, y, 7, store.Solid)
	}
	m := Build(store.ChunkCoord{}, &g, nil)
	c := countFaces(t, m)
	if c[Top] != 1 || c[Bottom] != 1 {
		t.Fatalf("top=%d bottom=%d want 1/1", c[Top], c[Bottom])
	}
	if c[Left] != store.Height {
		t.Fatalf("left=%d want %d", c[Left], store.Height)
	}
}

func TestBuild_BoundaryFailOpenAndNeighbor(t *testing.T) {
	coord := store.ChunkCoord{X: 2, Z: -1}
	var g store.Grid
	g.Set(0, 3, 4, store.Solid)
	g.Set(store.Width-1, 3, 4, store.Solid)
	g.Set(6, 3, 0, store.Solid)
	g.Set(6, 3, store.Depth-1, store.Solid)

	alone := Build(coord, &g, nil)
	open := countFaces(t, alone)
	if open[Left] != 4 || open[Right] != 4 || open[Back] != 4 || open[Front] != 4 {
		t.Fatalf("fail-open counts=%v", open)
	}
	if all := SideWest | SideEast | SideNorth | SideSouth; alone.Open != all {
		t.Fatalf("open sides=%04b want %04b", alone.Open, all)
	}

	var west, east, north, south store.Grid
	west.Set(store.Width-1, 3, 4, store.Solid)
	east.Set(0, 3, 4, store.Solid)
	north.Set(6, 3, store.Depth-1, store.Solid)
	south.Set(6, 3, 0, store.Solid)
	nb := mapLookup{
		coord.West():  &west,
		coord.East():  &east,
		coord.North(): &north,
		coord.South(): &south,
	}
	full := Build(coord, &g, nb)
	closed := countFaces(t, full)
	if closed[Left] != 3 || closed[Right] != 3 || closed[Back] != 3 || closed[Front] != 3 {
		t.Fatalf("neighbor counts=%v", closed)
	}
	if full.Open != 0 {
		t.Fatalf("open sides=%04b with every neighbor resident", full.Open)
	}

	// A resident but empty neighbor column still exposes the face.
	var empty store.Grid
	emptyNb := mapLookup{coord.West(): &empty}
	westOnly := Build(coord, &g, emptyNb)
	if got := countFaces(t, westOnly)[Left]; got != 4 {
		t.Fatalf("left against empty neighbor=%d want 4", got)
	}
	if westOnly.Open.Has(SideWest) || !westOnly.Open.Has(SideEast|SideNorth|SideSouth) {
		t.Fatalf("open sides=%04b want east|north|south", westOnly.Open)
	}
}

func testGenerator(t *testing.T) *gen.Generator {
	t.Helper()
	g, err := gen.FromConfig(gen.DefaultNoiseConfig())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return g
}

func seamFaces(t *testing.T, m Mesh, f Face, lx int) map[[2]int]bool {
	t.Helper()
	out := map[[2]int]bool{}
	for q := 0; q < m.FaceCount(); q++ {
		if faceOf(t, m, q) != f {
			continue
		}
		x, y, z := UnpackPosition(m.Vertices[q*4].Position)
		if x == lx {
			out[[2]int{y, z}] = true
		}
	}
	return out
}

func TestBuild_BoundarySymmetry(t *testing.T) {
	a := store.ChunkCoord{X: 0, Z: 0}
	b := a.East()
	var ga, gb store.Grid
	for z := 0; z < store.Depth; z++ {
		for y := 0; y < 8; y++ {
			if (y+z)%2 == 0 {
				ga.Set(store.Width-1, y, z, store.Solid)
			}
			if (y*3+z)%4 != 0 {
				gb.Set(0, y, z, store.Solid)
			}
		}
	}
	nb := mapLookup{a: &ga, b: &gb}

	// East faces of a sit on plane x=Width, west faces of b on plane x=0.
	east := seamFaces(t, Build(a, &ga, nb), Right, store.Width)
	west := seamFaces(t, Build(b, &gb, nb), Left, 0)
	for z := 0; z < store.Depth; z++ {
		for y := 0; y < 8; y++ {
			sa := ga.Get(store.Width-1, y, z) == store.Solid
			sb := gb.Get(0, y, z) == store.Solid
			k := [2]int{y, z}
			if east[k] != (sa && !sb) {
				t.Fatalf("y=%d z=%d: east exposed=%v solidA=%v solidB=%v", y, z, east[k], sa, sb)
			}
			if west[k] != (sb && !sa) {
				t.Fatalf("y=%d z=%d: west exposed=%v solidA=%v solidB=%v", y, z, west[k], sa, sb)
			}
		}
	}
}

func TestBuild_GeneratedSeamClosed(t *testing.T) {
	g := testGenerator(t)
	a := store.ChunkCoord{X: 3, Z: -2}
	b := a.East()
	ga, gb := g.Generate(a), g.Generate(b)
	nb := mapLookup{a: ga, b: gb}
	if n := len(seamFaces(t, Build(a, ga, nb), Right, store.Width)); n != 0 {
		t.Fatalf("east seam faces=%d want 0", n)
	}
	if n := len(seamFaces(t, Build(b, gb, nb), Left, 0)); n != 0 {
		t.Fatalf("west seam faces=%d want 0", n)
	}
}

func TestBuild_TopFacePerColumn(t *testing.T) {
	g := testGenerator(t)
	coord := store.ChunkCoord{X: 0, Z: 0}
	grid := g.Generate(coord)
	m := Build(coord, grid, nil)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	tops := map[[2]int]int{}
	for q := 0; q < m.FaceCount(); q++ {
		if faceOf(t, m, q) != Top {
			continue
		}
		x, y, z := UnpackPosition(m.Vertices[q*4].Position)
		if _, dup := tops[[2]int{x, z}]; dup {
			t.Fatalf("column (%d,%d) has more than one top face", x, z)
		}
		tops[[2]int{x, z}] = y
	}
	for z := 0; z < store.Depth; z++ {
		for x := 0; x < store.Width; x++ {
			want := grid.ColumnTop(x, z) + 1
			if got, ok := tops[[2]int{x, z}]; !ok || got != want {
				t.Fatalf("column (%d,%d) top face y=%d ok=%v want %d", x, z, got, ok, want)
			}
		}
	}
}

func TestPacking_RoundTrip(t *testing.T) {
	for _, p := range [][3]int{{0, 0, 0}, {16, 128, 16}, {7, 99, 3}, {1023, 0, 1023}} {
		x, y, z := UnpackPosition(PackPosition(p[0], p[1], p[2]))
		if x != p[0] || y != p[1] || z != p[2] {
			t.Fatalf("position %v round trip got (%d,%d,%d)", p, x, y, z)
		}
	}
	if PackPosition(1, 2, 3) != 3<<20|2<<10|1 {
		t.Fatalf("position layout got %#x", PackPosition(1, 2, 3))
	}

	tol := float32(1.0/1023 + 1e-6)
	for f := Left; f <= Front; f++ {
		n := f.Normal()
		got := UnpackNormal(PackNormal(n))
		for i := 0; i < 3; i++ {
			if d := float32(math.Abs(float64(got[i] - n[i]))); d > tol {
				t.Fatalf("face %s normal axis %d got %v want %v", f, i, got[i], n[i])
			}
		}
	}
	for _, uv := range faceUVs {
		if got := UnpackTexCoord(PackTexCoord(uv)); got != uv {
			t.Fatalf("texcoord %v round trip got %v", uv, got)
		}
	}
}

func TestAppendBytes_Sizes(t *testing.T) {
	var g store.Grid
	g.Set(0, 0, 0, store.Solid)
	m := Build(store.ChunkCoord{}, &g, nil)
	if b := AppendBytes(nil, m.Vertices); len(b) != len(m.Vertices)*VertexSize {
		t.Fatalf("vertex bytes=%d want %d", len(b), len(m.Vertices)*VertexSize)
	}
	if b := AppendIndexBytes(nil, m.Indices); len(b) != len(m.Indices)*4 {
		t.Fatalf("index bytes=%d want %d", len(b), len(m.Indices)*4)
	}
}

func TestMesh_ValidateRejectsBadIndex(t *testing.T) {
	m := Mesh{Vertices: make([]PackedVertex, 4), Indices: []uint32{0, 1, 2, 0, 2, 4}}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected out of range error")
	}
	m.Indices = m.Indices[:5]
	if err := m.Validate(); err == nil {
		t.Fatalf("expected count error")
	}
}
