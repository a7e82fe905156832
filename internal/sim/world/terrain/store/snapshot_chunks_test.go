package store

import (
	"testing"

	snapv1 "voxelstream.ai/internal/persistence/snapshot"
)

func testGrid() *Grid {
	g := new(Grid)
	for z := 0; z < Depth; z++ {
		for x := 0; x < Width; x++ {
			top := (x + z) % 9
			for y := 0; y <= top; y++ {
				g.Set(x, y, z, Solid)
			}
		}
	}
	return g
}

func TestExportAndImportChunkRoundTrip(t *testing.T) {
	g := testGrid()
	rec := ExportChunk(ChunkCoord{X: 1, Z: -2}, g, "fp")
	if rec.CX != 1 || rec.CZ != -2 {
		t.Fatalf("unexpected coord: %d,%d", rec.CX, rec.CZ)
	}
	if len(rec.Runs) >= Volume {
		t.Fatalf("rle did not compress: %d bytes", len(rec.Runs))
	}

	got, err := ImportChunk(rec)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if got.Digest() != g.Digest() {
		t.Fatalf("digest mismatch after round trip")
	}
}

func TestImportChunkRejectsInvalidShape(t *testing.T) {
	_, err := ImportChunk(snapv1.ChunkV1{
		CX:     0,
		CZ:     0,
		Width:  Width,
		Height: 64,
		Depth:  Depth,
	})
	if err == nil {
		t.Fatalf("expected error for invalid chunk shape")
	}
}

func TestImportChunkRejectsUnknownKind(t *testing.T) {
	rec := ExportChunk(ChunkCoord{}, new(Grid), "fp")
	// A single run of kind 7 covering the grid.
	rec.Runs = []byte{7, 0x80, 0x80, 0x02}
	if _, err := ImportChunk(rec); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

type memRecorder struct {
	recs []ChunkRecord
}

func (m *memRecorder) RecordChunk(rec ChunkRecord) { m.recs = append(m.recs, rec) }

func TestDiskCache_SaveLoadAndFingerprint(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(dir, "fp-a")
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	rec := &memRecorder{}
	c.SetRecorder(rec)

	coord := ChunkCoord{X: 4, Z: -1}
	if _, ok, err := c.LoadGrid(coord); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	g := testGrid()
	if err := c.SaveGrid(coord, g); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	if len(rec.recs) != 1 || rec.recs[0].Coord != coord || rec.recs[0].Solid != g.SolidCount() {
		t.Fatalf("unexpected recorder calls: %+v", rec.recs)
	}

	got, ok, err := c.LoadGrid(coord)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Digest() != g.Digest() {
		t.Fatalf("cached grid differs from saved grid")
	}

	other, err := NewDiskCache(dir, "fp-b")
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if _, ok, err := other.LoadGrid(coord); ok || err != nil {
		t.Fatalf("expected fingerprint miss, got ok=%v err=%v", ok, err)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Saves != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestGridAccessAndSort(t *testing.T) {
	g := new(Grid)
	g.Set(-1, 0, 0, Solid)
	g.Set(0, Height, 0, Solid)
	if g.SolidCount() != 0 {
		t.Fatalf("out of bounds writes must be ignored")
	}
	g.Set(3, 40, 5, Solid)
	if g.Get(3, 40, 5) != Solid || g.Get(3, 41, 5) != Empty || g.Get(99, 0, 0) != Empty {
		t.Fatalf("unexpected Get results")
	}
	if top := g.ColumnTop(3, 5); top != 40 {
		t.Fatalf("ColumnTop=%d want 40", top)
	}
	if top := g.ColumnTop(0, 0); top != -1 {
		t.Fatalf("ColumnTop=%d want -1", top)
	}

	coords := []ChunkCoord{{1, 0}, {-1, 2}, {-1, -1}, {0, 0}}
	SortCoords(coords)
	want := []ChunkCoord{{-1, -1}, {-1, 2}, {0, 0}, {1, 0}}
	for i := range want {
		if coords[i] != want[i] {
			t.Fatalf("SortCoords=%v want %v", coords, want)
		}
	}

	o := ChunkCoord{X: 2, Z: -1}.Origin()
	if o.X() != 30 || o.Y() != 0 || o.Z() != -15 {
		t.Fatalf("Origin=%v want (30,0,-15)", o)
	}
	wx, wz := ChunkCoord{X: 1, Z: 0}.WorldColumn(0, 3)
	ex, ez := ChunkCoord{X: 0, Z: 0}.WorldColumn(Width-1, 3)
	if wx != ex || wz != ez {
		t.Fatalf("shared edge columns differ: (%d,%d) vs (%d,%d)", wx, wz, ex, ez)
	}
}
