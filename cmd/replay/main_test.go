package main

import (
	"testing"

	persistlog "voxelstream.ai/internal/persistence/log"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/gen"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

func TestSummarize_TotalsAndGaps(t *testing.T) {
	dataDir := t.TempDir()
	l := persistlog.NewTickLogger(dataDir)
	for _, f := range []uint64{1, 2, 3, 5, 6} {
		e := world.TickLogEntry{
			Frame:    f,
			Resident: int(f),
			Delta:    world.Counters{Uploaded: 1, Evicted: f % 2},
			Digest:   "d",
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := persistlog.ListTickFiles(dataDir)
	if err != nil || len(files) == 0 {
		t.Fatalf("ListTickFiles: files=%v err=%v", files, err)
	}

	var seen int
	s, err := summarize(files, 0, 0, func(world.TickLogEntry) { seen++ })
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Frames != 5 || seen != 5 || s.First != 1 || s.Last != 6 {
		t.Fatalf("unexpected summary: %+v seen=%d", s, seen)
	}
	if s.Gaps != 1 {
		t.Fatalf("gaps=%d want 1", s.Gaps)
	}
	if s.MaxResident != 6 || s.Totals.Uploaded != 5 || s.Totals.Evicted != 3 {
		t.Fatalf("unexpected totals: %+v", s)
	}

	s, err = summarize(files, 2, 3, nil)
	if err != nil {
		t.Fatalf("summarize range: %v", err)
	}
	if s.Frames != 2 || s.First != 2 || s.Last != 3 || s.Gaps != 0 {
		t.Fatalf("unexpected ranged summary: %+v", s)
	}
}

func TestVerifyChunks(t *testing.T) {
	cfg := gen.DefaultNoiseConfig()
	g, err := gen.FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	dir := t.TempDir()
	cache, err := store.NewDiskCache(dir, cfg.Fingerprint())
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}

	good := store.ChunkCoord{X: 0, Z: 0}
	bad := store.ChunkCoord{X: 1, Z: -1}
	if err := cache.SaveGrid(good, g.Generate(good)); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	tampered := g.Generate(bad)
	if tampered.Get(3, 0, 3) == store.Solid {
		tampered.Set(3, 0, 3, store.Empty)
	} else {
		tampered.Set(3, 0, 3, store.Solid)
	}
	if err := cache.SaveGrid(bad, tampered); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}

	other, err := store.NewDiskCache(dir, "other-generator")
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	stale := store.ChunkCoord{X: 5, Z: 5}
	if err := other.SaveGrid(stale, g.Generate(stale)); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}

	res, err := verifyChunks(dir, g, cfg.Fingerprint())
	if err != nil {
		t.Fatalf("verifyChunks: %v", err)
	}
	if res.Checked != 2 || res.Stale != 1 {
		t.Fatalf("checked=%d stale=%d want 2,1", res.Checked, res.Stale)
	}
	if len(res.Mismatched) != 1 || res.Mismatched[0] != bad {
		t.Fatalf("mismatched=%v want [%v]", res.Mismatched, bad)
	}
}
