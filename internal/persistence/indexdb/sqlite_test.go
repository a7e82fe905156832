package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelstream.ai/internal/sim/tuning"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Frame: 1}}

	_ = s.WriteTick(world.TickLogEntry{Frame: 2})
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 1}})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropChunkTotal != 1 {
		t.Fatalf("DropChunkTotal=%d want=1", st.DropChunkTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesRowsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	for f := uint64(1); f <= 3; f++ {
		_ = s.WriteTick(world.TickLogEntry{Frame: f, Resident: int(f), Digest: "d"})
	}
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 2, Z: -1}, Path: "b", Digest: "x", Solid: 9, Fingerprint: "fp"})
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: -1, Z: 4}, Path: "a", Digest: "y", Solid: 7, Fingerprint: "fp"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen to read what the writer committed.
	r, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	n, err := r.TickCount(ctx)
	if err != nil || n != 3 {
		t.Fatalf("ticks=%d err=%v want 3", n, err)
	}
	rows, err := r.ChunkRows(ctx)
	if err != nil {
		t.Fatalf("ChunkRows: %v", err)
	}
	if len(rows) != 2 || rows[0].CX != -1 || rows[1].CX != 2 || rows[1].Solid != 9 {
		t.Fatalf("rows=%+v", rows)
	}
	fp, err := r.Meta(ctx, "fingerprint")
	if err != nil || fp != tuning.Defaults().NoiseConfig().Fingerprint() {
		t.Fatalf("fingerprint=%q err=%v", fp, err)
	}
}

func waitRows(t *testing.T, s *SQLiteIndex, ticks, chunks int) []ChunkRow {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for {
		n, err := s.TickCount(ctx)
		if err != nil {
			t.Fatalf("TickCount: %v", err)
		}
		rows, err := s.ChunkRows(ctx)
		if err != nil {
			t.Fatalf("ChunkRows: %v", err)
		}
		if n == ticks && len(rows) == chunks {
			return rows
		}
		if time.Now().After(deadline) {
			t.Fatalf("ticks=%d chunks=%d want %d,%d before Close", n, len(rows), ticks, chunks)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSQLiteIndex_CommitsIdleBatch(t *testing.T) {
	s, err := openSQLite(filepath.Join(t.TempDir(), "index.sqlite"), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("openSQLite: %v", err)
	}
	defer s.Close()

	_ = s.WriteTick(world.TickLogEntry{Frame: 1, Digest: "d"})
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 3}, Path: "c", Digest: "z", Solid: 1, Fingerprint: "fp"})

	// Nothing else arrives; the batch must still become visible.
	rows := waitRows(t, s, 1, 1)
	if rows[0].CX != 3 || rows[0].Digest != "z" {
		t.Fatalf("rows=%+v", rows)
	}
}

func TestSQLiteIndex_RejectedRowKeepsBatch(t *testing.T) {
	s, err := openSQLite(filepath.Join(t.TempDir(), "index.sqlite"), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("openSQLite: %v", err)
	}
	defer s.Close()

	_ = s.WriteTick(world.TickLogEntry{Frame: 1, Digest: "d"})
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 1}, Path: "a", Digest: "x", Fingerprint: "fp"})
	// Empty digest violates the chunks CHECK constraint.
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 2}, Path: "b", Fingerprint: "fp"})
	s.RecordChunk(store.ChunkRecord{Coord: store.ChunkCoord{X: 3}, Path: "c", Digest: "y", Fingerprint: "fp"})
	_ = s.WriteTick(world.TickLogEntry{Frame: 2, Digest: "d"})

	rows := waitRows(t, s, 2, 2)
	if rows[0].CX != 1 || rows[1].CX != 3 {
		t.Fatalf("rows=%+v", rows)
	}
	if got := s.Stats().FailRowTotal; got != 1 {
		t.Fatalf("FailRowTotal=%d want=1", got)
	}
}
