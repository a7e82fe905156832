package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	snapv1 "voxelstream.ai/internal/persistence/snapshot"
)

// ChunkRecord describes one saved grid; it feeds secondary indexes.
type ChunkRecord struct {
	Coord       ChunkCoord
	Path        string
	Digest      string
	Solid       int
	Fingerprint string
}

type ChunkRecorder interface {
	RecordChunk(rec ChunkRecord)
}

// Recorders fans one record out to several recorders.
type Recorders []ChunkRecorder

func (rs Recorders) RecordChunk(rec ChunkRecord) {
	for _, r := range rs {
		r.RecordChunk(rec)
	}
}

// DiskCache keeps generated grids on disk, one zstd record per chunk.
// Records written under a different generator fingerprint are treated as misses.
// Safe for concurrent use by worker goroutines: every coordinate has its own
// file and at most one job per coordinate runs at a time.
type DiskCache struct {
	dir         string
	fingerprint string
	recorder    ChunkRecorder

	hits   atomic.Uint64
	misses atomic.Uint64
	saves  atomic.Uint64
}

func NewDiskCache(dir, fingerprint string) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty cache dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir, fingerprint: fingerprint}, nil
}

func (c *DiskCache) SetRecorder(r ChunkRecorder) { c.recorder = r }

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) LoadGrid(coord ChunkCoord) (*Grid, bool, error) {
	path := snapv1.ChunkPath(c.dir, coord.X, coord.Z)
	rec, err := snapv1.ReadChunk(path)
	if err != nil {
		c.misses.Add(1)
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if rec.Fingerprint != c.fingerprint || rec.CX != coord.X || rec.CZ != coord.Z {
		c.misses.Add(1)
		return nil, false, nil
	}
	g, err := ImportChunk(rec)
	if err != nil {
		c.misses.Add(1)
		return nil, false, err
	}
	c.hits.Add(1)
	return g, true, nil
}

func (c *DiskCache) SaveGrid(coord ChunkCoord, g *Grid) error {
	path := snapv1.ChunkPath(c.dir, coord.X, coord.Z)
	if err := snapv1.WriteChunk(path, ExportChunk(coord, g, c.fingerprint)); err != nil {
		return fmt.Errorf("save chunk %s: %w", coord, err)
	}
	c.saves.Add(1)
	if c.recorder != nil {
		sum := g.Digest()
		c.recorder.RecordChunk(ChunkRecord{
			Coord:       coord,
			Path:        path,
			Digest:      hex.EncodeToString(sum[:]),
			Solid:       g.SolidCount(),
			Fingerprint: c.fingerprint,
		})
	}
	return nil
}

type CacheStats struct {
	Hits   uint64
	Misses uint64
	Saves  uint64
}

func (c *DiskCache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Saves:  c.saves.Load(),
	}
}
