package store

import (
	"fmt"

	snapv1 "voxelstream.ai/internal/persistence/snapshot"
	"voxelstream.ai/internal/sim/encoding"
)

// ExportChunk converts a generated grid into its persisted record.
func ExportChunk(coord ChunkCoord, g *Grid, fingerprint string) snapv1.ChunkV1 {
	return snapv1.ChunkV1{
		CX:          coord.X,
		CZ:          coord.Z,
		Width:       Width,
		Height:      Height,
		Depth:       Depth,
		Fingerprint: fingerprint,
		Runs:        encoding.EncodeRLE(g[:]),
	}
}

// ImportChunk rebuilds a grid from a persisted record.
func ImportChunk(rec snapv1.ChunkV1) (*Grid, error) {
	if rec.Width != Width || rec.Height != Height || rec.Depth != Depth {
		return nil, fmt.Errorf("chunk shape mismatch: got %dx%dx%d want %dx%dx%d",
			rec.Width, rec.Height, rec.Depth, Width, Height, Depth)
	}
	g := new(Grid)
	if err := encoding.DecodeRLE(rec.Runs, g[:]); err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", rec.CX, rec.CZ, err)
	}
	for i, k := range g {
		if k != Empty && k != Solid {
			return nil, fmt.Errorf("chunk %d,%d: unknown voxel kind %d at %d", rec.CX, rec.CZ, k, i)
		}
	}
	return g, nil
}
