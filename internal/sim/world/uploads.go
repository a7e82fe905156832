package world

import (
	"errors"
	"fmt"

	"voxelstream.ai/internal/render"
	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// ProcessMeshUploads drains every completed job and uploads every chunk whose
// mesh is waiting. Must run on the consumer goroutine.
//
// Upload failures are joined into the returned error; the affected chunks
// stay MeshAvailable and are retried on the next call.
//
// Every applied mesh may close seams of its neighbors, so remesh jobs are
// scheduled for chunks that failed open toward a chunk generated since.
func (w *World) ProcessMeshUploads() error {
	touched := map[store.ChunkCoord]struct{}{}
	for _, md := range w.uploads.drain() {
		c := w.Chunk(md.Coord)
		if md.Remesh {
			if c == nil || c.ticket != md.Ticket {
				w.totals.Discarded++
				continue
			}
			c.remeshing = false
			if md.Err != nil {
				w.logger.Printf("remesh chunk=%s: %v", md.Coord, md.Err)
				w.totals.Failed++
				continue
			}
			w.applyMesh(c, md.Mesh)
			touched[c.coord] = struct{}{}
			continue
		}

		w.loads.done(md.Coord, md.Ticket)
		if c == nil || c.ticket != md.Ticket {
			w.totals.Discarded++
			continue
		}
		if md.Err != nil {
			w.logger.Printf("drop chunk=%s: %v", md.Coord, md.Err)
			w.remove(c)
			w.totals.Failed++
			continue
		}
		if md.FromCache {
			w.totals.CacheHits++
		}
		if !c.Generated() {
			g := md.Grid
			c.grid.CompareAndSwap(nil, &g)
		}
		w.applyMesh(c, md.Mesh)
		touched[c.coord] = struct{}{}
	}
	if len(touched) > 0 {
		w.scheduleRemeshes(touched)
	}

	var errs []error
	for _, coord := range sortedKeys(w.awaiting) {
		c := w.awaiting[coord]
		if err := w.upload(c); err != nil {
			w.totals.UploadErrors++
			errs = append(errs, fmt.Errorf("upload chunk %s: %w", coord, err))
			continue
		}
		delete(w.awaiting, coord)
		w.totals.Uploaded++
	}
	return errors.Join(errs...)
}

func (w *World) applyMesh(c *Chunk, m mesh.Mesh) {
	c.mesh = &m
	c.open = m.Open
	c.setState(MeshAvailable)
	w.awaiting[c.coord] = c
}

func (w *World) upload(c *Chunk) error {
	m := c.mesh
	if m == nil || len(m.Indices) == 0 {
		c.buffers.Release()
		c.buffers = nil
		c.mesh = nil
		c.setState(Uploaded)
		return nil
	}
	b, err := render.Acquire(w.renderer, c.coord, m.Vertices, m.Indices)
	if err != nil {
		return err
	}
	c.buffers.Release()
	c.buffers = b
	c.mesh = nil
	c.setState(Uploaded)
	return nil
}
