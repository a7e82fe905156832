package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/sim/world/logic/mathx"
	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// ViewerChunkAt maps a world-space position to the chunk coordinate the
// active set is centered on.
func ViewerChunkAt(pos mgl32.Vec3) store.ChunkCoord {
	return store.ChunkCoord{
		X: mathx.FloorToCell(pos.X(), store.Width),
		Z: mathx.FloorToCell(pos.Z(), store.Depth),
	}
}

// ActiveSet lists every coordinate within Chebyshev radius r of center,
// nearest ring first, X then Z within a ring.
func ActiveSet(center store.ChunkCoord, r int) []store.ChunkCoord {
	out := make([]store.ChunkCoord, 0, (2*r+1)*(2*r+1))
	for x := center.X - r; x <= center.X+r; x++ {
		for z := center.Z - r; z <= center.Z+r; z++ {
			out = append(out, store.ChunkCoord{X: x, Z: z})
		}
	}
	ring := func(c store.ChunkCoord) int { return mathx.Chebyshev(c.X, c.Z, center.X, center.Z) }
	sort.SliceStable(out, func(i, j int) bool { return ring(out[i]) < ring(out[j]) })
	return out
}

// UpdateChunks runs one streaming pass for a viewer at pos: admission,
// rate-limited dispatch and eviction.
func (w *World) UpdateChunks(fc FrameContext, pos mgl32.Vec3) {
	w.frame = fc
	w.center = ViewerChunkAt(pos)
	r := w.cfg.RenderDistance
	inRange := func(c store.ChunkCoord) bool {
		return mathx.Chebyshev(c.X, c.Z, w.center.X, w.center.Z) <= r
	}

	for _, c := range ActiveSet(w.center, r) {
		if w.HasChunk(c) {
			continue
		}
		if w.loads.enqueue(c) {
			w.totals.Admitted++
		}
	}
	w.totals.Pruned += uint64(w.loads.prune(inRange))

	w.dispatch(fc)

	for _, c := range w.residentChunks() {
		if !inRange(c.coord) {
			w.evict(c)
		}
	}
}

// dispatch hands at most one pending coordinate to the executor, subject to
// the admission rate limit.
func (w *World) dispatch(fc FrameContext) {
	if p, _ := w.loads.lens(); p == 0 {
		return
	}
	if !w.limiter.AllowN(fc.Now, 1) {
		return
	}
	ticket := w.nextTicket.Add(1)
	coord, ok := w.loads.popInFlight(ticket)
	if !ok {
		return
	}
	c := newChunk(coord, ticket)
	w.insert(c)
	if err := w.exec.Submit(func() { w.prepare(c) }); err != nil {
		w.logger.Printf("dispatch chunk=%s: %v", coord, err)
		w.remove(c)
		w.loads.done(coord, ticket)
		return
	}
	w.totals.Dispatched++
}

// prepare runs on a worker: load or generate the grid, publish it, mesh it.
// It always pushes exactly one MeshData.
func (w *World) prepare(c *Chunk) {
	start := time.Now()
	md := MeshData{Coord: c.coord, Ticket: c.ticket}
	defer func() {
		if r := recover(); r != nil {
			md.Err = fmt.Errorf("chunk %s: job panic: %v", c.coord, r)
		}
		md.Elapsed = time.Since(start)
		w.uploads.push(md)
	}()

	grid, fromCache := w.loadGrid(c.coord)
	md.FromCache = fromCache
	w.publish(c, grid)
	md.Mesh = mesh.Build(c.coord, grid, w)
	md.Grid = *grid
}

func (w *World) loadGrid(coord store.ChunkCoord) (*store.Grid, bool) {
	if w.cache != nil {
		g, ok, err := w.cache.LoadGrid(coord)
		if err != nil {
			w.logger.Printf("cache load chunk=%s: %v", coord, err)
		} else if ok {
			return g, true
		}
	}
	g := w.gen.Generate(coord)
	if w.cache != nil {
		if err := w.cache.SaveGrid(coord, g); err != nil {
			w.logger.Printf("cache save chunk=%s: %v", coord, err)
		}
	}
	return g, false
}

// remesh rebuilds c's mesh against whatever neighbors are generated now.
func (w *World) remesh(c *Chunk) {
	start := time.Now()
	md := MeshData{Coord: c.coord, Ticket: c.ticket, Remesh: true}
	defer func() {
		if r := recover(); r != nil {
			md.Err = fmt.Errorf("chunk %s: remesh panic: %v", c.coord, r)
		}
		md.Elapsed = time.Since(start)
		w.uploads.push(md)
	}()
	g := c.grid.Load()
	if g == nil {
		md.Err = fmt.Errorf("chunk %s: remesh before generation", c.coord)
		return
	}
	md.Mesh = mesh.Build(c.coord, g, w)
}

// scheduleRemeshes looks at every chunk in touched and its four neighbors,
// and remeshes those whose mesh failed open toward a neighbor that is now
// generated. At most one remesh per chunk is outstanding.
func (w *World) scheduleRemeshes(touched map[store.ChunkCoord]struct{}) {
	candidates := map[store.ChunkCoord]struct{}{}
	for c := range touched {
		candidates[c] = struct{}{}
		candidates[c.West()] = struct{}{}
		candidates[c.East()] = struct{}{}
		candidates[c.North()] = struct{}{}
		candidates[c.South()] = struct{}{}
	}
	coords := make([]store.ChunkCoord, 0, len(candidates))
	for c := range candidates {
		coords = append(coords, c)
	}
	store.SortCoords(coords)

	for _, coord := range coords {
		c := w.Chunk(coord)
		if c == nil || c.remeshing || c.open == 0 || c.State() == NotReady {
			continue
		}
		if !w.closable(c) {
			continue
		}
		c.remeshing = true
		if err := w.exec.Submit(func() { w.remesh(c) }); err != nil {
			w.logger.Printf("remesh chunk=%s: %v", coord, err)
			c.remeshing = false
			continue
		}
		w.totals.Remeshed++
	}
}

// closable reports whether a neighbor on one of c's open sides has a grid.
func (w *World) closable(c *Chunk) bool {
	sides := [...]struct {
		side  mesh.Sides
		coord store.ChunkCoord
	}{
		{mesh.SideWest, c.coord.West()},
		{mesh.SideEast, c.coord.East()},
		{mesh.SideNorth, c.coord.North()},
		{mesh.SideSouth, c.coord.South()},
	}
	for _, s := range sides {
		if c.open.Has(s.side) && w.NeighborGrid(s.coord) != nil {
			return true
		}
	}
	return false
}

// publish stores g on c only while c is still the resident admission.
func (w *World) publish(c *Chunk, g *store.Grid) {
	w.mu.RLock()
	cur := w.chunks[c.coord]
	w.mu.RUnlock()
	if cur == nil || cur.ticket != c.ticket {
		return
	}
	c.grid.CompareAndSwap(nil, g)
}

func (w *World) evict(c *Chunk) {
	c.release()
	w.remove(c)
	delete(w.awaiting, c.coord)
	w.totals.Evicted++
}
