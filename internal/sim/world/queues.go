package world

import (
	"sync"
	"time"

	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// MeshData is the result of one generation job. It owns a copy of the grid
// so nothing in it aliases worker memory.
type MeshData struct {
	Coord     store.ChunkCoord
	Ticket    uint64
	Grid      store.Grid
	Mesh      mesh.Mesh
	FromCache bool
	Elapsed   time.Duration
	Err       error

	// Remesh results rebuild the mesh of an already generated chunk; Grid
	// is left zero.
	Remesh bool
}

// loadQueue holds coordinates waiting for dispatch (FIFO) and those whose job
// has been dispatched but not drained yet.
type loadQueue struct {
	mu       sync.Mutex
	pending  []store.ChunkCoord
	queued   map[store.ChunkCoord]struct{}
	inFlight map[store.ChunkCoord]uint64
}

func newLoadQueue() *loadQueue {
	return &loadQueue{
		queued:   map[store.ChunkCoord]struct{}{},
		inFlight: map[store.ChunkCoord]uint64{},
	}
}

// enqueue appends c unless it is already pending or in flight.
func (q *loadQueue) enqueue(c store.ChunkCoord) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[c]; ok {
		return false
	}
	if _, ok := q.inFlight[c]; ok {
		return false
	}
	q.queued[c] = struct{}{}
	q.pending = append(q.pending, c)
	return true
}

// prune drops pending coordinates for which keep is false, preserving order.
func (q *loadQueue) prune(keep func(store.ChunkCoord) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending[:0]
	dropped := 0
	for _, c := range q.pending {
		if keep(c) {
			out = append(out, c)
			continue
		}
		delete(q.queued, c)
		dropped++
	}
	q.pending = out
	return dropped
}

// popInFlight dequeues the oldest pending coordinate and marks it in flight.
func (q *loadQueue) popInFlight(ticket uint64) (store.ChunkCoord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return store.ChunkCoord{}, false
	}
	c := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.queued, c)
	q.inFlight[c] = ticket
	return c, true
}

func (q *loadQueue) done(c store.ChunkCoord, ticket uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.inFlight[c]; ok && t == ticket {
		delete(q.inFlight, c)
	}
}

func (q *loadQueue) lens() (pending, inFlight int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.inFlight)
}

func (q *loadQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	clear(q.queued)
	clear(q.inFlight)
}

// uploadQueue is the completed-mesh FIFO: many workers push, the consumer drains.
type uploadQueue struct {
	mu    sync.Mutex
	items []MeshData
}

func (q *uploadQueue) push(md MeshData) {
	q.mu.Lock()
	q.items = append(q.items, md)
	q.mu.Unlock()
}

func (q *uploadQueue) drain() []MeshData {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *uploadQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
