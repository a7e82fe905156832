// Package world keeps the set of chunks around a viewer resident: it admits
// new chunks to a worker pool, drains finished meshes into a renderer
// backend, and evicts chunks that fall out of range.
package world

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"voxelstream.ai/internal/render"
	"voxelstream.ai/internal/sim/world/terrain/gen"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// Executor runs generation jobs. workers.Pool and workers.Inline satisfy it.
type Executor interface {
	Submit(task func()) error
}

// ChunkCache persists generated grids between runs. A miss is (nil, false, nil).
type ChunkCache interface {
	LoadGrid(coord store.ChunkCoord) (*store.Grid, bool, error)
	SaveGrid(coord store.ChunkCoord, g *store.Grid) error
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// World is driven by a single consumer goroutine calling Tick (or
// UpdateChunks and ProcessMeshUploads). Worker goroutines only touch the
// resident map through NeighborGrid and grid publication.
type World struct {
	cfg      WorldConfig
	gen      *gen.Generator
	exec     Executor
	renderer render.Renderer
	cache    ChunkCache
	logger   *log.Logger

	tickLoggers []TickLogger

	mu     sync.RWMutex
	chunks map[store.ChunkCoord]*Chunk

	loads   *loadQueue
	uploads uploadQueue
	limiter *rate.Limiter

	nextTicket atomic.Uint64

	// Consumer goroutine only.
	frame     FrameContext
	center    store.ChunkCoord
	awaiting  map[store.ChunkCoord]*Chunk
	totals    Counters
	lastTotal Counters
}

func New(cfg WorldConfig, exec Executor, r render.Renderer) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	if exec == nil {
		return nil, errors.New("world: nil executor")
	}
	if r == nil {
		return nil, errors.New("world: nil renderer")
	}
	g, err := gen.FromConfig(cfg.Noise)
	if err != nil {
		return nil, fmt.Errorf("terrain generator: %w", err)
	}
	return &World{
		cfg:      cfg,
		gen:      g,
		exec:     exec,
		renderer: r,
		logger:   log.Default(),
		chunks:   map[store.ChunkCoord]*Chunk{},
		loads:    newLoadQueue(),
		limiter:  rate.NewLimiter(rate.Every(cfg.LoadInterval), 1),
		awaiting: map[store.ChunkCoord]*Chunk{},
	}, nil
}

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.logger = l
	}
}
func (w *World) SetChunkCache(c ChunkCache)    { w.cache = c }
func (w *World) AddTickLogger(l TickLogger)    { w.tickLoggers = append(w.tickLoggers, l) }
func (w *World) Config() WorldConfig           { return w.cfg }
func (w *World) Generator() *gen.Generator     { return w.gen }
func (w *World) CurrentFrame() FrameContext    { return w.frame }
func (w *World) ViewerChunk() store.ChunkCoord { return w.center }

// Fingerprint identifies the terrain this world generates; cached chunks are
// only valid under the same fingerprint.
func (w *World) Fingerprint() string { return w.cfg.Noise.Fingerprint() }

func (w *World) HasChunk(c store.ChunkCoord) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.chunks[c]
	return ok
}

func (w *World) Chunk(c store.ChunkCoord) *Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[c]
}

// NeighborGrid is the mesher's view of the world. It returns nil for
// coordinates that are not resident or not generated yet.
func (w *World) NeighborGrid(c store.ChunkCoord) *store.Grid {
	w.mu.RLock()
	ch := w.chunks[c]
	w.mu.RUnlock()
	if ch == nil {
		return nil
	}
	return ch.grid.Load()
}

// ResidentCoords returns the resident coordinates in X-then-Z order.
func (w *World) ResidentCoords() []store.ChunkCoord {
	w.mu.RLock()
	out := make([]store.ChunkCoord, 0, len(w.chunks))
	for c := range w.chunks {
		out = append(out, c)
	}
	w.mu.RUnlock()
	store.SortCoords(out)
	return out
}

func (w *World) residentChunks() []*Chunk {
	coords := w.ResidentCoords()
	out := make([]*Chunk, 0, len(coords))
	w.mu.RLock()
	for _, c := range coords {
		out = append(out, w.chunks[c])
	}
	w.mu.RUnlock()
	return out
}

func (w *World) insert(c *Chunk) {
	w.mu.Lock()
	w.chunks[c.coord] = c
	w.mu.Unlock()
}

// remove deletes c only if it is still the resident chunk for its coordinate.
func (w *World) remove(c *Chunk) {
	w.mu.Lock()
	if cur, ok := w.chunks[c.coord]; ok && cur == c {
		delete(w.chunks, c.coord)
	}
	w.mu.Unlock()
}

// Shutdown releases every renderer resource and forgets all chunks. Stop the
// executor first; results still queued are discarded.
func (w *World) Shutdown() {
	for _, c := range w.residentChunks() {
		c.release()
		w.remove(c)
	}
	w.uploads.drain()
	w.loads.reset()
	clear(w.awaiting)
}
