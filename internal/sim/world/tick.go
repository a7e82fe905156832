package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/sim/world/terrain/store"
)

// Counters are cumulative streaming event counts.
type Counters struct {
	Admitted     uint64 `json:"admitted"`
	Pruned       uint64 `json:"pruned"`
	Dispatched   uint64 `json:"dispatched"`
	Uploaded     uint64 `json:"uploaded"`
	UploadErrors uint64 `json:"upload_errors"`
	Evicted      uint64 `json:"evicted"`
	Discarded    uint64 `json:"discarded"`
	Failed       uint64 `json:"failed"`
	CacheHits    uint64 `json:"cache_hits"`
	Remeshed     uint64 `json:"remeshed"`
}

func (c Counters) sub(o Counters) Counters {
	return Counters{
		Admitted:     c.Admitted - o.Admitted,
		Pruned:       c.Pruned - o.Pruned,
		Dispatched:   c.Dispatched - o.Dispatched,
		Uploaded:     c.Uploaded - o.Uploaded,
		UploadErrors: c.UploadErrors - o.UploadErrors,
		Evicted:      c.Evicted - o.Evicted,
		Discarded:    c.Discarded - o.Discarded,
		Failed:       c.Failed - o.Failed,
		CacheHits:    c.CacheHits - o.CacheHits,
		Remeshed:     c.Remeshed - o.Remeshed,
	}
}

type Stats struct {
	Frame    uint64           `json:"frame"`
	Viewer   store.ChunkCoord `json:"viewer"`
	Resident int              `json:"resident"`
	Ready    int              `json:"ready"`
	Pending  int              `json:"pending"`
	InFlight int              `json:"in_flight"`
	Queued   int              `json:"queued"`
	Totals   Counters         `json:"totals"`
}

// TickLogEntry is one frame of streaming activity. Counts are per frame.
type TickLogEntry struct {
	Frame     uint64   `json:"frame"`
	DeltaMS   float64  `json:"delta_ms"`
	ViewerX   int      `json:"viewer_x"`
	ViewerZ   int      `json:"viewer_z"`
	Resident  int      `json:"resident"`
	Pending   int      `json:"pending"`
	InFlight  int      `json:"in_flight"`
	Drawn     int      `json:"drawn"`
	Delta     Counters `json:"delta"`
	Digest    string   `json:"digest"`
	UploadErr string   `json:"upload_err,omitempty"`
}

func (w *World) Stats() Stats {
	p, f := w.loads.lens()
	st := Stats{
		Frame:    w.frame.Frame,
		Viewer:   w.center,
		Pending:  p,
		InFlight: f,
		Queued:   w.uploads.len(),
		Totals:   w.totals,
	}
	w.mu.RLock()
	st.Resident = len(w.chunks)
	for _, c := range w.chunks {
		if c.State() == Uploaded {
			st.Ready++
		}
	}
	w.mu.RUnlock()
	return st
}

// ResidentDigest hashes the sorted resident set and each chunk's state. Two
// runs that stream the same path produce the same digest once settled.
func (w *World) ResidentDigest() string {
	h := sha256.New()
	var b [17]byte
	for _, c := range w.residentChunks() {
		binary.LittleEndian.PutUint64(b[0:8], uint64(int64(c.coord.X)))
		binary.LittleEndian.PutUint64(b[8:16], uint64(int64(c.coord.Z)))
		b[16] = byte(c.State())
		h.Write(b[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tick is one full frame: UpdateChunks, ProcessMeshUploads, Render, then the
// tick log. It returns the upload error, if any, after logging the frame.
func (w *World) Tick(fc FrameContext, viewer mgl32.Vec3) error {
	w.UpdateChunks(fc, viewer)
	uploadErr := w.ProcessMeshUploads()
	drawn := w.Render()

	delta := w.totals.sub(w.lastTotal)
	w.lastTotal = w.totals
	st := w.Stats()

	if len(w.tickLoggers) > 0 {
		e := TickLogEntry{
			Frame:    fc.Frame,
			DeltaMS:  float64(fc.Delta.Microseconds()) / 1000,
			ViewerX:  w.center.X,
			ViewerZ:  w.center.Z,
			Resident: st.Resident,
			Pending:  st.Pending,
			InFlight: st.InFlight,
			Drawn:    drawn,
			Delta:    delta,
			Digest:   w.ResidentDigest(),
		}
		if uploadErr != nil {
			e.UploadErr = uploadErr.Error()
		}
		for _, l := range w.tickLoggers {
			if err := l.WriteTick(e); err != nil {
				w.logger.Printf("tick log frame=%d: %v", fc.Frame, err)
			}
		}
	}
	if w.cfg.LogEvery > 0 && fc.Frame%w.cfg.LogEvery == 0 {
		w.logger.Printf("frame=%d viewer=%s resident=%d ready=%d pending=%d in_flight=%d uploaded=%d evicted=%d",
			fc.Frame, w.center, st.Resident, st.Ready, st.Pending, st.InFlight, st.Totals.Uploaded, st.Totals.Evicted)
	}
	return uploadErr
}

// Render draws every uploaded chunk at its world origin and returns the
// number of draw calls issued.
func (w *World) Render() int {
	n := 0
	for _, c := range w.residentChunks() {
		if c.State() != Uploaded || c.buffers == nil {
			continue
		}
		c.buffers.Draw(c.origin)
		n++
	}
	return n
}

func sortedKeys(m map[store.ChunkCoord]*Chunk) []store.ChunkCoord {
	out := make([]store.ChunkCoord, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	store.SortCoords(out)
	return out
}
