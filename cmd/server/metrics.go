package main

import (
	"fmt"
	"io"

	"voxelstream.ai/internal/persistence/indexdb"
	"voxelstream.ai/internal/sim/workers"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

func writeMetric(w io.Writer, name, kind, help string, v any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %v\n", name, v)
}

func writeStreamMetrics(w io.Writer, st world.Stats) {
	writeMetric(w, "voxelstream_frame", "gauge", "Last completed frame.", st.Frame)
	writeMetric(w, "voxelstream_resident_chunks", "gauge", "Chunks currently resident.", st.Resident)
	writeMetric(w, "voxelstream_ready_chunks", "gauge", "Resident chunks with uploaded buffers.", st.Ready)
	writeMetric(w, "voxelstream_pending_chunks", "gauge", "Coordinates waiting for admission.", st.Pending)
	writeMetric(w, "voxelstream_in_flight_jobs", "gauge", "Generation jobs not yet drained.", st.InFlight)
	writeMetric(w, "voxelstream_upload_queue_depth", "gauge", "Finished meshes waiting in the upload queue.", st.Queued)

	writeMetric(w, "voxelstream_dispatched_total", "counter", "Generation jobs submitted.", st.Totals.Dispatched)
	writeMetric(w, "voxelstream_uploaded_total", "counter", "Meshes uploaded to the renderer.", st.Totals.Uploaded)
	writeMetric(w, "voxelstream_upload_errors_total", "counter", "Renderer upload failures.", st.Totals.UploadErrors)
	writeMetric(w, "voxelstream_evicted_total", "counter", "Chunks evicted after leaving range.", st.Totals.Evicted)
	writeMetric(w, "voxelstream_discarded_total", "counter", "Finished jobs dropped because the chunk was gone or replaced.", st.Totals.Discarded)
	writeMetric(w, "voxelstream_failed_total", "counter", "Generation jobs that failed.", st.Totals.Failed)
	writeMetric(w, "voxelstream_cache_hits_total", "counter", "Grids loaded from the chunk cache.", st.Totals.CacheHits)
	writeMetric(w, "voxelstream_remeshed_total", "counter", "Remesh jobs submitted to close seams toward new neighbors.", st.Totals.Remeshed)
}

func writePoolMetrics(w io.Writer, s workers.Stats) {
	writeMetric(w, "voxelstream_workers_running", "gauge", "Running pool workers.", s.Running)
	writeMetric(w, "voxelstream_workers_waiting", "gauge", "Tasks waiting for a worker.", s.Waiting)
	writeMetric(w, "voxelstream_workers_failed_total", "counter", "Tasks that panicked.", s.Failed)
}

func writeCacheMetrics(w io.Writer, s store.CacheStats) {
	writeMetric(w, "voxelstream_cache_misses_total", "counter", "Chunk cache misses.", s.Misses)
	writeMetric(w, "voxelstream_cache_saves_total", "counter", "Chunk cache records written.", s.Saves)
}

func writeIndexMetrics(w io.Writer, s indexdb.Stats) {
	writeMetric(w, "voxelstream_index_queue_depth", "gauge", "Index writer queue depth.", s.QueueDepth)
	writeMetric(w, "voxelstream_index_queue_capacity", "gauge", "Index writer queue capacity.", s.QueueCapacity)
	writeMetric(w, "voxelstream_index_dropped_ticks_total", "counter", "Tick rows dropped because the index queue was full.", s.DropTickTotal)
	writeMetric(w, "voxelstream_index_dropped_chunks_total", "counter", "Chunk rows dropped because the index queue was full.", s.DropChunkTotal)
	writeMetric(w, "voxelstream_index_failed_rows_total", "counter", "Index rows rejected by sqlite or lost to a failed commit.", s.FailRowTotal)
}
