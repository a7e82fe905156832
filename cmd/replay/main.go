package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "voxelstream.ai/internal/persistence/log"
	"voxelstream.ai/internal/persistence/snapshot"
	"voxelstream.ai/internal/sim/tuning"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/gen"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning.yaml used to regenerate chunks")
		fromFrame  = flag.Uint64("from_frame", 0, "first frame to summarize (inclusive, optional)")
		toFrame    = flag.Uint64("to_frame", 0, "last frame to summarize (inclusive, optional)")
		verbose    = flag.Bool("v", false, "print one line per frame")
		chunks     = flag.Bool("chunks", false, "verify cached chunk records against regenerated terrain")
	)
	flag.Parse()

	files, err := persistlog.ListTickFiles(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 && !*chunks {
		fmt.Fprintln(os.Stderr, "no tick files found under", *dataDir)
		os.Exit(1)
	}

	if len(files) > 0 {
		sum, err := summarize(files, *fromFrame, *toFrame, func(e world.TickLogEntry) {
			if *verbose {
				fmt.Printf("frame=%d viewer=(%d,%d) resident=%d pending=%d in_flight=%d drawn=%d uploaded=%d evicted=%d\n",
					e.Frame, e.ViewerX, e.ViewerZ, e.Resident, e.Pending, e.InFlight, e.Drawn, e.Delta.Uploaded, e.Delta.Evicted)
			}
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		fmt.Printf("frames=%d..%d count=%d gaps=%d max_resident=%d dispatched=%d uploaded=%d upload_errors=%d evicted=%d discarded=%d failed=%d cache_hits=%d remeshed=%d last_digest=%s\n",
			sum.First, sum.Last, sum.Frames, sum.Gaps, sum.MaxResident,
			sum.Totals.Dispatched, sum.Totals.Uploaded, sum.Totals.UploadErrors,
			sum.Totals.Evicted, sum.Totals.Discarded, sum.Totals.Failed, sum.Totals.CacheHits, sum.Totals.Remeshed, sum.LastDigest)
	}

	if !*chunks {
		return
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	g, err := gen.FromConfig(tune.NoiseConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "generator:", err)
		os.Exit(1)
	}
	dir := tune.Cache.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(*dataDir, dir)
	}
	res, err := verifyChunks(dir, g, tune.NoiseConfig().Fingerprint())
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify chunks:", err)
		os.Exit(1)
	}
	fmt.Printf("chunks checked=%d stale=%d mismatched=%d\n", res.Checked, res.Stale, len(res.Mismatched))
	if len(res.Mismatched) > 0 {
		for _, c := range res.Mismatched {
			fmt.Fprintln(os.Stderr, "digest mismatch:", c)
		}
		os.Exit(1)
	}
}

type summary struct {
	First       uint64
	Last        uint64
	Frames      int
	Gaps        int
	MaxResident int
	Totals      world.Counters
	LastDigest  string
}

// summarize folds every tick entry in [from, to] into per-run totals. A gap
// is any frame number that does not follow its predecessor.
func summarize(files []string, from, to uint64, each func(world.TickLogEntry)) (summary, error) {
	var s summary
	var prev uint64
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(e world.TickLogEntry) error {
			if e.Frame < from || (to != 0 && e.Frame > to) {
				return nil
			}
			if s.Frames == 0 {
				s.First = e.Frame
			} else if e.Frame != prev+1 {
				s.Gaps++
			}
			prev = e.Frame
			s.Last = e.Frame
			s.Frames++
			s.MaxResident = max(s.MaxResident, e.Resident)
			s.Totals = addCounters(s.Totals, e.Delta)
			s.LastDigest = e.Digest
			if each != nil {
				each(e)
			}
			return nil
		})
		if err != nil {
			return s, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return s, nil
}

func addCounters(a, b world.Counters) world.Counters {
	return world.Counters{
		Admitted:     a.Admitted + b.Admitted,
		Pruned:       a.Pruned + b.Pruned,
		Dispatched:   a.Dispatched + b.Dispatched,
		Uploaded:     a.Uploaded + b.Uploaded,
		UploadErrors: a.UploadErrors + b.UploadErrors,
		Evicted:      a.Evicted + b.Evicted,
		Discarded:    a.Discarded + b.Discarded,
		Failed:       a.Failed + b.Failed,
		CacheHits:    a.CacheHits + b.CacheHits,
		Remeshed:     a.Remeshed + b.Remeshed,
	}
}

type verifyResult struct {
	Checked    int
	Stale      int
	Mismatched []store.ChunkCoord
}

// verifyChunks regenerates every cached chunk written under fingerprint and
// compares grid digests. Records from another generator count as stale.
func verifyChunks(dir string, g *gen.Generator, fingerprint string) (verifyResult, error) {
	var res verifyResult
	paths, err := snapshot.ListChunks(dir)
	if err != nil {
		return res, err
	}
	for _, path := range paths {
		rec, err := snapshot.ReadChunk(path)
		if err != nil {
			return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if rec.Fingerprint != fingerprint {
			res.Stale++
			continue
		}
		cached, err := store.ImportChunk(rec)
		if err != nil {
			return res, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		coord := store.ChunkCoord{X: rec.CX, Z: rec.CZ}
		res.Checked++
		if cached.Digest() != g.Generate(coord).Digest() {
			res.Mismatched = append(res.Mismatched, coord)
		}
	}
	store.SortCoords(res.Mismatched)
	return res, nil
}
