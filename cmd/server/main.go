package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	persistlog "voxelstream.ai/internal/persistence/log"
	"voxelstream.ai/internal/render"
	"voxelstream.ai/internal/sim/tuning"
	"voxelstream.ai/internal/sim/workers"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/store"
	"voxelstream.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "http listen address (observer + metrics)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick + chunk rows)")

		useObserver = flag.Bool("observer", true, "stream meshes to observers over websocket; false renders into an in-memory recorder")
		maxLive     = flag.Int("max_live", 0, "cap on live mesh buffers (0 = unlimited)")
		frames      = flag.Uint64("frames", 0, "stop after this many frames (0 = run until signalled)")
		fps         = flag.Int("fps", 60, "target frame rate")
		speed       = flag.Float64("speed", 8, "scripted viewer speed along +X in blocks per second")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning file %s not found, using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *fps <= 0 {
		logger.Fatalf("-fps must be > 0")
	}

	cfg := world.WorldConfig{
		RenderDistance: tune.RenderDistance,
		LoadInterval:   tune.LoadInterval(),
		Noise:          tune.NoiseConfig(),
		LogEvery:       tune.LogEvery,
	}

	var (
		stream *observer.MeshStream
		rec    *render.Recorder
		r      render.Renderer
	)
	if *useObserver {
		stream = observer.NewMeshStream(cfg, *maxLive, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
		r = stream
	} else {
		rec = render.NewRecorder()
		r = rec
	}

	pool := workers.New(tune.Workers, log.New(os.Stdout, "[workers] ", log.LstdFlags|log.Lmicroseconds))
	w, err := world.New(cfg, pool, r)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("index: %v", err)
	}
	if idx != nil {
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index tuning: %v", err)
		}
		w.AddTickLogger(idx)
	}

	tickLog := persistlog.NewTickLogger(*dataDir)
	w.AddTickLogger(tickLog)

	var (
		cache     *store.DiskCache
		chunkLog  *persistlog.ChunkLogger
		recorders store.Recorders
	)
	if tune.Cache.Enabled {
		dir := tune.Cache.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(*dataDir, dir)
		}
		cache, err = store.NewDiskCache(dir, w.Fingerprint())
		if err != nil {
			logger.Fatalf("chunk cache: %v", err)
		}
		chunkLog = persistlog.NewChunkLogger(*dataDir, func(err error) {
			logger.Printf("chunk log: %v", err)
		})
		recorders = append(recorders, chunkLog)
		if idx != nil {
			recorders = append(recorders, idx)
		}
		cache.SetRecorder(recorders)
		w.SetChunkCache(cache)
		logger.Printf("chunk cache at %s (fingerprint %s)", dir, w.Fingerprint())
	}

	ctx, cancel := signalContext()
	defer cancel()

	// The frame loop owns w; handlers only see the published snapshot.
	var latest atomic.Pointer[world.Stats]
	st0 := w.Stats()
	latest.Store(&st0)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeStreamMetrics(rw, *latest.Load())
		writePoolMetrics(rw, pool.Stats())
		if cache != nil {
			writeCacheMetrics(rw, cache.Stats())
		}
		if idx != nil {
			writeIndexMetrics(rw, idx.Stats())
		}
		if stream != nil {
			fmt.Fprintf(rw, "# HELP voxelstream_observer_subscribers Connected observers.\n")
			fmt.Fprintf(rw, "# TYPE voxelstream_observer_subscribers gauge\n")
			fmt.Fprintf(rw, "voxelstream_observer_subscribers %d\n", stream.Subscribers())
		}
	})
	if stream != nil {
		mux.Handle("/observer/", stream.Handler())
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("ListenAndServe: %v", err)
			cancel()
		}
	}()

	clock := world.NewFrameClock(nil)
	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	var viewer mgl32.Vec3
	logger.Printf("streaming: render_distance=%d load_interval=%s workers=%d observer=%v",
		cfg.RenderDistance, cfg.LoadInterval, tune.Workers, *useObserver)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		fc := clock.Next()
		viewer[0] += float32(*speed * fc.Delta.Seconds())
		if err := w.Tick(fc, viewer); err != nil {
			logger.Printf("frame=%d upload: %v", fc.Frame, err)
		}
		if stream != nil {
			stream.Present(fc.Frame)
		} else {
			rec.TakeDraws()
		}
		st := w.Stats()
		latest.Store(&st)

		if *frames > 0 && fc.Frame >= *frames {
			break
		}
	}

	logger.Printf("shutting down")
	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	_ = srv.Shutdown(ctx2)
	cancel2()

	pool.StopAndWait()
	if err := w.ProcessMeshUploads(); err != nil {
		logger.Printf("final drain: %v", err)
	}
	final := w.Stats()
	w.Shutdown()

	if err := tickLog.Close(); err != nil {
		logger.Printf("tick log close: %v", err)
	}
	if chunkLog != nil {
		if err := chunkLog.Close(); err != nil {
			logger.Printf("chunk log close: %v", err)
		}
	}
	if idx != nil {
		if err := idx.Close(); err != nil {
			logger.Printf("index close: %v", err)
		}
	}
	logger.Printf("stopped at frame=%d uploaded=%d evicted=%d discarded=%d failed=%d",
		final.Frame, final.Totals.Uploaded, final.Totals.Evicted, final.Totals.Discarded, final.Totals.Failed)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
