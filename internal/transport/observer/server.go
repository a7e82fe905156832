// Package observer streams chunk meshes to web viewers over WebSocket. The
// MeshStream is a render.Renderer: every upload, destroy and frame the world
// issues is forwarded to subscribers.
package observer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/observerproto"
	"voxelstream.ai/internal/render"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/mesh"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

const defaultQueue = 4096

type MeshStream struct {
	log      *log.Logger
	params   observerproto.WorldParams
	maxLive  int
	queue    int
	upgrader websocket.Upgrader

	nextHandle atomic.Uint64
	nextSub    atomic.Uint64
	frame      atomic.Uint64

	mu    sync.Mutex
	live  map[render.Handle][]byte
	subs  map[string]*subscriber
	draws []observerproto.DrawCmd
}

type subscriber struct {
	id     string
	out    chan []byte
	closed bool
}

// NewMeshStream serves meshes for a world configured with cfg. maxLive caps
// the number of live meshes (0 = unlimited); beyond it uploads fail with
// render.ErrBufferAlloc.
func NewMeshStream(cfg world.WorldConfig, maxLive int, logger *log.Logger) *MeshStream {
	if logger == nil {
		logger = log.Default()
	}
	n := cfg.Noise
	return &MeshStream{
		log: logger,
		params: observerproto.WorldParams{
			ChunkSize:      [3]int{store.Width, store.Height, store.Depth},
			ChunkStride:    [2]int{store.Width - 1, store.Depth - 1},
			RenderDistance: cfg.RenderDistance,
			LoadIntervalMs: int(cfg.LoadInterval / time.Millisecond),
			Fingerprint:    n.Fingerprint(),
			Noise: observerproto.NoiseParams{
				Seed:       n.Seed,
				Type:       n.Type,
				Octaves:    n.Octaves,
				Lacunarity: n.Lacunarity,
				Gain:       n.Gain,
				Frequency:  n.Frequency,
				Scale:      n.Scale,
			},
		},
		maxLive: maxLive,
		queue:   defaultQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see handlers
		},
		live: map[render.Handle][]byte{},
		subs: map[string]*subscriber{},
	}
}

func (s *MeshStream) CreateOrReplaceMeshBuffers(coord store.ChunkCoord, vertices []mesh.PackedVertex, indices []uint32) (render.Handle, error) {
	origin := coord.Origin()
	h := render.Handle(s.nextHandle.Add(1))
	msg, err := json.Marshal(observerproto.MeshUploadMsg{
		Type:            observerproto.TypeMeshUpload,
		ProtocolVersion: observerproto.Version,
		Handle:          uint64(h),
		CX:              coord.X,
		CZ:              coord.Z,
		Origin:          [3]float32{origin.X(), origin.Y(), origin.Z()},
		VertexCount:     len(vertices),
		IndexCount:      len(indices),
		Vertices:        base64.StdEncoding.EncodeToString(mesh.AppendBytes(nil, vertices)),
		Indices:         base64.StdEncoding.EncodeToString(mesh.AppendIndexBytes(nil, indices)),
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxLive > 0 && len(s.live) >= s.maxLive {
		return 0, fmt.Errorf("chunk %s: %d live meshes: %w", coord, len(s.live), render.ErrBufferAlloc)
	}
	s.live[h] = msg
	s.broadcastLocked(msg)
	return h, nil
}

func (s *MeshStream) DestroyMeshBuffers(h render.Handle) {
	msg, _ := json.Marshal(observerproto.MeshDestroyMsg{
		Type:            observerproto.TypeMeshDestroy,
		ProtocolVersion: observerproto.Version,
		Handle:          uint64(h),
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[h]; !ok {
		return
	}
	delete(s.live, h)
	s.broadcastLocked(msg)
}

func (s *MeshStream) Draw(h render.Handle, offset mgl32.Vec3, indexCount int) {
	s.mu.Lock()
	s.draws = append(s.draws, observerproto.DrawCmd{
		Handle:     uint64(h),
		Offset:     [3]float32{offset.X(), offset.Y(), offset.Z()},
		IndexCount: indexCount,
	})
	s.mu.Unlock()
}

// Present sends the draw list collected since the previous Present.
func (s *MeshStream) Present(frame uint64) {
	s.frame.Store(frame)
	s.mu.Lock()
	defer s.mu.Unlock()
	draws := s.draws
	if draws == nil {
		draws = []observerproto.DrawCmd{}
	}
	s.draws = nil
	msg, _ := json.Marshal(observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Frame:           frame,
		Draws:           draws,
	})
	s.broadcastLocked(msg)
}

func (s *MeshStream) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *MeshStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// broadcastLocked never blocks: a subscriber whose queue is full is cut off,
// since a viewer that missed an upload cannot recover without reconnecting.
func (s *MeshStream) broadcastLocked(msg []byte) {
	for id, sub := range s.subs {
		select {
		case sub.out <- msg:
		default:
			s.log.Printf("observer %s: queue full, disconnecting", id)
			s.dropLocked(sub)
		}
	}
}

func (s *MeshStream) dropLocked(sub *subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.out)
	delete(s.subs, sub.id)
}

// subscribe registers a subscriber and queues every live mesh for it, oldest first.
func (s *MeshStream) subscribe() *subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The replay never blocks; headroom after it is the configured queue.
	sub := &subscriber{
		id:  fmt.Sprintf("O%d", s.nextSub.Add(1)),
		out: make(chan []byte, len(s.live)+s.queue),
	}
	handles := make([]render.Handle, 0, len(s.live))
	for h := range s.live {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		sub.out <- s.live[h]
	}
	s.subs[sub.id] = sub
	return sub
}

func (s *MeshStream) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	s.dropLocked(sub)
	s.mu.Unlock()
}

func (s *MeshStream) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Frame:           s.frame.Load(),
			WorldParams:     s.params,
			VertexFormat: observerproto.VertexFormat{
				Stride:   mesh.VertexSize,
				Position: "u10x3",
				Normal:   "unorm10x3",
				TexCoord: "f16x2",
				Index:    "u32",
			},
			LiveMeshes: s.Live(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *MeshStream) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		subr := s.subscribe()
		defer s.unsubscribe(subr)
		s.log.Printf("observer %s: subscribed from %s", subr.id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. Closing conn on exit unblocks the reader below.
		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			defer conn.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-subr.out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: only control frames and close are expected.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Handler mounts the bootstrap and WS endpoints.
func (s *MeshStream) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/observer/ws", s.WSHandler())
	return mux
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
