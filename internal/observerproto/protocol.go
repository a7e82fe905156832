package observerproto

// Version is the mesh stream protocol version.
const Version = "1.0"

const (
	TypeSubscribe   = "SUBSCRIBE"
	TypeMeshUpload  = "MESH_UPLOAD"
	TypeMeshDestroy = "MESH_DESTROY"
	TypeFrame       = "FRAME"
)

// Client -> Server. First message on the WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	Frame           uint64       `json:"frame"`
	WorldParams     WorldParams  `json:"world_params"`
	VertexFormat    VertexFormat `json:"vertex_format"`
	LiveMeshes      int          `json:"live_meshes"`
}

type WorldParams struct {
	// ChunkSize is width, height, depth in voxels.
	ChunkSize      [3]int      `json:"chunk_size"`
	ChunkStride    [2]int      `json:"chunk_stride"`
	RenderDistance int         `json:"render_distance"`
	LoadIntervalMs int         `json:"load_interval_ms"`
	Fingerprint    string      `json:"fingerprint"`
	Noise          NoiseParams `json:"noise"`
}

type NoiseParams struct {
	Seed       int64   `json:"seed"`
	Type       string  `json:"type"`
	Octaves    int     `json:"octaves"`
	Lacunarity float64 `json:"lacunarity"`
	Gain       float64 `json:"gain"`
	Frequency  float64 `json:"frequency"`
	Scale      float64 `json:"scale"`
}

// VertexFormat describes the packed vertex layout of MESH_UPLOAD payloads.
type VertexFormat struct {
	Stride   int    `json:"stride"`
	Position string `json:"position"`
	Normal   string `json:"normal"`
	TexCoord string `json:"texcoord"`
	Index    string `json:"index"`
}

// Server -> Client. Vertices and Indices are base64 of the little-endian buffers.
type MeshUploadMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Handle          uint64     `json:"handle"`
	CX              int        `json:"cx"`
	CZ              int        `json:"cz"`
	Origin          [3]float32 `json:"origin"`
	VertexCount     int        `json:"vertex_count"`
	IndexCount      int        `json:"index_count"`
	Vertices        string     `json:"vertices"`
	Indices         string     `json:"indices"`
}

type MeshDestroyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Handle          uint64 `json:"handle"`
}

// Server -> Client. Sent once per presented frame.
type FrameMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Frame           uint64    `json:"frame"`
	Draws           []DrawCmd `json:"draws"`
}

type DrawCmd struct {
	Handle     uint64     `json:"handle"`
	Offset     [3]float32 `json:"offset"`
	IndexCount int        `json:"index_count"`
}
