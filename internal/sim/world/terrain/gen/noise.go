package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ojrac/opensimplex-go"

	"voxelstream.ai/internal/sim/world/terrain/store"
)

const NoiseOpenSimplex = "opensimplex"

// NoiseSource is a deterministic 2D coherent noise function returning values in [-1,1].
type NoiseSource interface {
	Noise2D(x, y float64) float64
}

// NoiseConfig is shared by every chunk of a world; changing any field changes terrain.
type NoiseConfig struct {
	Seed       int64   `json:"seed"`
	Type       string  `json:"type"`
	Octaves    int     `json:"octaves"`
	Lacunarity float64 `json:"lacunarity"`
	Gain       float64 `json:"gain"`
	Frequency  float64 `json:"frequency"`
	Scale      float64 `json:"scale"`
}

func DefaultNoiseConfig() NoiseConfig {
	return NoiseConfig{
		Seed:       1337,
		Type:       NoiseOpenSimplex,
		Octaves:    1,
		Lacunarity: 1.0,
		Gain:       0.5,
		Frequency:  0.01,
		Scale:      0.9,
	}
}

func (c NoiseConfig) Validate() error {
	if c.Type != NoiseOpenSimplex {
		return fmt.Errorf("unsupported noise type %q", c.Type)
	}
	if c.Octaves < 1 || c.Octaves > 16 {
		return fmt.Errorf("octaves out of range: %d", c.Octaves)
	}
	if c.Lacunarity <= 0 {
		return fmt.Errorf("lacunarity must be positive: %v", c.Lacunarity)
	}
	if c.Gain <= 0 || c.Gain > 1 {
		return fmt.Errorf("gain must be in (0,1]: %v", c.Gain)
	}
	if c.Frequency <= 0 || c.Scale <= 0 {
		return fmt.Errorf("frequency and scale must be positive: %v %v", c.Frequency, c.Scale)
	}
	return nil
}

// Fingerprint identifies the terrain a config produces, including grid shape and height factor.
func (c NoiseConfig) Fingerprint() string {
	b, _ := json.Marshal(struct {
		Noise        NoiseConfig `json:"noise"`
		Dims         [3]int      `json:"dims"`
		HeightFactor float64     `json:"height_factor"`
	}{c, [3]int{store.Width, store.Height, store.Depth}, HeightFactor})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// Noise is fractal (fBm) opensimplex noise. With one octave it is plain opensimplex.
type Noise struct {
	src       opensimplex.Noise
	cfg       NoiseConfig
	amplitude float64
}

func NewNoise(cfg NoiseConfig) (*Noise, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	total := 0.0
	amp := 1.0
	for i := 0; i < cfg.Octaves; i++ {
		total += amp
		amp *= cfg.Gain
	}
	return &Noise{
		src:       opensimplex.New(cfg.Seed),
		cfg:       cfg,
		amplitude: total,
	}, nil
}

func (n *Noise) Config() NoiseConfig { return n.cfg }

func (n *Noise) Noise2D(x, y float64) float64 {
	x *= n.cfg.Frequency
	y *= n.cfg.Frequency

	sum := 0.0
	amp := 1.0
	for i := 0; i < n.cfg.Octaves; i++ {
		sum += n.src.Eval2(x, y) * amp
		x *= n.cfg.Lacunarity
		y *= n.cfg.Lacunarity
		amp *= n.cfg.Gain
	}
	v := sum / n.amplitude
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
