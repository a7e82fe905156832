// Package tuning loads the streaming parameters from configs/tuning.yaml.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voxelstream.ai/internal/sim/world/terrain/gen"
)

type Tuning struct {
	RenderDistance int    `yaml:"render_distance"`
	LoadIntervalMs int    `yaml:"load_interval_ms"`
	Workers        int    `yaml:"workers"`
	LogEvery       uint64 `yaml:"upload_log_every"`

	Noise Noise `yaml:"noise"`
	Cache Cache `yaml:"cache"`
}

type Noise struct {
	Seed       int64   `yaml:"seed"`
	Type       string  `yaml:"type"`
	Octaves    int     `yaml:"octaves"`
	Lacunarity float64 `yaml:"lacunarity"`
	Gain       float64 `yaml:"gain"`
	Frequency  float64 `yaml:"frequency"`
	Scale      float64 `yaml:"scale"`
}

type Cache struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

func Defaults() Tuning {
	n := gen.DefaultNoiseConfig()
	return Tuning{
		RenderDistance: 1,
		LoadIntervalMs: 10,
		Workers:        0,
		LogEvery:       300,
		Noise: Noise{
			Seed:       n.Seed,
			Type:       n.Type,
			Octaves:    n.Octaves,
			Lacunarity: n.Lacunarity,
			Gain:       n.Gain,
			Frequency:  n.Frequency,
			Scale:      n.Scale,
		},
		Cache: Cache{Enabled: true, Dir: "chunks"},
	}
}

// Load reads path over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.RenderDistance < 1 || t.RenderDistance > 32 {
		errs = append(errs, fmt.Errorf("render_distance %d out of range [1,32]", t.RenderDistance))
	}
	if t.LoadIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("load_interval_ms must be > 0, got %d", t.LoadIntervalMs))
	}
	if t.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", t.Workers))
	}
	if t.Cache.Enabled && t.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir required when cache.enabled"))
	}
	if err := t.NoiseConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("noise: %w", err))
	}
	return errors.Join(errs...)
}

func (t Tuning) LoadInterval() time.Duration {
	return time.Duration(t.LoadIntervalMs) * time.Millisecond
}

func (t Tuning) NoiseConfig() gen.NoiseConfig {
	return gen.NoiseConfig{
		Seed:       t.Noise.Seed,
		Type:       t.Noise.Type,
		Octaves:    t.Noise.Octaves,
		Lacunarity: t.Noise.Lacunarity,
		Gain:       t.Noise.Gain,
		Frequency:  t.Noise.Frequency,
		Scale:      t.Noise.Scale,
	}
}
