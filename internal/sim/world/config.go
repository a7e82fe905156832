package world

import (
	"fmt"
	"time"

	"voxelstream.ai/internal/sim/world/terrain/gen"
)

const (
	DefaultRenderDistance = 1
	DefaultLoadInterval   = 10 * time.Millisecond

	// MaxRenderDistance keeps the active set (2R+1)^2 within what one
	// consumer goroutine can upload comfortably.
	MaxRenderDistance = 32
)

type WorldConfig struct {
	// RenderDistance is the Chebyshev radius, in chunks, of the active set.
	RenderDistance int
	// LoadInterval is the minimum spacing between two job dispatches.
	LoadInterval time.Duration
	Noise        gen.NoiseConfig

	// LogEvery prints a stats line every N ticks; 0 disables it.
	LogEvery uint64
}

func (c *WorldConfig) applyDefaults() {
	if c.RenderDistance <= 0 {
		c.RenderDistance = DefaultRenderDistance
	}
	if c.LoadInterval <= 0 {
		c.LoadInterval = DefaultLoadInterval
	}
	if c.Noise == (gen.NoiseConfig{}) {
		c.Noise = gen.DefaultNoiseConfig()
	}
}

func (c WorldConfig) validate() error {
	if c.RenderDistance > MaxRenderDistance {
		return fmt.Errorf("render distance %d exceeds %d", c.RenderDistance, MaxRenderDistance)
	}
	return c.Noise.Validate()
}
