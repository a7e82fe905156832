package gen

import (
	"math"

	"voxelstream.ai/internal/sim/world/logic/mathx"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

// HeightFactor maps normalized noise (0..2 after the +1 shift) onto the chunk height.
const HeightFactor = 0.5

type Generator struct {
	noise NoiseSource
	scale float64
}

// New builds a generator. scale multiplies world columns before sampling; it is
// normally NoiseConfig.Scale (frequency is applied by the source itself).
func New(noise NoiseSource, scale float64) *Generator {
	if scale <= 0 {
		scale = 1
	}
	return &Generator{noise: noise, scale: scale}
}

// FromConfig builds the opensimplex-backed generator for cfg.
func FromConfig(cfg NoiseConfig) (*Generator, error) {
	n, err := NewNoise(cfg)
	if err != nil {
		return nil, err
	}
	return New(n, cfg.Scale), nil
}

// HeightAt returns the highest solid y of a world column.
func (g *Generator) HeightAt(worldX, worldZ int) int {
	v := g.noise.Noise2D(float64(worldX)*g.scale, float64(worldZ)*g.scale)
	h := int(math.Floor((v + 1) * HeightFactor * store.Height))
	return mathx.ClampInt(h, 0, store.Height-1)
}

func (g *Generator) Generate(coord store.ChunkCoord) *store.Grid {
	grid := new(store.Grid)
	g.Fill(coord, grid)
	return grid
}

// Fill overwrites grid with the terrain of coord.
func (g *Generator) Fill(coord store.ChunkCoord, grid *store.Grid) {
	for z := 0; z < store.Depth; z++ {
		for x := 0; x < store.Width; x++ {
			wx, wz := coord.WorldColumn(x, z)
			h := g.HeightAt(wx, wz)
			for y := 0; y < store.Height; y++ {
				k := store.Empty
				if y <= h {
					k = store.Solid
				}
				grid.Set(x, y, z, k)
			}
		}
	}
}
