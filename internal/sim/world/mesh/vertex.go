package mesh

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// VertexSize is the wire size of one PackedVertex in bytes.
const VertexSize = 12

const (
	axisBits = 10
	axisMask = 1<<axisBits - 1 // 1023
)

// PackedVertex is the per-vertex record handed to renderers:
// 10:10:10 position, 10:10:10 normal, and two half-float texcoords.
type PackedVertex struct {
	Position uint32
	Normal   uint32
	TexCoord uint32
}

func NewVertex(x, y, z int, normal mgl32.Vec3, uv mgl32.Vec2) PackedVertex {
	return PackedVertex{
		Position: PackPosition(x, y, z),
		Normal:   PackNormal(normal),
		TexCoord: PackTexCoord(uv),
	}
}

func pack3(x, y, z uint32) uint32 {
	return (z&axisMask)<<(2*axisBits) | (y&axisMask)<<axisBits | x&axisMask
}

func unpack3(v uint32) (x, y, z uint32) {
	return v & axisMask, (v >> axisBits) & axisMask, (v >> (2 * axisBits)) & axisMask
}

// PackPosition keeps the low 10 bits of each chunk-local axis.
func PackPosition(x, y, z int) uint32 {
	return pack3(uint32(x), uint32(y), uint32(z))
}

func UnpackPosition(v uint32) (x, y, z int) {
	ux, uy, uz := unpack3(v)
	return int(ux), int(uy), int(uz)
}

func quantizeUnit(f float32) uint32 {
	q := math.Round(float64(f*0.5+0.5) * axisMask)
	if q < 0 {
		q = 0
	}
	if q > axisMask {
		q = axisMask
	}
	return uint32(q)
}

// PackNormal normalizes n and maps each component from [-1,1] to [0,1023].
func PackNormal(n mgl32.Vec3) uint32 {
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	}
	return pack3(quantizeUnit(n.X()), quantizeUnit(n.Y()), quantizeUnit(n.Z()))
}

func UnpackNormal(v uint32) mgl32.Vec3 {
	x, y, z := unpack3(v)
	f := func(q uint32) float32 { return float32(q)/axisMask*2 - 1 }
	return mgl32.Vec3{f(x), f(y), f(z)}
}

// PackTexCoord stores u in the high half-word and v in the low half-word.
func PackTexCoord(uv mgl32.Vec2) uint32 {
	u := float16.Fromfloat32(uv.X()).Bits()
	v := float16.Fromfloat32(uv.Y()).Bits()
	return uint32(u)<<16 | uint32(v)
}

func UnpackTexCoord(p uint32) mgl32.Vec2 {
	u := float16.Frombits(uint16(p >> 16)).Float32()
	v := float16.Frombits(uint16(p)).Float32()
	return mgl32.Vec2{u, v}
}

// AppendBytes appends the little-endian wire form of vs to dst.
func AppendBytes(dst []byte, vs []PackedVertex) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, v.Position)
		dst = binary.LittleEndian.AppendUint32(dst, v.Normal)
		dst = binary.LittleEndian.AppendUint32(dst, v.TexCoord)
	}
	return dst
}

// AppendIndexBytes appends the little-endian wire form of indices to dst.
func AppendIndexBytes(dst []byte, indices []uint32) []byte {
	for _, i := range indices {
		dst = binary.LittleEndian.AppendUint32(dst, i)
	}
	return dst
}
