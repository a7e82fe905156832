package mesh

import "github.com/go-gl/mathgl/mgl32"

type Face int

const (
	Left   Face = iota // -X
	Right              // +X
	Bottom             // -Y
	Top                // +Y
	Back               // -Z
	Front              // +Z
)

var faceNames = [...]string{"LEFT", "RIGHT", "BOTTOM", "TOP", "BACK", "FRONT"}

func (f Face) String() string { return faceNames[f] }

type faceDef struct {
	dir     [3]int
	normal  mgl32.Vec3
	corners [4][3]int
}

// Corners are clockwise when seen from outside the voxel; the renderer
// treats clockwise as front facing and culls back faces.
var faces = [6]faceDef{
	Left: {
		dir:     [3]int{-1, 0, 0},
		normal:  mgl32.Vec3{-1, 0, 0},
		corners: [4][3]int{{0, 0, 0}, {0, 1, 0}, {0, 1, 1}, {0, 0, 1}},
	},
	Right: {
		dir:     [3]int{1, 0, 0},
		normal:  mgl32.Vec3{1, 0, 0},
		corners: [4][3]int{{1, 0, 0}, {1, 0, 1}, {1, 1, 1}, {1, 1, 0}},
	},
	Bottom: {
		dir:     [3]int{0, -1, 0},
		normal:  mgl32.Vec3{0, -1, 0},
		corners: [4][3]int{{0, 0, 0}, {0, 0, 1}, {1, 0, 1}, {1, 0, 0}},
	},
	Top: {
		dir:     [3]int{0, 1, 0},
		normal:  mgl32.Vec3{0, 1, 0},
		corners: [4][3]int{{0, 1, 0}, {1, 1, 0}, {1, 1, 1}, {0, 1, 1}},
	},
	Back: {
		dir:     [3]int{0, 0, -1},
		normal:  mgl32.Vec3{0, 0, -1},
		corners: [4][3]int{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
	},
	Front: {
		dir:     [3]int{0, 0, 1},
		normal:  mgl32.Vec3{0, 0, 1},
		corners: [4][3]int{{0, 0, 1}, {0, 1, 1}, {1, 1, 1}, {1, 0, 1}},
	},
}

var faceUVs = [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// Normal returns the outward unit normal of f.
func (f Face) Normal() mgl32.Vec3 { return faces[f].normal }
