package mathx

import "math"

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// FloorToCell returns floor(v / size) for a float world coordinate.
func FloorToCell(v float32, size int) int {
	return int(math.Floor(float64(v) / float64(size)))
}

// Chebyshev is the chessboard distance between two grid cells.
func Chebyshev(ax, az, bx, bz int) int {
	return max(AbsInt(ax-bx), AbsInt(az-bz))
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
