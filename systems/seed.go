package systems

// DefaultSeedRadius is the size of the diamond-shaped B seed written by Reset.
const DefaultSeedRadius = 10

// ResetCell returns the initial value of pixel (x, y) on a w×h grid.
//
// A Manhattan diamond, stretched 4× horizontally, is seeded with B around the
// grid centre. Δb starts at 1 as a sentinel; the first BeginStep clears it.
func ResetCell(x, y, w, h, radius int) Cell {
	ox := x - w/2
	oy := y - h/2
	if absInt(ox/4-absInt(oy))+absInt(oy) <= radius {
		return Cell{A: 1, B: 1, DA: 0, DB: 1}
	}
	return Cell{A: 1, B: 0, DA: 0, DB: 1}
}

// ResetRow writes the initial conditions for row y into dst.
func ResetRow(dst []float32, y, w, h, radius int) {
	for x := 0; x < w; x++ {
		putCell(dst[x*Channels:x*Channels+Channels], ResetCell(x, y, w, h, radius))
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
