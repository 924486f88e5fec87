package systems

import (
	"image/color"
	"math"
)

// DisplayMode selects the colour curve used by the Display kernel.
type DisplayMode int

const (
	// DisplayPlain maps A to green and B to blue.
	DisplayPlain DisplayMode = iota
	// DisplayFancy highlights fronts where B is changing fastest.
	DisplayFancy
)

// deltaGain scales Δb before squaring in fancy mode.
const deltaGain = 40

// DisplayRGBA returns the un-clamped colour of a cell.
func DisplayRGBA(c Cell, mode DisplayMode) (r, g, b, a float32) {
	if mode == DisplayFancy {
		edge := c.DB * deltaGain
		edge *= edge
		return c.A*edge + edge,
			c.B + edge + 0.1*(1-c.A) + edge,
			(1 - c.A) - 0.5*(c.B+edge) + edge,
			1 + edge
	}
	inv := 1 - c.A
	invB := 1 - c.B
	invB2 := invB * invB
	return 0, inv * inv, 1 - invB2*invB2, 1
}

// DisplayColor converts a cell to an 8-bit colour.
func DisplayColor(c Cell, mode DisplayMode) color.RGBA {
	r, g, b, a := DisplayRGBA(c, mode)
	return color.RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: toByte(a)}
}

// DisplayRow colours row y of src into dst, a slice of 4·W bytes.
func DisplayRow(src *Field, dst []uint8, y int, mode DisplayMode) {
	row := src.Row(y)
	for i := 0; i < len(row); i += Channels {
		col := DisplayColor(Cell{A: row[i], B: row[i+1], DA: row[i+2], DB: row[i+3]}, mode)
		dst[i] = col.R
		dst[i+1] = col.G
		dst[i+2] = col.B
		dst[i+3] = col.A
	}
}

func toByte(v float32) uint8 {
	if v != v {
		return 0
	}
	return uint8(math.Round(float64(clamp01(v)) * 255))
}
