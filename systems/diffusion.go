package systems

// Diffusion weights for the 3×3 blur. The centre cell is excluded.
const (
	OrthogonalWeight = 0.25
	DiagonalWeight   = 0.125
	TotalWeight      = 4*OrthogonalWeight + 4*DiagonalWeight

	// DiffuseRateA is fixed; only B's rate is tunable.
	DiffuseRateA = 1.0
)

// BeginStep keeps the concentrations and clears last step's deltas.
func BeginStep(c Cell) Cell {
	return Cell{A: c.A, B: c.B}
}

// BeginStepRow applies BeginStep to row y of src, writing into dst.
func BeginStepRow(src *Field, dst []float32, y int) {
	row := src.Row(y)
	for i := 0; i < len(row); i += Channels {
		dst[i] = row[i]
		dst[i+1] = row[i+1]
		dst[i+2] = 0
		dst[i+3] = 0
	}
}

// Diffuse runs one blur pass at (x, y). The difference between the weighted
// neighbour mean and the centre, scaled per species, is added to both the
// concentrations and the delta channels.
func Diffuse(src *Field, x, y int, rateB float32) Cell {
	cur := src.At(x, y)

	var orthA, orthB, diagA, diagB float32
	for _, o := range orthogonalOffsets {
		n := src.At(x+o[0], y+o[1])
		orthA += n.A
		orthB += n.B
	}
	for _, o := range diagonalOffsets {
		n := src.At(x+o[0], y+o[1])
		diagA += n.A
		diagB += n.B
	}

	sumA := OrthogonalWeight*orthA + DiagonalWeight*diagA
	sumB := OrthogonalWeight*orthB + DiagonalWeight*diagB

	dA := (sumA/TotalWeight - cur.A) * DiffuseRateA
	dB := (sumB/TotalWeight - cur.B) * rateB

	return Cell{
		A:  cur.A + dA,
		B:  cur.B + dB,
		DA: cur.DA + dA,
		DB: cur.DB + dB,
	}
}

// DiffuseRow applies Diffuse across row y of src, writing into dst.
func DiffuseRow(src *Field, dst []float32, y int, rateB float32) {
	for x := 0; x < src.W; x++ {
		putCell(dst[x*Channels:x*Channels+Channels], Diffuse(src, x, y, rateB))
	}
}

var orthogonalOffsets = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

var diagonalOffsets = [4][2]int{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
