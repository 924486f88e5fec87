// Package systems holds the numerical model of the Gray-Scott simulation:
// the per-cell phase kernels and the toroidal grid they read from.
//
// Every kernel here is a pure function of a cell, its 8-neighbourhood and a
// few uniforms. The compute backends decide how the kernels are scheduled.
package systems

// Channels is the number of float32 values stored per grid cell.
const Channels = 4

// Cell is one lattice point: concentrations A and B plus the raw change
// applied to them during the current step.
type Cell struct {
	A, B   float32
	DA, DB float32
}

// Field is a W×H grid of cells stored as interleaved RGBA32F values
// (a, b, Δa, Δb) in row-major order, matching the GPU texture layout.
type Field struct {
	W, H int
	Data []float32
}

// NewField allocates a zeroed field.
func NewField(w, h int) *Field {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return &Field{W: w, H: h, Data: make([]float32, w*h*Channels)}
}

// Wrap maps i into [0, n) so the grid behaves as a torus.
func Wrap(i, n int) int {
	return ((i % n) + n) % n
}

// Index returns the offset of the first channel of (x, y). Coordinates must
// already be in range.
func (f *Field) Index(x, y int) int {
	return (y*f.W + x) * Channels
}

// At returns the cell at (x, y), wrapping out-of-range coordinates.
func (f *Field) At(x, y int) Cell {
	i := f.Index(Wrap(x, f.W), Wrap(y, f.H))
	d := f.Data[i : i+Channels : i+Channels]
	return Cell{A: d[0], B: d[1], DA: d[2], DB: d[3]}
}

// Set stores c at (x, y), wrapping out-of-range coordinates.
func (f *Field) Set(x, y int, c Cell) {
	i := f.Index(Wrap(x, f.W), Wrap(y, f.H))
	putCell(f.Data[i:i+Channels:i+Channels], c)
}

// Neighbor returns the cell at offset (dx, dy) from (x, y) on the torus.
func (f *Field) Neighbor(x, y, dx, dy int) Cell {
	return f.At(x+dx, y+dy)
}

// Fill sets every cell to c.
func (f *Field) Fill(c Cell) {
	for i := 0; i < len(f.Data); i += Channels {
		putCell(f.Data[i:i+Channels:i+Channels], c)
	}
}

// Row returns the backing slice for row y.
func (f *Field) Row(y int) []float32 {
	start := y * f.W * Channels
	return f.Data[start : start+f.W*Channels]
}

func putCell(d []float32, c Cell) {
	d[0] = c.A
	d[1] = c.B
	d[2] = c.DA
	d[3] = c.DB
}

// PutCell writes c into the first Channels values of dst.
func PutCell(dst []float32, c Cell) {
	putCell(dst, c)
}
