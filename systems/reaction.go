package systems

// ReactionChange returns the Gray-Scott change for a cell:
//
//	change = a·b²·(−1, 1) + feed·(1−a, −b) − remove·(0, b)
func ReactionChange(a, b, feed, remove float32) (da, db float32) {
	abb := a * b * b
	da = -abb + feed*(1-a)
	db = abb - feed*b - remove*b
	return da, db
}

// React applies one reaction pass. Concentrations are clamped to [0, 1];
// the delta channels accumulate the unclamped change.
func React(c Cell, feed, remove float32) Cell {
	da, db := ReactionChange(c.A, c.B, feed, remove)
	return Cell{
		A:  clamp01(c.A + da),
		B:  clamp01(c.B + db),
		DA: c.DA + da,
		DB: c.DB + db,
	}
}

// ReactRow applies React across row y of src, writing into dst.
func ReactRow(src *Field, dst []float32, y int, feed, remove float32) {
	row := src.Row(y)
	for i := 0; i < len(row); i += Channels {
		c := React(Cell{A: row[i], B: row[i+1], DA: row[i+2], DB: row[i+3]}, feed, remove)
		putCell(dst[i:i+Channels:i+Channels], c)
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
