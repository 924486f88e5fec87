package compute

import (
	"sync/atomic"
	"testing"
)

func TestRowPoolCoversEveryRowOnce(t *testing.T) {
	for _, rows := range []int{1, 7, parallelRowThreshold, 257} {
		pool := NewRowPool(4)
		hits := make([]int32, rows)

		pool.Run(rows, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				atomic.AddInt32(&hits[y], 1)
			}
		})
		pool.Stop()

		for y, n := range hits {
			if n != 1 {
				t.Errorf("rows=%d: row %d visited %d times", rows, y, n)
			}
		}
	}
}

func TestRowPoolRestartsAfterStop(t *testing.T) {
	pool := NewRowPool(3)
	var total int64
	count := func(y0, y1 int) { atomic.AddInt64(&total, int64(y1-y0)) }

	pool.Run(100, count)
	pool.Stop()
	pool.Stop()
	pool.Run(100, count)
	pool.Stop()

	if total != 200 {
		t.Errorf("total rows = %d, want 200", total)
	}
}
