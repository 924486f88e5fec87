package telemetry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// DefaultFPSWindow is the number of frame intervals averaged by FPSCounter.
const DefaultFPSWindow = 20

// FPSCounter estimates frames per second from the last N frame intervals.
// The window starts filled with zero intervals, so early readings run high
// until N frames have been seen.
type FPSCounter struct {
	window  int
	deltas  []float64 // seconds, oldest first, always window long
	samples int
	last    time.Time
	now     func() time.Time
}

// NewFPSCounter creates a counter over the given window (default 20).
func NewFPSCounter(window int) *FPSCounter {
	return NewFPSCounterWithClock(window, time.Now)
}

// NewFPSCounterWithClock creates a counter reading time from now.
func NewFPSCounterWithClock(window int, now func() time.Time) *FPSCounter {
	if window < 1 {
		window = DefaultFPSWindow
	}
	return &FPSCounter{
		window: window,
		deltas: make([]float64, window),
		last:   now(),
		now:    now,
	}
}

// Update records the interval since the previous call (or construction),
// evicting the oldest one.
func (f *FPSCounter) Update() {
	t := f.now()
	d := t.Sub(f.last).Seconds()
	f.last = t

	copy(f.deltas, f.deltas[1:])
	f.deltas[f.window-1] = d
	if f.samples < f.window {
		f.samples++
	}
}

// FPS returns window / Σinterval. With no elapsed time it returns +Inf.
func (f *FPSCounter) FPS() float64 {
	sum := floats.Sum(f.deltas)
	if sum <= 0 {
		return math.Inf(1)
	}
	return float64(f.window) / sum
}

// Samples returns the number of real intervals recorded, up to the window.
func (f *FPSCounter) Samples() int {
	return f.samples
}

// Window returns the number of intervals averaged.
func (f *FPSCounter) Window() int {
	return f.window
}
