package telemetry

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFPSCounter_SteadyRate(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	fps := NewFPSCounterWithClock(20, clk.now)

	for i := 0; i < 20; i++ {
		clk.advance(100 * time.Millisecond)
		fps.Update()
	}

	if got := fps.FPS(); math.Abs(got-10.0) > 1e-9 {
		t.Errorf("FPS() = %v, want 10", got)
	}
}

func TestFPSCounter_WarmUpDividesByWindow(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	fps := NewFPSCounterWithClock(20, clk.now)

	clk.advance(100 * time.Millisecond)
	fps.Update()

	// 19 zero intervals plus one of 0.1s.
	if got := fps.FPS(); math.Abs(got-200.0) > 1e-9 {
		t.Errorf("FPS() after one frame = %v, want 200", got)
	}
	if fps.Samples() != 1 {
		t.Errorf("Samples() = %d, want 1", fps.Samples())
	}

	for i := 0; i < 9; i++ {
		clk.advance(100 * time.Millisecond)
		fps.Update()
	}
	if got := fps.FPS(); math.Abs(got-20.0) > 1e-9 {
		t.Errorf("FPS() after ten frames = %v, want 20", got)
	}
}

func TestFPSCounter_WindowIsFIFO(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	fps := NewFPSCounterWithClock(4, clk.now)

	for i := 0; i < 4; i++ {
		clk.advance(time.Second)
		fps.Update()
	}
	for i := 0; i < 4; i++ {
		clk.advance(250 * time.Millisecond)
		fps.Update()
	}

	if fps.Samples() != 4 {
		t.Fatalf("Samples() = %d, want 4", fps.Samples())
	}
	if got := fps.FPS(); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("FPS() = %v, want 4 after old samples evicted", got)
	}
}

func TestFPSCounter_ZeroElapsed(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	fps := NewFPSCounterWithClock(0, clk.now)

	if fps.Window() != DefaultFPSWindow {
		t.Errorf("Window() = %d, want %d", fps.Window(), DefaultFPSWindow)
	}
	if got := fps.FPS(); !math.IsInf(got, 1) {
		t.Errorf("FPS() with no samples = %v, want +Inf", got)
	}

	fps.Update()
	fps.Update()
	if got := fps.FPS(); !math.IsInf(got, 1) {
		t.Errorf("FPS() with zero intervals = %v, want +Inf", got)
	}
}
