package camera

import (
	"math"
	"testing"
)

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.01
}

func TestNewFitsGrid(t *testing.T) {
	cam := New(400, 400, 200, 100)

	if cam.X != 100 || cam.Y != 50 {
		t.Errorf("expected camera at (100, 50), got (%f, %f)", cam.X, cam.Y)
	}
	// max(400/200, 400/100) = 4
	if cam.Zoom != 4 || cam.MinZoom != 4 {
		t.Errorf("expected fit zoom 4, got zoom=%f min=%f", cam.Zoom, cam.MinZoom)
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	cam := New(400, 400, 400, 400)
	cam.SetZoom(2)

	testCases := []struct{ sx, sy float32 }{
		{200, 200},
		{10, 10},
		{390, 300},
	}
	for _, tc := range testCases {
		wx, wy := cam.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := cam.WorldToScreen(wx, wy)
		if !near(sx, tc.sx) || !near(sy, tc.sy) {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, wx, wy, sx, sy)
		}
	}
}

func TestScreenToWorldWraps(t *testing.T) {
	cam := New(100, 100, 100, 100)
	cam.X, cam.Y = 10, 10

	// Top-left corner of the view is 50 cells up-left of the center.
	wx, wy := cam.ScreenToWorld(0, 0)
	if !near(wx, 60) || !near(wy, 60) {
		t.Errorf("expected wrapped (60, 60), got (%f, %f)", wx, wy)
	}
}

func TestCellAt(t *testing.T) {
	cam := New(64, 64, 32, 32) // zoom 2
	x, y := cam.CellAt(32, 32)
	if x != 16 || y != 16 {
		t.Errorf("center cell = (%d, %d), want (16, 16)", x, y)
	}
	x, y = cam.CellAt(0, 63)
	if x != 0 || y != 31 {
		t.Errorf("corner cell = (%d, %d), want (0, 31)", x, y)
	}
}

func TestPanWraps(t *testing.T) {
	cam := New(256, 256, 256, 256)
	cam.X = 10

	cam.Pan(-20, 0)
	if !near(cam.X, 246) {
		t.Errorf("expected X to wrap to 246, got %f", cam.X)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(200, 100, 100, 100)

	if cam.MinZoom != 2 {
		t.Errorf("expected MinZoom 2, got %f", cam.MinZoom)
	}
	cam.SetZoom(0.1)
	if cam.Zoom != 2 {
		t.Errorf("expected zoom clamped to 2, got %f", cam.Zoom)
	}
	cam.SetZoom(100)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	cam := New(200, 200, 100, 100)
	wx, wy := cam.ScreenToWorld(50, 150)

	cam.ZoomAt(50, 150, 2)
	if cam.Zoom != 4 {
		t.Fatalf("zoom = %f, want 4", cam.Zoom)
	}
	ax, ay := cam.ScreenToWorld(50, 150)
	if !near(ax, wx) || !near(ay, wy) {
		t.Errorf("anchor moved from (%f,%f) to (%f,%f)", wx, wy, ax, ay)
	}
}

func TestSourceRect(t *testing.T) {
	cam := New(200, 100, 100, 100) // zoom 2, shows 100x50 cells
	cam.X, cam.Y = 10, 50

	r := cam.SourceRect()
	if !near(r.X, -40) || !near(r.Y, 25) || !near(r.Width, 100) || !near(r.Height, 50) {
		t.Errorf("SourceRect = %+v", r)
	}
}

func TestResizeRaisesZoom(t *testing.T) {
	cam := New(100, 100, 100, 100)
	cam.Resize(300, 100)
	if cam.MinZoom != 3 || cam.Zoom != 3 {
		t.Errorf("after resize zoom=%f min=%f, want 3", cam.Zoom, cam.MinZoom)
	}
}

func TestReset(t *testing.T) {
	cam := New(100, 100, 50, 50)
	cam.X, cam.Y = 5, 5
	cam.SetZoom(8)

	cam.Reset()
	if cam.X != 25 || cam.Y != 25 {
		t.Errorf("expected position (25, 25), got (%f, %f)", cam.X, cam.Y)
	}
	if cam.Zoom != 2 {
		t.Errorf("expected zoom 2, got %f", cam.Zoom)
	}
}
