package ui

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds all the data needed to render the HUD.
type HUDData struct {
	Title     string
	Backend   string
	FPS       float64
	SimTime   float64
	Steps     int64
	Frame     int64
	FeedRate  float64
	Coverage  float64 // CoverageB of the last stats sample
	HasStats  bool
	Paused    bool
	Zoom      float32
	Cursor    [2]int // Cell under the mouse
	HasCursor bool
}

// HUD renders the heads-up display over the canvas.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("FPS: %s | t: %.2f | steps: %d | %s", formatFPS(data.FPS), data.SimTime, data.Steps, data.Backend),
		10, 35, 16, rl.LightGray,
	)

	line := fmt.Sprintf("frame: %d | feed: %.4f", data.Frame, data.FeedRate)
	if data.HasStats {
		line += fmt.Sprintf(" | coverage: %.1f%%", data.Coverage*100)
	}
	rl.DrawText(line, 10, 55, 16, rl.LightGray)

	view := fmt.Sprintf("zoom: %.1fx", data.Zoom)
	if data.HasCursor {
		view += fmt.Sprintf(" | cell: %d,%d", data.Cursor[0], data.Cursor[1])
	}
	rl.DrawText(view, 10, 115, 12, rl.Gray)

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	rl.DrawText(status, 10, 75, 16, h.renderer.Theme.StatusColor)
	rl.DrawText("[Space] pause  [N] step  [R] reset  [Home] view", 10, 95, 12, rl.Gray)
}

// formatFPS renders the counter's +Inf sentinel as a dash.
func formatFPS(fps float64) string {
	if math.IsInf(fps, 0) || math.IsNaN(fps) {
		return "-"
	}
	return fmt.Sprintf("%.0f", fps)
}
