package ui

import (
	"fmt"
	"image/color"
	"log/slog"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grayscott/camera"
	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/renderer"
)

// Canvas draws a region of the simulation output, in cells, into a screen
// rectangle. The region may extend past the grid edges and wraps.
type Canvas interface {
	Draw(src, dst rl.Rectangle)
	Unload()
}

// NewCanvas wraps the display target of b for drawing.
func NewCanvas(b compute.Backend) (Canvas, error) {
	switch be := b.(type) {
	case *renderer.GPUBackend:
		return gpuCanvas{be.GPUCanvas()}, nil
	case *compute.CPUBackend:
		c, ok := be.Canvas().(*compute.CPUCanvas)
		if !ok {
			return nil, fmt.Errorf("cpu backend canvas is %T", be.Canvas())
		}
		return newTextureCanvas(c), nil
	default:
		return nil, fmt.Errorf("no canvas for %s backend: %w", b.Name(), compute.ErrUnsupported)
	}
}

type gpuCanvas struct {
	*renderer.GPUCanvas
}

// Unload is a no-op; the backend owns the render texture.
func (gpuCanvas) Unload() {}

// textureCanvas uploads CPU canvas pixels into a texture every frame.
type textureCanvas struct {
	src  *compute.CPUCanvas
	tex  rl.Texture2D
	w, h int
}

func newTextureCanvas(src *compute.CPUCanvas) *textureCanvas {
	w, h := src.Size()
	img := rl.GenImageColor(w, h, rl.Black)
	tex := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	rl.SetTextureFilter(tex, rl.FilterPoint)
	rl.SetTextureWrap(tex, rl.WrapRepeat)
	return &textureCanvas{src: src, tex: tex, w: w, h: h}
}

func (c *textureCanvas) Draw(src, dst rl.Rectangle) {
	pix := c.src.Pix()
	if len(pix) == 0 {
		return
	}
	rl.UpdateTexture(c.tex, unsafe.Slice((*color.RGBA)(unsafe.Pointer(&pix[0])), len(pix)/4))
	rl.DrawTexturePro(c.tex, src, dst, rl.Vector2{}, 0, rl.White)
}

func (c *textureCanvas) Unload() {
	rl.UnloadTexture(c.tex)
}

// Window is the interactive frame driver.
type Window struct {
	cfg    *config.Config
	panel  *Panel
	hud    *HUD
	camera *camera.Camera

	// AfterFrame, if set, runs after every frame, e.g. to publish it.
	AfterFrame func(*game.Game) error

	canvasRect rl.Rectangle
	panelRect  rl.Rectangle
}

// Open creates the raylib window. It must be called before a GPU backend
// is created.
func Open(cfg *config.Config) *Window {
	renderer.RouteTraceLog()
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	gridW := float32(cfg.Screen.Width - cfg.Screen.PanelWidth)
	screenH := float32(cfg.Screen.Height)
	return &Window{
		cfg:        cfg,
		panel:      NewPanel(),
		hud:        NewHUD(),
		camera:     camera.New(gridW, screenH, float32(cfg.Derived.GridW), float32(cfg.Derived.GridH)),
		canvasRect: rl.Rectangle{Width: gridW, Height: screenH},
		panelRect:  rl.Rectangle{X: gridW, Width: float32(cfg.Screen.PanelWidth), Height: screenH},
	}
}

// Close closes the window.
func (w *Window) Close() {
	rl.CloseWindow()
}

// Run drives g once per displayed frame until the window is closed or
// maxFrames (if positive) have run.
func (w *Window) Run(g *game.Game, canvas Canvas, maxFrames int) error {
	for !rl.WindowShouldClose() {
		if maxFrames > 0 && g.FrameCount() >= int64(maxFrames) {
			break
		}
		w.handleInput(g)
		if err := g.Frame(func() { w.draw(g, canvas) }); err != nil {
			return err
		}
		if w.AfterFrame != nil {
			if err := w.AfterFrame(g); err != nil {
				return err
			}
		}
	}
	slog.Info("window closed", "frames", g.FrameCount(), "sim_time", g.Simulation().SimulationTime())
	return nil
}

func (w *Window) handleInput(g *game.Game) {
	if rl.IsKeyPressed(rl.KeySpace) {
		g.Scheduler().TogglePause()
	}
	if rl.IsKeyPressed(rl.KeyN) {
		g.Scheduler().RequestStep()
	}
	if rl.IsKeyPressed(rl.KeyR) {
		g.Simulation().ResetSimulation()
	}
	w.handleCameraInput()
}

// handleCameraInput pans with the arrow keys or a right-button drag and
// zooms toward the cursor with the mouse wheel.
func (w *Window) handleCameraInput() {
	const panSpeed = 8.0

	if rl.IsKeyDown(rl.KeyRight) {
		w.camera.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		w.camera.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		w.camera.Pan(0, panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		w.camera.Pan(0, -panSpeed)
	}

	mouse := rl.GetMousePosition()
	if !rl.CheckCollisionPointRec(mouse, w.canvasRect) {
		return
	}
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		w.camera.Pan(-d.X, -d.Y)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		w.camera.ZoomAt(mouse.X-w.canvasRect.X, mouse.Y-w.canvasRect.Y, 1+wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		w.camera.Reset()
	}
}

// cursorCell returns the cell under the mouse, if it is over the canvas.
func (w *Window) cursorCell() (x, y int, ok bool) {
	mouse := rl.GetMousePosition()
	if !rl.CheckCollisionPointRec(mouse, w.canvasRect) {
		return 0, 0, false
	}
	x, y = w.camera.CellAt(mouse.X-w.canvasRect.X, mouse.Y-w.canvasRect.Y)
	return x, y, true
}

func (w *Window) draw(g *game.Game, canvas Canvas) {
	sim := g.Simulation()

	rl.BeginDrawing()
	rl.ClearBackground(w.panel.renderer.Theme.Background)

	src := w.camera.SourceRect()
	canvas.Draw(rl.Rectangle{X: src.X, Y: src.Y, Width: src.Width, Height: src.Height}, w.canvasRect)

	controls := w.panel.Draw(w.panelRect, PanelState{
		Params: sim.Params(),
		Paused: g.Scheduler().Paused(),
	})
	for _, c := range controls {
		if err := g.Controls().Post(c); err != nil {
			slog.Warn("control rejected", "type", c.Type, "error", err)
		}
	}

	stats, ok := g.LastStats()
	cx, cy, overCanvas := w.cursorCell()
	w.hud.Draw(HUDData{
		Title:     w.cfg.Screen.Title,
		Backend:   sim.Backend().Name(),
		FPS:       g.FPS(),
		SimTime:   sim.SimulationTime(),
		Steps:     sim.Steps(),
		Frame:     g.FrameCount(),
		FeedRate:  sim.FeedRate(),
		Coverage:  stats.CoverageB,
		HasStats:  ok,
		Paused:    g.Scheduler().Paused(),
		Zoom:      w.camera.Zoom,
		Cursor:    [2]int{cx, cy},
		HasCursor: overCanvas,
	})

	rl.EndDrawing()
}
