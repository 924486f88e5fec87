package ui

import (
	"fmt"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/simulation"
)

// slider describes one numeric parameter on the panel.
type slider struct {
	Key      string
	Label    string
	Min, Max float32
	Integer  bool
	Format   string
	Get      func(simulation.Params) float32
}

var sliders = []slider{
	{
		Key: simulation.KeyStepsPerFrame, Label: "Steps / frame",
		Min: simulation.MinStepsPerFrame, Max: simulation.MaxStepsPerFrame, Integer: true, Format: "%.0f",
		Get: func(p simulation.Params) float32 { return float32(p.StepsPerFrame) },
	},
	{
		Key: simulation.KeyDiffuseRadius, Label: "Diffuse radius",
		Min: simulation.MinDiffuseRadius, Max: simulation.MaxDiffuseRadius, Integer: true, Format: "%.0f",
		Get: func(p simulation.Params) float32 { return float32(p.DiffuseRadius) },
	},
	{
		Key: simulation.KeyFeedRate, Label: "Feed rate",
		Min: 0, Max: 0.1, Format: "%.4f",
		Get: func(p simulation.Params) float32 { return float32(p.FeedRate) },
	},
	{
		Key: simulation.KeyRemoveRate, Label: "Remove rate",
		Min: 0, Max: 0.1, Format: "%.4f",
		Get: func(p simulation.Params) float32 { return float32(p.RemoveRate) },
	},
	{
		Key: simulation.KeyDiffuseRateB, Label: "Diffuse rate B",
		Min: 0, Max: 1, Format: "%.3f",
		Get: func(p simulation.Params) float32 { return float32(p.DiffuseRateB) },
	},
}

// change turns a slider movement into a set control. Integer sliders snap
// to the nearest whole value; no control is produced when the snapped value
// matches the current one.
func (s slider) change(current, moved float32) (game.Control, bool) {
	if s.Integer {
		n := int(math.Round(float64(moved)))
		if n == int(math.Round(float64(current))) {
			return game.Control{}, false
		}
		return game.Control{Type: game.ControlSet, Key: s.Key, Value: n}, true
	}
	if moved == current {
		return game.Control{}, false
	}
	return game.Control{Type: game.ControlSet, Key: s.Key, Value: float64(moved)}, true
}

// PanelState is what the panel shows.
type PanelState struct {
	Params simulation.Params
	Paused bool
}

// Panel is the parameter panel on the right edge of the window.
type Panel struct {
	renderer *Renderer
}

// NewPanel creates a panel with the default theme.
func NewPanel() *Panel {
	return &Panel{renderer: NewRenderer()}
}

// Draw renders the panel into bounds and returns the controls the user
// triggered this frame.
func (p *Panel) Draw(bounds rl.Rectangle, state PanelState) []game.Control {
	t := p.renderer.Theme
	x := int32(bounds.X) + t.Padding
	y := int32(bounds.Y) + t.Padding
	width := int32(bounds.Width) - 2*t.Padding

	p.renderer.DrawPanel(int32(bounds.X), int32(bounds.Y), int32(bounds.Width), int32(bounds.Height))
	y = p.renderer.DrawSectionHeader(x, y, "Parameters")

	var controls []game.Control
	for _, s := range sliders {
		current := s.Get(state.Params)
		p.renderer.DrawLabel(x, y, s.Label)
		rl.DrawText(fmt.Sprintf(s.Format, current), x+width-50, y, t.FontSize, t.ValueColor)
		y += t.LineHeight

		moved := gui.SliderBar(
			rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(width), Height: float32(t.SliderHeight)},
			"", "",
			current, s.Min, s.Max,
		)
		if c, ok := s.change(current, moved); ok {
			controls = append(controls, c)
		}
		y += t.SliderHeight + t.Padding
	}

	y += t.Padding
	y = p.renderer.DrawSectionHeader(x, y, "Display")
	fancyLabel := "Fancy: off"
	if state.Params.UseFancyRendering {
		fancyLabel = "Fancy: on"
	}
	if gui.Button(rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(width), Height: 24}, fancyLabel) {
		controls = append(controls, game.Control{
			Type:  game.ControlSet,
			Key:   simulation.KeyUseFancyRendering,
			Value: !state.Params.UseFancyRendering,
		})
	}
	y += 24 + t.Padding

	y = p.renderer.DrawSectionHeader(x, y, "Run")
	half := (width - t.Padding) / 2
	pauseLabel := "Pause"
	if state.Paused {
		pauseLabel = "Resume"
	}
	if gui.Button(rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(half), Height: 24}, pauseLabel) {
		controls = append(controls, game.Control{Type: game.ControlPause, Value: !state.Paused})
	}
	if gui.Button(rl.Rectangle{X: float32(x + half + t.Padding), Y: float32(y), Width: float32(half), Height: 24}, "Step") {
		controls = append(controls, game.Control{Type: game.ControlStep})
	}
	y += 24 + t.Padding
	if gui.Button(rl.Rectangle{X: float32(x), Y: float32(y), Width: float32(width), Height: 24}, "Reset") {
		controls = append(controls, game.Control{Type: game.ControlReset})
	}

	return controls
}
