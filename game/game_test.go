package game

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/simulation"
	"github.com/pthm-cable/grayscott/telemetry"
)

func newTestGame(t *testing.T, opts Options) *Game {
	t.Helper()
	backend := compute.NewCPUBackend(32, 32, 1)
	t.Cleanup(func() { backend.Close() })

	sim, err := simulation.New(backend, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGameWithOptions(sim, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Unload)
	return g
}

func TestFrameAdvancesAndBlits(t *testing.T) {
	g := newTestGame(t, Options{})

	blits := 0
	for i := 0; i < 3; i++ {
		if err := g.Frame(func() { blits++ }); err != nil {
			t.Fatal(err)
		}
	}
	if blits != 3 || g.FrameCount() != 3 {
		t.Errorf("blits=%d frames=%d, want 3/3", blits, g.FrameCount())
	}
	want := 3 * simulation.DefaultStepsPerFrame * simulation.TimeStep
	if got := g.Simulation().SimulationTime(); math.Abs(got-want) > 1e-9 {
		t.Errorf("time = %v, want %v", got, want)
	}
	if _, ok := g.Perf().PhaseAvg[telemetry.PhaseBlit]; !ok {
		t.Error("blit phase not timed")
	}
}

func TestFrameAppliesControls(t *testing.T) {
	g := newTestGame(t, Options{})
	sim := g.Simulation()

	g.Controls().Post(Control{Type: ControlSet, Key: simulation.KeyFeedRate, Value: 0.045})
	g.Controls().Post(Control{Type: ControlSet, Key: simulation.KeyStepsPerFrame, Value: 4.5})
	g.Controls().Post(Control{Type: ControlSet, Key: simulation.KeyDiffuseRadius, Value: "2"})
	if err := g.Frame(nil); err != nil {
		t.Fatal(err)
	}

	if sim.FeedRate() != 0.045 {
		t.Errorf("feed = %v, want 0.045", sim.FeedRate())
	}
	if sim.StepsPerFrame() != simulation.DefaultStepsPerFrame {
		t.Errorf("invalid steps value was applied: %d", sim.StepsPerFrame())
	}
	if sim.DiffuseRadius() != 2 {
		t.Errorf("radius = %d, want 2", sim.DiffuseRadius())
	}
}

func TestFramePausedDoesNotAdvance(t *testing.T) {
	g := newTestGame(t, Options{})
	if err := g.Frame(nil); err != nil {
		t.Fatal(err)
	}
	before := g.Simulation().SimulationTime()

	g.Controls().Post(Control{Type: ControlPause, Value: true})
	for i := 0; i < 3; i++ {
		if err := g.Frame(nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := g.Simulation().SimulationTime(); got != before {
		t.Errorf("paused time moved from %v to %v", before, got)
	}

	g.Controls().Post(Control{Type: ControlStep})
	if err := g.Frame(nil); err != nil {
		t.Fatal(err)
	}
	if g.Simulation().SimulationTime() <= before {
		t.Error("single step did not advance")
	}

	g.Controls().Post(Control{Type: ControlReset})
	g.Controls().Post(Control{Type: ControlPause, Value: false})
	if err := g.Frame(nil); err != nil {
		t.Fatal(err)
	}
	want := simulation.DefaultStepsPerFrame * simulation.TimeStep
	if got := g.Simulation().SimulationTime(); math.Abs(got-want) > 1e-9 {
		t.Errorf("time after reset frame = %v, want %v", got, want)
	}
}

func TestResetWhilePausedWaitsForStep(t *testing.T) {
	g := newTestGame(t, Options{})
	sim := g.Simulation()
	for i := 0; i < 5; i++ {
		if err := g.Frame(nil); err != nil {
			t.Fatal(err)
		}
	}
	before := sim.SimulationTime()

	g.Controls().Post(Control{Type: ControlPause, Value: true})
	g.Controls().Post(Control{Type: ControlReset})
	for i := 0; i < 3; i++ {
		if err := g.Frame(nil); err != nil {
			t.Fatal(err)
		}
	}
	if !sim.NeedsReset() {
		t.Error("reset ran while paused")
	}
	if got := sim.SimulationTime(); got != before {
		t.Errorf("paused time = %v, want %v", got, before)
	}

	g.Controls().Post(Control{Type: ControlStep})
	if err := g.Frame(nil); err != nil {
		t.Fatal(err)
	}
	if sim.NeedsReset() {
		t.Error("reset still pending after a stepping frame")
	}
	want := simulation.DefaultStepsPerFrame * simulation.TimeStep
	if got := sim.SimulationTime(); math.Abs(got-want) > 1e-9 {
		t.Errorf("time after step = %v, want %v", got, want)
	}
}

func TestStatsSamplingAndOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var samples []telemetry.FieldStats

	backend := compute.NewCPUBackend(32, 32, 1)
	defer backend.Close()
	sim, err := simulation.New(backend, 32, 32)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGameWithOptions(sim, cfg, Options{
		OutputDir:     dir,
		StatsInterval: 2,
		OnStats:       func(s telemetry.FieldStats) { samples = append(samples, s) },
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := g.Frame(nil); err != nil {
			t.Fatal(err)
		}
	}
	g.Unload()

	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2 (frames 2 and 4)", len(samples))
	}
	if samples[0].Frame != 2 || samples[1].Frame != 4 {
		t.Errorf("sample frames = %d, %d", samples[0].Frame, samples[1].Frame)
	}
	if samples[1].MeanA <= 0 || samples[1].MaxB <= 0 {
		t.Errorf("implausible stats %+v", samples[1])
	}
	if last, ok := g.LastStats(); !ok || last.Frame != 4 {
		t.Errorf("LastStats = %+v, %v", last, ok)
	}

	for _, name := range []string{"stats.csv", "perf.csv", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestApplyConfig(t *testing.T) {
	g := newTestGame(t, Options{})
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	sc := cfg.Simulation
	sc.FeedRate = 0.03
	sc.FancyRendering = true
	if err := ApplyConfig(g.Simulation(), sc); err != nil {
		t.Fatal(err)
	}
	if g.Simulation().FeedRate() != 0.03 || !g.Simulation().UseFancyRendering() {
		t.Errorf("config not applied: %+v", g.Simulation().Params())
	}

	sc.DiffuseRadius = 0
	if err := ApplyConfig(g.Simulation(), sc); err == nil {
		t.Error("invalid config accepted")
	}
}
