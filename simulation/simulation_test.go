package simulation

import (
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/systems"
	"github.com/pthm-cable/grayscott/telemetry"
)

const testW, testH = 48, 32

func newTestSim(t *testing.T, opts ...Option) *Simulation {
	t.Helper()
	backend := compute.NewCPUBackend(testW, testH, 2)
	t.Cleanup(func() { backend.Close() })

	sim, err := New(backend, testW, testH, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(sim.Unload)
	return sim
}

func readField(t *testing.T, sim *Simulation) *systems.Field {
	t.Helper()
	data, err := sim.ReadState()
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	return &systems.Field{W: sim.Width(), H: sim.Height(), Data: data}
}

func TestNewDefaults(t *testing.T) {
	sim := newTestSim(t)

	if sim.State() != StateUninitialized || !sim.NeedsReset() {
		t.Errorf("state = %s needsReset = %v, want uninitialized with pending reset", sim.State(), sim.NeedsReset())
	}
	if sim.Params() != DefaultParams() {
		t.Errorf("params = %+v, want defaults", sim.Params())
	}
	if sim.SimulationTime() != 0 {
		t.Errorf("time = %v, want 0", sim.SimulationTime())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	backend := compute.NewCPUBackend(8, 8, 1)
	defer backend.Close()

	if _, err := New(backend, 0, 8); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("zero width: %v", err)
	}

	bad := DefaultParams()
	bad.StepsPerFrame = 0
	if _, err := New(backend, 8, 8, WithParams(bad)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("bad params: %v", err)
	}
}

func TestUpdateAdvancesTime(t *testing.T) {
	sim := newTestSim(t)

	if err := sim.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sim.State() != StateReady || sim.NeedsReset() {
		t.Errorf("after update state = %s needsReset = %v", sim.State(), sim.NeedsReset())
	}
	want := float64(DefaultStepsPerFrame) * TimeStep
	if got := sim.SimulationTime(); math.Abs(got-want) > 1e-9 {
		t.Errorf("time after one update = %v, want %v", got, want)
	}

	if err := sim.Update(); err != nil {
		t.Fatal(err)
	}
	if got := sim.SimulationTime(); math.Abs(got-2*want) > 1e-9 {
		t.Errorf("time after two updates = %v, want %v", got, 2*want)
	}
}

func TestResetIsLazyAndIdempotent(t *testing.T) {
	sim := newTestSim(t)
	if err := sim.Update(); err != nil {
		t.Fatal(err)
	}
	if err := sim.SimulateSteps(10); err != nil {
		t.Fatal(err)
	}

	sim.ResetSimulation()
	sim.ResetSimulation()
	if sim.SimulationTime() == 0 {
		t.Error("ResetSimulation must not reset immediately")
	}

	if err := sim.ForceResetSimulation(); err != nil {
		t.Fatal(err)
	}
	first := readField(t, sim)
	if err := sim.ForceResetSimulation(); err != nil {
		t.Fatal(err)
	}
	second := readField(t, sim)

	if sim.SimulationTime() != 0 || sim.NeedsReset() {
		t.Errorf("after force reset time = %v needsReset = %v", sim.SimulationTime(), sim.NeedsReset())
	}
	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("reset not idempotent at %d: %v vs %v", i, first.Data[i], second.Data[i])
		}
	}
	if c := first.At(testW/2, testH/2); c != (systems.Cell{A: 1, B: 1, DA: 0, DB: 1}) {
		t.Errorf("centre after reset = %+v", c)
	}
}

func TestRepeatedResetMatchesSingleReset(t *testing.T) {
	run := func(resets int) *Simulation {
		sim := newTestSim(t)
		if err := sim.Update(); err != nil {
			t.Fatal(err)
		}
		if err := sim.SimulateSteps(10); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < resets; i++ {
			sim.ResetSimulation()
		}
		if err := sim.Update(); err != nil {
			t.Fatal(err)
		}
		return sim
	}

	once := run(1)
	twice := run(2)

	want := float64(once.StepsPerFrame()) * TimeStep
	for name, sim := range map[string]*Simulation{"once": once, "twice": twice} {
		if got := sim.SimulationTime(); math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: time after post-reset frame = %v, want %v", name, got, want)
		}
		if sim.NeedsReset() {
			t.Errorf("%s: reset still pending after Update", name)
		}
	}

	a, b := readField(t, once), readField(t, twice)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("grids differ at %d: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestStepInvariants(t *testing.T) {
	sim := newTestSim(t)
	if err := sim.SetFeedRate(0.035); err != nil {
		t.Fatal(err)
	}
	if err := sim.SetRemoveRate(0.065); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := sim.Update(); err != nil {
			t.Fatal(err)
		}
	}

	f := readField(t, sim)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			c := f.At(x, y)
			if c.A < 0 || c.A > 1 || c.B < 0 || c.B > 1 {
				t.Fatalf("cell (%d,%d) out of [0,1]: %+v", x, y, c)
			}
		}
	}
	if c := f.At(testW/2, testH/2); c.B <= 0 {
		t.Errorf("centre B died out: %+v", c)
	}
	// Rows more than 5 from the centre start with no B on the centre column.
	if c := f.At(testW/2, testH/2+8); c.B <= 0 {
		t.Errorf("B did not diffuse outward: %+v", c)
	}
}

func TestSettersRejectWithoutMutation(t *testing.T) {
	sim := newTestSim(t)
	before := sim.Params()

	checks := []struct {
		name string
		err  error
		want error
	}{
		{"steps 0", sim.SetStepsPerFrame(0), ErrOutOfRange},
		{"steps 9", sim.SetStepsPerFrame(9), ErrOutOfRange},
		{"steps 4.5", sim.SetParameter(KeyStepsPerFrame, 4.5), ErrNotInteger},
		{"steps abc", sim.SetParameter(KeyStepsPerFrame, "abc"), ErrWrongType},
		{"radius -1", sim.SetDiffuseRadius(-1), ErrOutOfRange},
		{"feed -1", sim.SetFeedRate(-1), ErrOutOfRange},
		{"remove NaN", sim.SetRemoveRate(math.NaN()), ErrOutOfRange},
		{"rateB 1.01", sim.SetDiffuseRateB(1.01), ErrOutOfRange},
		{"rateB -0.01", sim.SetDiffuseRateB(-0.01), ErrOutOfRange},
		{"fancy 1", sim.SetParameter(KeyUseFancyRendering, 1), ErrWrongType},
	}
	for _, c := range checks {
		if !errors.Is(c.err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, c.err, c.want)
		}
	}
	if sim.Params() != before {
		t.Errorf("params mutated by rejected setters: %+v", sim.Params())
	}

	if err := sim.SetStepsPerFrame(8); err != nil || sim.StepsPerFrame() != 8 {
		t.Errorf("SetStepsPerFrame(8) = %v, value %d", err, sim.StepsPerFrame())
	}
	if err := sim.SetDiffuseRateB(1); err != nil || sim.DiffuseRateB() != 1 {
		t.Errorf("SetDiffuseRateB(1) = %v", err)
	}
	if err := sim.SetUseFancyRendering(true); err != nil || !sim.UseFancyRendering() {
		t.Errorf("SetUseFancyRendering(true) = %v", err)
	}
}

func TestSizeReturnsCopy(t *testing.T) {
	sim := newTestSim(t)
	size := sim.Size()
	size[0] = 1
	if sim.Width() != testW || sim.Size()[0] != testW {
		t.Errorf("width changed through Size(): %d", sim.Width())
	}
}

func TestDisplayShowsLatestBuffer(t *testing.T) {
	sim := newTestSim(t)
	if err := sim.Update(); err != nil {
		t.Fatal(err)
	}

	f := readField(t, sim)
	img, err := compute.SurfaceImage(sim.CanvasSurface())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][2]int{{testW / 2, testH / 2}, {0, 0}, {testW/2 + 20, testH / 2}} {
		want := systems.DisplayColor(f.At(p[0], p[1]), systems.DisplayPlain)
		if got := img.RGBAAt(p[0], p[1]); got != want {
			t.Errorf("pixel %v = %+v, want %+v from current grid", p, got, want)
		}
	}
}

func TestUnload(t *testing.T) {
	sim := newTestSim(t)
	sim.Unload()
	sim.Unload()

	if err := sim.Update(); !errors.Is(err, ErrUnloaded) {
		t.Errorf("Update after Unload = %v, want ErrUnloaded", err)
	}
	if _, err := sim.ReadState(); !errors.Is(err, ErrUnloaded) {
		t.Errorf("ReadState after Unload = %v", err)
	}
}

func TestPerfCollectorSeesPhases(t *testing.T) {
	pc := telemetry.NewPerfCollector(4)
	sim := newTestSim(t, WithPerfCollector(pc))

	pc.StartFrame()
	if err := sim.Update(); err != nil {
		t.Fatal(err)
	}
	pc.EndFrame()

	stats := pc.Stats()
	// reset + steps × (begin + radius × diffuse + react) + display
	want := 1 + DefaultStepsPerFrame*(2+DefaultDiffuseRadius) + 1
	if stats.AvgDispatches != float64(want) {
		t.Errorf("dispatches = %v, want %d", stats.AvgDispatches, want)
	}
	for _, phase := range []string{telemetry.PhaseReset, telemetry.PhaseDiffuse, telemetry.PhaseDisplay} {
		if _, ok := stats.PhaseAvg[phase]; !ok {
			t.Errorf("phase %s not recorded", phase)
		}
	}
}

// failingBackend fails to compile one kernel and counts releases.
type failingBackend struct {
	*compute.CPUBackend
	failOn   compute.Phase
	released int
}

func (b *failingBackend) CompileKernel(p compute.Phase) (compute.KernelHandle, error) {
	if p == b.failOn {
		return nil, compute.NewCompileError(p.String(), "void main() {}", "0:1: error")
	}
	return b.CPUBackend.CompileKernel(p)
}

func (b *failingBackend) ReleaseKernel(h compute.KernelHandle) {
	b.released++
	b.CPUBackend.ReleaseKernel(h)
}

func TestNewSurfacesCompileError(t *testing.T) {
	b := &failingBackend{CPUBackend: compute.NewCPUBackend(8, 8, 1), failOn: compute.PhaseReact}
	defer b.Close()

	sim, err := New(b, 8, 8)
	if sim != nil {
		t.Error("expected nil simulation")
	}
	var ce *compute.CompileError
	if !errors.As(err, &ce) || ce.Kernel != "react" {
		t.Fatalf("New error = %v, want CompileError for react", err)
	}
	// reset, begin_step and diffuse were compiled before react failed.
	if b.released != 3 {
		t.Errorf("released %d kernels, want 3", b.released)
	}
}
