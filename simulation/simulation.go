// Package simulation drives the Gray-Scott model on a compute backend: it
// owns the double buffer and the compiled kernels, sequences the phase
// dispatches of each step, and guards the tunable parameters.
//
// A Simulation is not safe for concurrent use. Frame drivers call the
// setters and Update from the same goroutine.
package simulation

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/systems"
	"github.com/pthm-cable/grayscott/telemetry"
)

// State is the lifecycle stage of a Simulation.
type State int

const (
	// StateUninitialized: constructed, grid not yet seeded.
	StateUninitialized State = iota
	// StateReady: seeded and idle between updates.
	StateReady
	// StateStepping: inside Update.
	StateStepping
	// StateUnloaded: resources released; Update fails.
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStepping:
		return "stepping"
	case StateUnloaded:
		return "unloaded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures a Simulation at construction.
type Option func(*Simulation)

// WithParams sets the initial parameters. They are validated by New.
func WithParams(p Params) Option {
	return func(s *Simulation) { s.params = p }
}

// WithSeedRadius sets the size of the initial B seed.
func WithSeedRadius(r int) Option {
	return func(s *Simulation) { s.seedRadius = r }
}

// WithPerfCollector attaches a collector that times each phase.
func WithPerfCollector(pc *telemetry.PerfCollector) Option {
	return func(s *Simulation) { s.perf = pc }
}

// Simulation integrates the model on a backend-resident double buffer.
type Simulation struct {
	backend compute.Backend
	buffers *DoubleBuffer
	kernels map[compute.Phase]compute.KernelHandle

	size       [2]int
	params     Params
	seedRadius int

	steps      int64 // completed steps since the last reset
	needsReset bool
	state      State

	perf *telemetry.PerfCollector
}

// New compiles every kernel and allocates the grid on backend. A kernel that
// fails to compile is fatal; the returned error wraps the backend's
// *compute.CompileError.
func New(backend compute.Backend, width, height int, opts ...Option) (*Simulation, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("simulation size %dx%d: %w", width, height, ErrOutOfRange)
	}

	s := &Simulation{
		backend:    backend,
		kernels:    make(map[compute.Phase]compute.KernelHandle, len(compute.Phases)),
		size:       [2]int{width, height},
		params:     DefaultParams(),
		seedRadius: systems.DefaultSeedRadius,
		needsReset: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	if s.seedRadius < 0 {
		return nil, paramErr("seed_radius", s.seedRadius, ErrOutOfRange)
	}

	for _, phase := range compute.Phases {
		k, err := backend.CompileKernel(phase)
		if err != nil {
			s.releaseKernels()
			return nil, fmt.Errorf("compiling %s kernel: %w", phase, err)
		}
		s.kernels[phase] = k
	}

	buffers, err := NewDoubleBuffer(backend, width, height)
	if err != nil {
		s.releaseKernels()
		return nil, err
	}
	s.buffers = buffers

	res := []float32{float32(width), float32(height)}
	for _, k := range s.kernels {
		backend.SetUniform(k, compute.UniformResolution, res...)
	}
	backend.SetUniform(s.kernels[compute.PhaseReset], compute.UniformSeedRadius, float32(s.seedRadius))

	slog.Debug("simulation created",
		"backend", backend.Name(),
		"width", width,
		"height", height,
	)
	return s, nil
}

// ResetSimulation schedules a reset at the start of the next Update.
func (s *Simulation) ResetSimulation() {
	s.needsReset = true
}

// ForceResetSimulation seeds the grid immediately and zeroes the clock.
func (s *Simulation) ForceResetSimulation() error {
	if s.state == StateUnloaded {
		return ErrUnloaded
	}
	if err := s.dispatch(compute.PhaseReset); err != nil {
		return err
	}
	s.steps = 0
	s.needsReset = false
	if s.state == StateUninitialized {
		s.state = StateReady
	}
	return nil
}

// Update advances one frame: push uniforms from a single parameter
// snapshot, perform a pending reset, run StepsPerFrame steps and render the
// result to the canvas.
func (s *Simulation) Update() error {
	switch s.state {
	case StateUnloaded:
		return ErrUnloaded
	case StateStepping:
		return ErrBusy
	}

	p := s.params
	s.pushUniforms(p)

	prev := s.state
	s.state = StateStepping
	err := s.update(p)
	if s.state == StateStepping {
		s.state = StateReady
	}
	if err != nil && prev == StateUninitialized && s.needsReset {
		s.state = StateUninitialized
	}
	return err
}

func (s *Simulation) update(p Params) error {
	if s.needsReset {
		if err := s.ForceResetSimulation(); err != nil {
			return err
		}
	}
	if err := s.simulateSteps(p.StepsPerFrame, p.DiffuseRadius); err != nil {
		return err
	}
	return s.renderResults()
}

// SimulateSteps runs n steps with the current parameters and no display.
func (s *Simulation) SimulateSteps(n int) error {
	if s.state == StateUnloaded {
		return ErrUnloaded
	}
	p := s.params
	s.pushUniforms(p)
	return s.simulateSteps(n, p.DiffuseRadius)
}

func (s *Simulation) simulateSteps(n, radius int) error {
	for i := 0; i < n; i++ {
		if err := s.step(radius); err != nil {
			return err
		}
	}
	return nil
}

// step runs BeginStep, radius Diffuse passes and React.
func (s *Simulation) step(radius int) error {
	if err := s.dispatch(compute.PhaseBeginStep); err != nil {
		return err
	}
	for i := 0; i < radius; i++ {
		if err := s.dispatch(compute.PhaseDiffuse); err != nil {
			return err
		}
	}
	if err := s.dispatch(compute.PhaseReact); err != nil {
		return err
	}
	s.steps++
	return nil
}

// dispatch runs one full-grid pass into the write buffer, then swaps so the
// result becomes the read buffer.
func (s *Simulation) dispatch(phase compute.Phase) error {
	s.perf.StartPhase(phase.String())
	if err := s.backend.Dispatch(s.kernels[phase]); err != nil {
		return fmt.Errorf("dispatch %s: %w", phase, err)
	}
	s.buffers.Swap()
	return nil
}

// RenderResults runs the display kernel over the current grid.
func (s *Simulation) RenderResults() error {
	if s.state == StateUnloaded {
		return ErrUnloaded
	}
	s.backend.SetUniform(s.kernels[compute.PhaseDisplay], compute.UniformDisplayMode, displayMode(s.params))
	return s.renderResults()
}

func (s *Simulation) renderResults() error {
	s.perf.StartPhase(compute.PhaseDisplay.String())
	s.backend.BindReadTexture(s.buffers.Read())
	s.backend.BindWriteTarget(nil)
	err := s.backend.Dispatch(s.kernels[compute.PhaseDisplay])
	s.buffers.Bind()
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", compute.PhaseDisplay, err)
	}
	return nil
}

func (s *Simulation) pushUniforms(p Params) {
	b := s.backend
	b.SetUniform(s.kernels[compute.PhaseReact], compute.UniformFeedRate, float32(p.FeedRate))
	b.SetUniform(s.kernels[compute.PhaseReact], compute.UniformRemoveRate, float32(p.RemoveRate))
	b.SetUniform(s.kernels[compute.PhaseDiffuse], compute.UniformDiffuseRateB, float32(p.DiffuseRateB))
	b.SetUniform(s.kernels[compute.PhaseDisplay], compute.UniformDisplayMode, displayMode(p))
}

func displayMode(p Params) float32 {
	if p.UseFancyRendering {
		return float32(systems.DisplayFancy)
	}
	return float32(systems.DisplayPlain)
}

// set applies a validated change; on error nothing is modified.
func (s *Simulation) set(key string, value any) error {
	next, err := s.params.With(key, value)
	if err != nil {
		return err
	}
	s.params = next
	return nil
}

// SetParameter sets key from loosely typed input such as a UI control or a
// decoded JSON message.
func (s *Simulation) SetParameter(key string, value any) error {
	return s.set(key, value)
}

// SetParams replaces every parameter at once if p is valid.
func (s *Simulation) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}

func (s *Simulation) SetStepsPerFrame(n int) error    { return s.set(KeyStepsPerFrame, n) }
func (s *Simulation) SetDiffuseRadius(n int) error    { return s.set(KeyDiffuseRadius, n) }
func (s *Simulation) SetFeedRate(v float64) error     { return s.set(KeyFeedRate, v) }
func (s *Simulation) SetRemoveRate(v float64) error   { return s.set(KeyRemoveRate, v) }
func (s *Simulation) SetDiffuseRateB(v float64) error { return s.set(KeyDiffuseRateB, v) }

func (s *Simulation) SetUseFancyRendering(on bool) error {
	return s.set(KeyUseFancyRendering, on)
}

// Params returns a copy of the current parameters.
func (s *Simulation) Params() Params { return s.params }

func (s *Simulation) StepsPerFrame() int      { return s.params.StepsPerFrame }
func (s *Simulation) DiffuseRadius() int      { return s.params.DiffuseRadius }
func (s *Simulation) FeedRate() float64       { return s.params.FeedRate }
func (s *Simulation) RemoveRate() float64     { return s.params.RemoveRate }
func (s *Simulation) DiffuseRateB() float64   { return s.params.DiffuseRateB }
func (s *Simulation) UseFancyRendering() bool { return s.params.UseFancyRendering }

// Size returns a copy of the grid dimensions.
func (s *Simulation) Size() [2]int { return s.size }

func (s *Simulation) Width() int  { return s.size[0] }
func (s *Simulation) Height() int { return s.size[1] }

// SimulationTime is the simulated time since the last reset.
func (s *Simulation) SimulationTime() float64 {
	return float64(s.steps) * TimeStep
}

// Steps is the number of completed steps since the last reset.
func (s *Simulation) Steps() int64 { return s.steps }

// NeedsReset reports whether a reset is pending.
func (s *Simulation) NeedsReset() bool { return s.needsReset }

func (s *Simulation) State() State { return s.state }

// Backend returns the backend the simulation runs on.
func (s *Simulation) Backend() compute.Backend { return s.backend }

// CanvasSurface is the colour target written by the display kernel.
func (s *Simulation) CanvasSurface() compute.Surface {
	return s.backend.Canvas()
}

// ReadState copies the most recently written grid to host memory as
// interleaved (a, b, Δa, Δb) values.
func (s *Simulation) ReadState() ([]float32, error) {
	if s.state == StateUnloaded {
		return nil, ErrUnloaded
	}
	data, err := s.backend.ReadFrameBuffer(s.buffers.Read())
	if err != nil {
		return nil, fmt.Errorf("reading grid: %w", err)
	}
	return data, nil
}

// SetPerfCollector attaches or detaches (nil) phase timing.
func (s *Simulation) SetPerfCollector(pc *telemetry.PerfCollector) {
	s.perf = pc
}

// Unload releases the kernels and buffers. The backend stays open.
func (s *Simulation) Unload() {
	if s.state == StateUnloaded {
		return
	}
	s.releaseKernels()
	if s.buffers != nil {
		s.buffers.Release()
	}
	s.state = StateUnloaded
}

func (s *Simulation) releaseKernels() {
	for phase, k := range s.kernels {
		s.backend.ReleaseKernel(k)
		delete(s.kernels, phase)
	}
}
