// Package game is the frame driver core shared by the window, the headless
// runner and the web viewer. Once per frame it applies queued parameter
// changes, advances the simulation unless paused, and samples telemetry.
package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/simulation"
	"github.com/pthm-cable/grayscott/telemetry"
)

// Options configures a Game.
type Options struct {
	LogStats  bool
	OutputDir string

	// StatsInterval is the number of frames between field stats samples;
	// 0 disables sampling.
	StatsInterval int
	FPSWindow     int
	PerfWindow    int

	// OnStats is called with every field stats sample.
	OnStats func(telemetry.FieldStats)
}

// Game owns the per-frame sequencing around one Simulation.
type Game struct {
	sim       *simulation.Simulation
	scheduler Scheduler
	controls  *Mailbox

	fps           *telemetry.FPSCounter
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager

	frame         int64
	logStats      bool
	statsInterval int
	statsCallback func(telemetry.FieldStats)
	lastStats     telemetry.FieldStats
	hasStats      bool
}

// ApplyConfig pushes the configured model parameters through the
// simulation's validated setters.
func ApplyConfig(sim *simulation.Simulation, cfg config.SimulationConfig) error {
	return sim.SetParams(simulation.Params{
		StepsPerFrame:     cfg.StepsPerFrame,
		DiffuseRadius:     cfg.DiffuseRadius,
		FeedRate:          cfg.FeedRate,
		RemoveRate:        cfg.RemoveRate,
		DiffuseRateB:      cfg.DiffuseRateB,
		UseFancyRendering: cfg.FancyRendering,
	})
}

// NewGameWithOptions wraps sim. The game takes ownership of the output
// files; call Unload when done.
func NewGameWithOptions(sim *simulation.Simulation, cfg *config.Config, opts Options) (*Game, error) {
	g := &Game{
		sim:           sim,
		controls:      NewMailbox(),
		fps:           telemetry.NewFPSCounter(opts.FPSWindow),
		perfCollector: telemetry.NewPerfCollector(opts.PerfWindow),
		logStats:      opts.LogStats,
		statsInterval: opts.StatsInterval,
		statsCallback: opts.OnStats,
	}
	sim.SetPerfCollector(g.perfCollector)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	g.outputManager = om
	if cfg != nil {
		if err := om.WriteConfig(cfg); err != nil {
			om.Close()
			return nil, fmt.Errorf("writing config snapshot: %w", err)
		}
	}
	return g, nil
}

// Frame runs one frame. blit, if non-nil, presents the canvas and is timed
// as its own phase.
func (g *Game) Frame(blit func()) error {
	g.applyControls(g.controls.Drain())

	g.perfCollector.StartFrame()
	var err error
	if g.scheduler.ShouldStep() {
		err = g.sim.Update()
	} else {
		err = g.sim.RenderResults()
	}
	if err != nil {
		g.perfCollector.EndFrame()
		return fmt.Errorf("frame %d: %w", g.frame, err)
	}
	if blit != nil {
		g.perfCollector.StartPhase(telemetry.PhaseBlit)
		blit()
	}
	g.perfCollector.EndFrame()
	g.perfCollector.RecordFrame()
	g.fps.Update()

	g.frame++
	g.flushTelemetry()
	return nil
}

func (g *Game) applyControls(p Pending) {
	if p.Empty() {
		return
	}
	for _, key := range p.Keys {
		g.SetParameter(key, p.Params[key])
	}
	if p.Reset {
		g.sim.ResetSimulation()
	}
	if p.Pause != nil {
		g.scheduler.SetPaused(*p.Pause)
	}
	if p.Step {
		g.scheduler.RequestStep()
	}
}

// SetParameter forwards a loosely typed value to the simulation. A rejected
// value is logged and skipped; the previous value stays in effect.
func (g *Game) SetParameter(key string, value any) error {
	err := g.sim.SetParameter(key, value)
	if err != nil {
		var pe *simulation.ParameterError
		if errors.As(err, &pe) {
			slog.Warn("parameter rejected", "key", pe.Name, "value", pe.Value, "error", pe.Err)
		} else {
			slog.Warn("parameter rejected", "key", key, "error", err)
		}
	}
	return err
}

// flushTelemetry samples the grid every statsInterval frames.
func (g *Game) flushTelemetry() {
	if g.statsInterval <= 0 || g.frame%int64(g.statsInterval) != 0 {
		return
	}

	data, err := g.sim.ReadState()
	if err != nil {
		slog.Error("failed to read grid", "error", err)
		return
	}
	stats := telemetry.ComputeFieldStats(data, compute.Channels)
	stats.Frame = g.frame
	stats.SimTime = g.sim.SimulationTime()
	g.lastStats = stats
	g.hasStats = true

	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteStats(stats); err != nil {
			slog.Error("failed to write stats", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, g.frame); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// Controls is the mailbox drained at the start of every frame.
func (g *Game) Controls() *Mailbox { return g.controls }

// Scheduler exposes pause and single-step control for the local driver.
func (g *Game) Scheduler() *Scheduler { return &g.scheduler }

func (g *Game) Simulation() *simulation.Simulation { return g.sim }

// FrameCount is the number of frames run so far.
func (g *Game) FrameCount() int64 { return g.frame }

// FPS is the frame rate over the last FPSWindow frames.
func (g *Game) FPS() float64 { return g.fps.FPS() }

// Perf returns the current performance window.
func (g *Game) Perf() telemetry.PerfStats { return g.perfCollector.Stats() }

// LastStats returns the most recent field stats sample, if any.
func (g *Game) LastStats() (telemetry.FieldStats, bool) {
	return g.lastStats, g.hasStats
}

// Unload closes output files and releases the simulation.
func (g *Game) Unload() {
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	g.sim.Unload()
}
