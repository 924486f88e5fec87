package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one simulation frame.
const (
	PhaseReset     = "reset"
	PhaseBeginStep = "begin_step"
	PhaseDiffuse   = "diffuse"
	PhaseReact     = "react"
	PhaseDisplay   = "display"
	PhaseBlit      = "blit"
)

// PerfPhases lists the phases in execution order.
var PerfPhases = []string{
	PhaseReset, PhaseBeginStep, PhaseDiffuse, PhaseReact, PhaseDisplay, PhaseBlit,
}

// PerfSample holds timing data for a single frame.
type PerfSample struct {
	FrameDuration time.Duration
	Phases        map[string]time.Duration
	Dispatches    int
}

// PerfCollector tracks per-phase timings over a rolling window of frames.
// A nil collector ignores every call.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	dispatches    int
	frameStart    time.Time
	phaseStart    time.Time
	lastPhase     string

	// Wall-clock interval between RecordFrame calls.
	lastFrameTime time.Time
	frameInterval time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize frames
// (default 60).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartFrame begins timing a new frame.
func (p *PerfCollector) StartFrame() {
	if p == nil {
		return
	}
	p.frameStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.dispatches = 0
	p.lastPhase = ""
}

// StartPhase closes the running phase and starts timing phase. Phases
// entered more than once per frame accumulate.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
	p.dispatches++
}

// EndFrame closes the running phase and records the sample.
func (p *PerfCollector) EndFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}

	p.samples[p.writeIndex] = PerfSample{
		FrameDuration: now.Sub(p.frameStart),
		Phases:        p.currentPhases,
		Dispatches:    p.dispatches,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records the wall-clock interval since the previous call.
func (p *PerfCollector) RecordFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameInterval = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgFrameDuration time.Duration
	MinFrameDuration time.Duration
	MaxFrameDuration time.Duration

	// Average time per phase and its share of the frame.
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	AvgDispatches   float64
	FramesPerSecond float64

	// Wall-clock frame pacing, including time outside the simulation.
	FrameInterval time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	empty := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p == nil {
		return empty
	}

	var fps float64
	if p.frameInterval > 0 {
		fps = float64(time.Second) / float64(p.frameInterval)
	}
	empty.FrameInterval = p.frameInterval
	empty.FPS = fps

	if p.sampleCount == 0 {
		return empty
	}

	var total time.Duration
	var minDur, maxDur time.Duration
	var dispatches int
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.FrameDuration
		dispatches += s.Dispatches

		if i == 0 || s.FrameDuration < minDur {
			minDur = s.FrameDuration
		}
		if s.FrameDuration > maxDur {
			maxDur = s.FrameDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	n := time.Duration(p.sampleCount)
	avg := total / n

	phaseAvg := make(map[string]time.Duration, len(phaseSum))
	phasePct := make(map[string]float64, len(phaseSum))
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / n
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgFrameDuration: avg,
		MinFrameDuration: minDur,
		MaxFrameDuration: maxDur,
		PhaseAvg:         phaseAvg,
		PhasePct:         phasePct,
		AvgDispatches:    float64(dispatches) / float64(p.sampleCount),
		FramesPerSecond:  perSec,
		FrameInterval:    p.frameInterval,
		FPS:              fps,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_frame_us", s.AvgFrameDuration.Microseconds(),
		"min_frame_us", s.MinFrameDuration.Microseconds(),
		"max_frame_us", s.MaxFrameDuration.Microseconds(),
		"dispatches", s.AvgDispatches,
		"sim_fps", int(s.FramesPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, phase := range PerfPhases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrameDuration.Microseconds()),
		slog.Int64("min_frame_us", s.MinFrameDuration.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrameDuration.Microseconds()),
		slog.Float64("sim_fps", s.FramesPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range PerfPhases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Frame        int64   `csv:"frame"`
	AvgFrameUS   int64   `csv:"avg_frame_us"`
	MinFrameUS   int64   `csv:"min_frame_us"`
	MaxFrameUS   int64   `csv:"max_frame_us"`
	SimFPS       float64 `csv:"sim_fps"`
	FPS          float64 `csv:"fps"`
	Dispatches   float64 `csv:"dispatches"`
	ResetPct     float64 `csv:"reset_pct"`
	BeginStepPct float64 `csv:"begin_step_pct"`
	DiffusePct   float64 `csv:"diffuse_pct"`
	ReactPct     float64 `csv:"react_pct"`
	DisplayPct   float64 `csv:"display_pct"`
	BlitPct      float64 `csv:"blit_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(frame int64) PerfStatsCSV {
	return PerfStatsCSV{
		Frame:        frame,
		AvgFrameUS:   s.AvgFrameDuration.Microseconds(),
		MinFrameUS:   s.MinFrameDuration.Microseconds(),
		MaxFrameUS:   s.MaxFrameDuration.Microseconds(),
		SimFPS:       s.FramesPerSecond,
		FPS:          s.FPS,
		Dispatches:   s.AvgDispatches,
		ResetPct:     s.PhasePct[PhaseReset],
		BeginStepPct: s.PhasePct[PhaseBeginStep],
		DiffusePct:   s.PhasePct[PhaseDiffuse],
		ReactPct:     s.PhasePct[PhaseReact],
		DisplayPct:   s.PhasePct[PhaseDisplay],
		BlitPct:      s.PhasePct[PhaseBlit],
	}
}
