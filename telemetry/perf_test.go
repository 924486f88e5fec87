package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartFrame()
		pc.StartPhase(PhaseBeginStep)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseDiffuse)
		time.Sleep(200 * time.Microsecond)
		pc.StartPhase(PhaseDiffuse)
		pc.EndFrame()
	}

	stats := pc.Stats()

	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration")
	}
	if _, ok := stats.PhaseAvg[PhaseBeginStep]; !ok {
		t.Error("expected begin_step phase to be tracked")
	}
	if stats.PhaseAvg[PhaseDiffuse] < stats.PhaseAvg[PhaseBeginStep] {
		t.Errorf("diffuse avg %v shorter than begin_step avg %v",
			stats.PhaseAvg[PhaseDiffuse], stats.PhaseAvg[PhaseBeginStep])
	}
	if stats.AvgDispatches != 3 {
		t.Errorf("AvgDispatches = %v, want 3", stats.AvgDispatches)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartFrame()
		pc.StartPhase(PhaseReact)
		time.Sleep(10 * time.Microsecond)
		pc.EndFrame()
	}

	stats := pc.Stats()
	if stats.AvgFrameDuration <= 0 {
		t.Error("expected positive average frame duration after window filled")
	}
	if stats.FramesPerSecond <= 0 {
		t.Error("expected positive frames per second")
	}
	row := stats.ToCSV(10)
	if row.Frame != 10 || row.ReactPct <= 0 {
		t.Errorf("ToCSV = %+v, want frame 10 and react share", row)
	}
}

func TestPerfCollector_NilIsNoOp(t *testing.T) {
	var pc *PerfCollector
	pc.StartFrame()
	pc.StartPhase(PhaseDisplay)
	pc.EndFrame()
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.AvgFrameDuration != 0 || stats.PhasePct == nil {
		t.Errorf("nil collector stats = %+v", stats)
	}
}
