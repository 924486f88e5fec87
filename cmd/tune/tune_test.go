package main

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/telemetry"
)

func TestParamVectorNormalize(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-12 {
			t.Errorf("%s: round trip %v, want %v", pv.Specs[i].Name, back[i], def[i])
		}
	}

	clamped := pv.Clamp([]float64{-1, 1})
	if clamped[0] != pv.Specs[0].Min || clamped[1] != pv.Specs[1].Max {
		t.Errorf("Clamp = %v", clamped)
	}
}

func TestApplyToConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	pv.ApplyToConfig(cfg, []float64{0.03, 0.5})

	got := pv.ExtractFromConfig(cfg)
	if got[0] != 0.03 {
		t.Errorf("feed = %v, want 0.03", got[0])
	}
	if got[1] != pv.Specs[1].Max {
		t.Errorf("remove = %v, want clamped to %v", got[1], pv.Specs[1].Max)
	}
}

func TestParseRadii(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"6,10,14", []int{6, 10, 14}, false},
		{" 4 , 8 ", []int{4, 8}, false},
		{"0", []int{0}, false},
		{"", nil, true},
		{"3,-1", nil, true},
		{"x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRadii(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestComputeFitness(t *testing.T) {
	tests := []struct {
		name  string
		stats telemetry.FieldStats
		want  float64
	}{
		{"on target", telemetry.FieldStats{CoverageB: 0.35, MaxB: 0.6}, 0},
		{"under", telemetry.FieldStats{CoverageB: 0.15, MaxB: 0.6}, 0.2},
		{"extinct", telemetry.FieldStats{CoverageB: 0, MaxB: 0.01}, 1.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeFitness(tt.stats, 0.35); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("fitness = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunSimulation(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Tune.Width, cfg.Tune.Height, cfg.Tune.Frames = 24, 24, 3

	stats, err := RunSimulation(cfg, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Frame != 3 {
		t.Errorf("frame = %d, want 3", stats.Frame)
	}
	if stats.MaxB <= 0 {
		t.Errorf("max B = %v, want seeded pattern", stats.MaxB)
	}

	cfg.Simulation.StepsPerFrame = 99
	if _, err := RunSimulation(cfg, 4, 1); err == nil {
		t.Error("expected rejected steps_per_frame")
	}
}

func TestLogWriterHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	lw := &logWriter{w: &buf}
	for i := 1; i <= 3; i++ {
		if err := lw.Write(EvalRecord{Eval: i}); err != nil {
			t.Fatal(err)
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "eval,fitness") {
		t.Errorf("header = %q", lines[0])
	}
}
