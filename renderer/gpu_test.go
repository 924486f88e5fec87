package renderer

import (
	"strings"
	"testing"

	"github.com/pthm-cable/grayscott/compute"
)

func TestKernelSources(t *testing.T) {
	uniforms := map[compute.Phase][]string{
		compute.PhaseReset:     {compute.UniformSeedRadius},
		compute.PhaseBeginStep: nil,
		compute.PhaseDiffuse:   {compute.UniformDiffuseRateB},
		compute.PhaseReact:     {compute.UniformFeedRate, compute.UniformRemoveRate},
		compute.PhaseDisplay:   {compute.UniformDisplayMode},
	}

	for _, phase := range compute.Phases {
		t.Run(phase.String(), func(t *testing.T) {
			src, err := KernelSource(phase)
			if err != nil {
				t.Fatalf("KernelSource: %v", err)
			}
			if !strings.HasPrefix(src, "#version 330") {
				t.Errorf("source does not start with a version directive:\n%s", src[:min(len(src), 40)])
			}
			if !strings.Contains(src, "void main()") {
				t.Error("missing main")
			}
			if !strings.Contains(src, "uniform vec2 "+compute.UniformResolution) {
				t.Error("missing resolution uniform")
			}
			for _, u := range uniforms[phase] {
				if !strings.Contains(src, "uniform float "+u) {
					t.Errorf("missing uniform %s", u)
				}
			}
		})
	}
}

func TestKernelSourceUnknownPhase(t *testing.T) {
	if _, err := KernelSource(compute.Phase(99)); err == nil {
		t.Error("expected error for unknown phase")
	}
}
