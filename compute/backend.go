// Package compute defines the contract between the simulation and whatever
// executes its kernels, plus a CPU implementation of that contract.
package compute

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/pthm-cable/grayscott/systems"
)

// Phase identifies one of the compiled simulation kernels.
type Phase int

const (
	PhaseReset Phase = iota
	PhaseBeginStep
	PhaseDiffuse
	PhaseReact
	PhaseDisplay
)

// Phases lists every kernel in compile order.
var Phases = []Phase{PhaseReset, PhaseBeginStep, PhaseDiffuse, PhaseReact, PhaseDisplay}

var phaseNames = [...]string{
	PhaseReset:     "reset",
	PhaseBeginStep: "begin_step",
	PhaseDiffuse:   "diffuse",
	PhaseReact:     "react",
	PhaseDisplay:   "display",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Channels is the number of float32 values per grid cell.
const Channels = systems.Channels

// Uniform names understood by the kernels.
const (
	UniformResolution   = "resolution"
	UniformFeedRate     = "feedRate"
	UniformRemoveRate   = "removeRate"
	UniformDiffuseRateB = "diffuseRateB"
	UniformDisplayMode  = "displayMode"
	UniformSeedRadius   = "seedRadius"
)

// Errors returned by backends.
var (
	ErrUnsupported   = errors.New("operation not supported by backend")
	ErrReleased      = errors.New("resource already released")
	ErrNoReadTexture = errors.New("no read texture bound")
	ErrTarget        = errors.New("kernel cannot write to bound target")
	ErrSizeMismatch  = errors.New("frame buffer size mismatch")
)

// KernelHandle is an opaque reference to a compiled kernel.
type KernelHandle interface {
	Phase() Phase
}

// FrameBuffer is an opaque W×H RGBA32F render target.
type FrameBuffer interface {
	Size() (w, h int)
}

// Surface is the 8-bit colour target written by the display kernel.
type Surface interface {
	Size() (w, h int)
}

// Backend executes kernels over frame buffers. Implementations are not safe
// for concurrent use; the caller drives them from a single goroutine.
type Backend interface {
	Name() string

	CompileKernel(phase Phase) (KernelHandle, error)
	ReleaseKernel(h KernelHandle)

	CreateFrameBuffer(w, h int) (FrameBuffer, error)
	ReleaseFrameBuffer(fb FrameBuffer)

	// BindReadTexture selects the buffer sampled by subsequent dispatches.
	BindReadTexture(fb FrameBuffer)
	// BindWriteTarget selects the dispatch output. nil selects the canvas.
	BindWriteTarget(fb FrameBuffer)

	SetUniform(h KernelHandle, name string, values ...float32)

	// Dispatch runs h once for every pixel of the write target and returns
	// after all pixels are written.
	Dispatch(h KernelHandle) error

	ReadFrameBuffer(fb FrameBuffer) ([]float32, error)
	Canvas() Surface

	Close() error
}

// CompileError reports a kernel that failed to compile or link.
type CompileError struct {
	Kernel string
	Source string
	Log    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile kernel %s: %s", e.Kernel, strings.TrimSpace(e.Log))
}

// NewCompileError builds a CompileError with the source annotated by line
// number so the log's line references can be matched up.
func NewCompileError(kernel, source, log string) *CompileError {
	return &CompileError{Kernel: kernel, Source: NumberLines(source), Log: log}
}

// NumberLines prefixes each line of src with its 1-based line number.
func NumberLines(src string) string {
	lines := strings.Split(src, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%4d: %s\n", i+1, line)
	}
	return b.String()
}

// ImageSurface is a Surface whose pixels can be copied back to host memory.
type ImageSurface interface {
	Surface
	Image() (*image.RGBA, error)
}

// SurfaceImage copies s into an *image.RGBA when the backend supports it.
func SurfaceImage(s Surface) (*image.RGBA, error) {
	is, ok := s.(ImageSurface)
	if !ok {
		return nil, fmt.Errorf("surface %T: %w", s, ErrUnsupported)
	}
	return is.Image()
}
