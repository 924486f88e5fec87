package compute

import (
	"fmt"
	"image"

	"github.com/pthm-cable/grayscott/systems"
)

// CPUBackend runs the phase kernels on the host, splitting each dispatch
// into row chunks over a worker pool.
type CPUBackend struct {
	pool   *RowPool
	canvas *CPUCanvas

	read  *cpuFrameBuffer
	write *cpuFrameBuffer // nil targets the canvas
}

type cpuKernel struct {
	phase    Phase
	uniforms map[string][]float32
	released bool
}

func (k *cpuKernel) Phase() Phase { return k.phase }

func (k *cpuKernel) uniform(name string, fallback float32) float32 {
	if v, ok := k.uniforms[name]; ok && len(v) > 0 {
		return v[0]
	}
	return fallback
}

type cpuFrameBuffer struct {
	field    *systems.Field
	released bool
}

func (fb *cpuFrameBuffer) Size() (int, int) { return fb.field.W, fb.field.H }

// CPUCanvas is the 8-bit display target of a CPUBackend.
type CPUCanvas struct {
	img *image.RGBA
}

func (c *CPUCanvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image returns a copy of the canvas pixels.
func (c *CPUCanvas) Image() (*image.RGBA, error) {
	out := image.NewRGBA(c.img.Bounds())
	copy(out.Pix, c.img.Pix)
	return out, nil
}

// Pix exposes the live RGBA bytes, row-major with no padding.
func (c *CPUCanvas) Pix() []uint8 {
	return c.img.Pix
}

// NewCPUBackend creates a backend whose canvas is w×h. workers < 1 uses
// GOMAXPROCS.
func NewCPUBackend(w, h, workers int) *CPUBackend {
	w, h = max(w, 1), max(h, 1)
	return &CPUBackend{
		pool:   NewRowPool(workers),
		canvas: &CPUCanvas{img: image.NewRGBA(image.Rect(0, 0, w, h))},
	}
}

func (b *CPUBackend) Name() string { return "cpu" }

func (b *CPUBackend) CompileKernel(phase Phase) (KernelHandle, error) {
	if phase < PhaseReset || phase > PhaseDisplay {
		return nil, NewCompileError(phase.String(), "", "unknown phase")
	}
	return &cpuKernel{phase: phase, uniforms: make(map[string][]float32)}, nil
}

func (b *CPUBackend) ReleaseKernel(h KernelHandle) {
	if k, ok := h.(*cpuKernel); ok {
		k.released = true
	}
}

func (b *CPUBackend) CreateFrameBuffer(w, h int) (FrameBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("create frame buffer %dx%d: %w", w, h, ErrSizeMismatch)
	}
	return &cpuFrameBuffer{field: systems.NewField(w, h)}, nil
}

func (b *CPUBackend) ReleaseFrameBuffer(fb FrameBuffer) {
	f, ok := fb.(*cpuFrameBuffer)
	if !ok {
		return
	}
	f.released = true
	if b.read == f {
		b.read = nil
	}
	if b.write == f {
		b.write = nil
	}
}

func (b *CPUBackend) BindReadTexture(fb FrameBuffer) {
	f, _ := fb.(*cpuFrameBuffer)
	b.read = f
}

func (b *CPUBackend) BindWriteTarget(fb FrameBuffer) {
	f, _ := fb.(*cpuFrameBuffer)
	b.write = f
}

func (b *CPUBackend) SetUniform(h KernelHandle, name string, values ...float32) {
	k, ok := h.(*cpuKernel)
	if !ok {
		return
	}
	k.uniforms[name] = append(k.uniforms[name][:0], values...)
}

func (b *CPUBackend) Dispatch(h KernelHandle) error {
	k, ok := h.(*cpuKernel)
	if !ok {
		return fmt.Errorf("dispatch %T: %w", h, ErrUnsupported)
	}
	if k.released {
		return fmt.Errorf("dispatch %s: %w", k.phase, ErrReleased)
	}

	if k.phase == PhaseDisplay {
		return b.dispatchDisplay(k)
	}

	if b.write == nil || b.write.released {
		return fmt.Errorf("dispatch %s to canvas: %w", k.phase, ErrTarget)
	}
	dst := b.write.field

	if k.phase == PhaseReset {
		radius := int(k.uniform(UniformSeedRadius, systems.DefaultSeedRadius))
		b.pool.Run(dst.H, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				systems.ResetRow(dst.Row(y), y, dst.W, dst.H, radius)
			}
		})
		return nil
	}

	src, err := b.source(k.phase, dst)
	if err != nil {
		return err
	}

	var row func(y int)
	switch k.phase {
	case PhaseBeginStep:
		row = func(y int) { systems.BeginStepRow(src, dst.Row(y), y) }
	case PhaseDiffuse:
		rateB := k.uniform(UniformDiffuseRateB, 0.5)
		row = func(y int) { systems.DiffuseRow(src, dst.Row(y), y, rateB) }
	case PhaseReact:
		feed := k.uniform(UniformFeedRate, 0)
		remove := k.uniform(UniformRemoveRate, 0)
		row = func(y int) { systems.ReactRow(src, dst.Row(y), y, feed, remove) }
	default:
		return fmt.Errorf("dispatch %s: %w", k.phase, ErrUnsupported)
	}

	b.pool.Run(dst.H, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row(y)
		}
	})
	return nil
}

func (b *CPUBackend) source(phase Phase, dst *systems.Field) (*systems.Field, error) {
	if b.read == nil || b.read.released {
		return nil, fmt.Errorf("dispatch %s: %w", phase, ErrNoReadTexture)
	}
	src := b.read.field
	if src == dst {
		return nil, fmt.Errorf("dispatch %s: read and write target are the same buffer: %w", phase, ErrTarget)
	}
	if src.W != dst.W || src.H != dst.H {
		return nil, fmt.Errorf("dispatch %s: %dx%d into %dx%d: %w", phase, src.W, src.H, dst.W, dst.H, ErrSizeMismatch)
	}
	return src, nil
}

func (b *CPUBackend) dispatchDisplay(k *cpuKernel) error {
	if b.write != nil {
		return fmt.Errorf("dispatch %s to frame buffer: %w", k.phase, ErrTarget)
	}
	if b.read == nil || b.read.released {
		return fmt.Errorf("dispatch %s: %w", k.phase, ErrNoReadTexture)
	}
	src := b.read.field
	w, h := b.canvas.Size()
	if src.W != w || src.H != h {
		return fmt.Errorf("dispatch %s: %dx%d onto %dx%d canvas: %w", k.phase, src.W, src.H, w, h, ErrSizeMismatch)
	}

	mode := systems.DisplayPlain
	if k.uniform(UniformDisplayMode, 0) >= 0.5 {
		mode = systems.DisplayFancy
	}

	pix := b.canvas.img.Pix
	stride := b.canvas.img.Stride
	b.pool.Run(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			systems.DisplayRow(src, pix[y*stride:y*stride+w*4], y, mode)
		}
	})
	return nil
}

func (b *CPUBackend) ReadFrameBuffer(fb FrameBuffer) ([]float32, error) {
	f, ok := fb.(*cpuFrameBuffer)
	if !ok {
		return nil, fmt.Errorf("read %T: %w", fb, ErrUnsupported)
	}
	if f.released {
		return nil, fmt.Errorf("read frame buffer: %w", ErrReleased)
	}
	out := make([]float32, len(f.field.Data))
	copy(out, f.field.Data)
	return out, nil
}

func (b *CPUBackend) Canvas() Surface { return b.canvas }

// Close stops the worker pool.
func (b *CPUBackend) Close() error {
	b.pool.Stop()
	return nil
}
