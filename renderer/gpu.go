// Package renderer runs the simulation kernels as GLSL fragment shaders
// through raylib. Every pass draws one full-target quad into a float
// render target; the grid lives on the GPU between frames.
package renderer

import (
	"embed"
	"errors"
	"fmt"
	"image"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grayscott/compute"
)

//go:embed shaders/*.fs shaders/common.glsl
var shaderFS embed.FS

// ErrNoContext is returned when the backend is created before a window.
var ErrNoContext = errors.New("raylib window not initialised")

// KernelSource returns the complete GLSL source for phase.
func KernelSource(phase compute.Phase) (string, error) {
	common, err := shaderFS.ReadFile("shaders/common.glsl")
	if err != nil {
		return "", err
	}
	body, err := shaderFS.ReadFile("shaders/" + phase.String() + ".fs")
	if err != nil {
		return "", fmt.Errorf("kernel %s: %w", phase, err)
	}
	return string(common) + "\n" + string(body), nil
}

type gpuKernel struct {
	phase  compute.Phase
	shader rl.Shader
	locs   map[string]int32
}

func (k *gpuKernel) Phase() compute.Phase { return k.phase }

// gpuFrameBuffer is an RGBA32F texture attached to its own framebuffer.
type gpuFrameBuffer struct {
	target   rl.RenderTexture2D
	w, h     int
	released bool
}

func (fb *gpuFrameBuffer) Size() (int, int) { return fb.w, fb.h }

// GPUCanvas is the 8-bit render texture the display kernel draws into.
type GPUCanvas struct {
	target rl.RenderTexture2D
	w, h   int
}

func (c *GPUCanvas) Size() (int, int) { return c.w, c.h }

// Texture returns the canvas texture for drawing to the screen.
func (c *GPUCanvas) Texture() rl.Texture2D { return c.target.Texture }

// Image reads the canvas back into host memory.
func (c *GPUCanvas) Image() (*image.RGBA, error) {
	img := rl.LoadImageFromTexture(c.target.Texture)
	defer rl.UnloadImage(img)

	if img.Data == nil {
		return nil, fmt.Errorf("reading canvas: %w", compute.ErrUnsupported)
	}
	out := image.NewRGBA(image.Rect(0, 0, c.w, c.h))
	copy(out.Pix, unsafe.Slice((*byte)(img.Data), c.w*c.h*4))
	return out, nil
}

// Draw blits the src region of the canvas into dst. Kernels write cell
// (x, y) to texel row y, so rows are already top-down and no flip is
// needed. The texture repeats, so src may extend past the canvas edges.
func (c *GPUCanvas) Draw(src, dst rl.Rectangle) {
	rl.DrawTexturePro(c.target.Texture, src, dst, rl.Vector2{}, 0, rl.White)
}

// GPUBackend implements compute.Backend on the raylib GL context.
type GPUBackend struct {
	canvas *GPUCanvas
	read   *gpuFrameBuffer
	write  *gpuFrameBuffer // nil targets the canvas
}

// NewGPUBackend creates a backend with a w×h canvas. A raylib window (and
// therefore a GL context) must already be open.
func NewGPUBackend(w, h int) (*GPUBackend, error) {
	if !rl.IsWindowReady() {
		return nil, ErrNoContext
	}
	target := rl.LoadRenderTexture(int32(w), int32(h))
	if target.ID == 0 {
		return nil, fmt.Errorf("creating %dx%d canvas: %w", w, h, compute.ErrUnsupported)
	}
	rl.SetTextureFilter(target.Texture, rl.FilterPoint)
	rl.SetTextureWrap(target.Texture, rl.WrapRepeat)
	return &GPUBackend{canvas: &GPUCanvas{target: target, w: w, h: h}}, nil
}

func (b *GPUBackend) Name() string { return "gpu" }

// CompileKernel builds the fragment shader for phase against raylib's
// default vertex shader.
func (b *GPUBackend) CompileKernel(phase compute.Phase) (compute.KernelHandle, error) {
	src, err := KernelSource(phase)
	if err != nil {
		return nil, compute.NewCompileError(phase.String(), "", err.Error())
	}

	beginCapture()
	shader := rl.LoadShaderFromMemory("", src)
	log, failed := endCapture()

	if shader.ID == 0 || failed {
		if shader.ID != 0 {
			rl.UnloadShader(shader)
		}
		if log == "" {
			log = "shader program id 0"
		}
		return nil, compute.NewCompileError(phase.String(), src, log)
	}
	return &gpuKernel{phase: phase, shader: shader, locs: make(map[string]int32)}, nil
}

func (b *GPUBackend) ReleaseKernel(h compute.KernelHandle) {
	k, ok := h.(*gpuKernel)
	if !ok || k.shader.ID == 0 {
		return
	}
	rl.UnloadShader(k.shader)
	k.shader.ID = 0
}

// CreateFrameBuffer allocates a float texture and attaches it to a new
// framebuffer object.
func (b *GPUBackend) CreateFrameBuffer(w, h int) (compute.FrameBuffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("create frame buffer %dx%d: %w", w, h, compute.ErrSizeMismatch)
	}

	img := rl.GenImageColor(w, h, rl.Blank)
	rl.ImageFormat(img, rl.UncompressedR32g32b32a32)
	tex := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	if tex.ID == 0 {
		return nil, fmt.Errorf("creating float texture: %w", compute.ErrUnsupported)
	}
	rl.SetTextureFilter(tex, rl.FilterPoint)
	rl.SetTextureWrap(tex, rl.WrapRepeat)

	fbo := rl.LoadFramebuffer()
	if fbo == 0 {
		rl.UnloadTexture(tex)
		return nil, fmt.Errorf("creating framebuffer: %w", compute.ErrUnsupported)
	}
	rl.FramebufferAttach(fbo, tex.ID, int32(rl.AttachmentColorChannel0), int32(rl.AttachmentTexture2d), 0)
	if !rl.FramebufferComplete(fbo) {
		rl.UnloadFramebuffer(fbo)
		return nil, fmt.Errorf("framebuffer incomplete: %w", compute.ErrUnsupported)
	}

	return &gpuFrameBuffer{
		target: rl.RenderTexture2D{ID: fbo, Texture: tex},
		w:      w,
		h:      h,
	}, nil
}

// ReleaseFrameBuffer deletes the framebuffer and its color texture.
func (b *GPUBackend) ReleaseFrameBuffer(fb compute.FrameBuffer) {
	f, ok := fb.(*gpuFrameBuffer)
	if !ok || f.released {
		return
	}
	rl.UnloadFramebuffer(f.target.ID)
	rl.UnloadTexture(f.target.Texture)
	f.released = true
	if b.read == f {
		b.read = nil
	}
	if b.write == f {
		b.write = nil
	}
}

func (b *GPUBackend) BindReadTexture(fb compute.FrameBuffer) {
	f, _ := fb.(*gpuFrameBuffer)
	b.read = f
}

func (b *GPUBackend) BindWriteTarget(fb compute.FrameBuffer) {
	f, _ := fb.(*gpuFrameBuffer)
	b.write = f
}

func (b *GPUBackend) SetUniform(h compute.KernelHandle, name string, values ...float32) {
	k, ok := h.(*gpuKernel)
	if !ok || k.shader.ID == 0 || len(values) == 0 {
		return
	}
	loc, ok := k.locs[name]
	if !ok {
		loc = rl.GetShaderLocation(k.shader, name)
		k.locs[name] = loc
	}
	if loc < 0 {
		// Uniform unused by this kernel and optimised away.
		return
	}

	var kind rl.ShaderUniformDataType
	switch len(values) {
	case 1:
		kind = rl.ShaderUniformFloat
	case 2:
		kind = rl.ShaderUniformVec2
	case 3:
		kind = rl.ShaderUniformVec3
	default:
		kind = rl.ShaderUniformVec4
		values = values[:4]
	}
	rl.SetShaderValue(k.shader, loc, values, kind)
}

// Dispatch draws one quad covering the write target with the kernel bound.
// Blending is disabled so the alpha channel carries Δb through unchanged.
func (b *GPUBackend) Dispatch(h compute.KernelHandle) error {
	k, ok := h.(*gpuKernel)
	if !ok {
		return fmt.Errorf("dispatch %T: %w", h, compute.ErrUnsupported)
	}
	if k.shader.ID == 0 {
		return fmt.Errorf("dispatch %s: %w", k.phase, compute.ErrReleased)
	}

	target, tw, th, err := b.target(k.phase)
	if err != nil {
		return err
	}

	var src *gpuFrameBuffer
	if k.phase != compute.PhaseReset {
		if b.read == nil || b.read.released {
			return fmt.Errorf("dispatch %s: %w", k.phase, compute.ErrNoReadTexture)
		}
		if b.read == b.write {
			return fmt.Errorf("dispatch %s: read and write target are the same buffer: %w", k.phase, compute.ErrTarget)
		}
		src = b.read
	}

	dst := rl.Rectangle{Width: float32(tw), Height: float32(th)}

	rl.BeginTextureMode(target)
	rl.DisableColorBlend()
	rl.BeginShaderMode(k.shader)
	if src == nil {
		rl.DrawRectangle(0, 0, int32(tw), int32(th), rl.White)
	} else {
		full := rl.Rectangle{Width: float32(src.w), Height: float32(src.h)}
		rl.DrawTexturePro(src.target.Texture, full, dst, rl.Vector2{}, 0, rl.White)
	}
	rl.EndShaderMode()
	rl.EnableColorBlend()
	rl.EndTextureMode()
	return nil
}

func (b *GPUBackend) target(phase compute.Phase) (rl.RenderTexture2D, int, int, error) {
	if phase == compute.PhaseDisplay {
		if b.write != nil {
			return rl.RenderTexture2D{}, 0, 0, fmt.Errorf("dispatch %s to frame buffer: %w", phase, compute.ErrTarget)
		}
		return b.canvas.target, b.canvas.w, b.canvas.h, nil
	}
	if b.write == nil || b.write.released {
		return rl.RenderTexture2D{}, 0, 0, fmt.Errorf("dispatch %s to canvas: %w", phase, compute.ErrTarget)
	}
	return b.write.target, b.write.w, b.write.h, nil
}

// ReadFrameBuffer copies the float texture back to host memory.
func (b *GPUBackend) ReadFrameBuffer(fb compute.FrameBuffer) ([]float32, error) {
	f, ok := fb.(*gpuFrameBuffer)
	if !ok {
		return nil, fmt.Errorf("read %T: %w", fb, compute.ErrUnsupported)
	}
	if f.released {
		return nil, fmt.Errorf("read frame buffer: %w", compute.ErrReleased)
	}

	img := rl.LoadImageFromTexture(f.target.Texture)
	defer rl.UnloadImage(img)
	if img.Data == nil {
		return nil, fmt.Errorf("read frame buffer: %w", compute.ErrUnsupported)
	}

	n := f.w * f.h * compute.Channels
	out := make([]float32, n)
	copy(out, unsafe.Slice((*float32)(img.Data), n))
	return out, nil
}

func (b *GPUBackend) Canvas() compute.Surface { return b.canvas }

// GPUCanvas returns the concrete canvas for screen blits.
func (b *GPUBackend) GPUCanvas() *GPUCanvas { return b.canvas }

// Close releases the canvas. Kernels and frame buffers belong to their
// owner and are released separately.
func (b *GPUBackend) Close() error {
	if b.canvas.target.ID != 0 {
		rl.UnloadRenderTexture(b.canvas.target)
		b.canvas.target.ID = 0
	}
	return nil
}
