// Shader debug tool - compiles every simulation kernel on the GPU, runs a
// few frames and writes the canvas to a PNG file for inspection.
//
// Usage: go run ./cmd/shaderdebug -frames 200 -out debug.png -compare
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/renderer"
	"github.com/pthm-cable/grayscott/simulation"
)

func main() {
	outPath := flag.String("out", "debug.png", "Output PNG path")
	width := flag.Int("width", 256, "Grid width")
	height := flag.Int("height", 256, "Grid height")
	frames := flag.Int("frames", 100, "Frames to run before capture")
	feed := flag.Float64("feed", simulation.DefaultFeedRate, "Feed rate")
	remove := flag.Float64("remove", simulation.DefaultRemoveRate, "Remove rate")
	fancy := flag.Bool("fancy", false, "Use fancy rendering")
	compare := flag.Bool("compare", false, "Also run the CPU backend and report the largest pixel difference")
	dumpSource := flag.Bool("source", false, "Print every kernel's source with line numbers and exit")
	flag.Parse()

	if *dumpSource {
		for _, phase := range compute.Phases {
			src, err := renderer.KernelSource(phase)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("== %s ==\n%s\n", phase, compute.NumberLines(src))
		}
		return
	}

	params := simulation.DefaultParams()
	params.FeedRate = *feed
	params.RemoveRate = *remove
	params.UseFancyRendering = *fancy

	// Initialize raylib with hidden window
	renderer.RouteTraceLog()
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Shader Debug")
	defer rl.CloseWindow()

	gpu, err := renderer.NewGPUBackend(*width, *height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create GPU backend: %v\n", err)
		os.Exit(1)
	}
	defer gpu.Close()

	gpuImg, err := render(gpu, *width, *height, *frames, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "GPU run failed: %v\n", err)
		os.Exit(1)
	}

	if err := writePNG(*outPath, gpuImg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Canvas rendered to: %s (%dx%d, %d frames)\n", *outPath, *width, *height, *frames)

	if !*compare {
		return
	}

	cpu := compute.NewCPUBackend(*width, *height, 0)
	defer cpu.Close()
	cpuImg, err := render(cpu, *width, *height, *frames, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CPU run failed: %v\n", err)
		os.Exit(1)
	}
	diff, at := maxDiff(gpuImg, cpuImg)
	fmt.Printf("Largest GPU/CPU channel difference: %d at %v\n", diff, at)
}

// render runs frames frames on backend and returns the canvas.
func render(backend compute.Backend, w, h, frames int, params simulation.Params) (*image.RGBA, error) {
	sim, err := simulation.New(backend, w, h, simulation.WithParams(params))
	if err != nil {
		return nil, err
	}
	defer sim.Unload()

	for i := 0; i < frames; i++ {
		if err := sim.Update(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return compute.SurfaceImage(sim.CanvasSurface())
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// maxDiff returns the largest per-channel difference and where it occurs.
func maxDiff(a, b *image.RGBA) (int, image.Point) {
	var worst int
	var at image.Point
	bounds := a.Bounds().Intersect(b.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i, j := a.PixOffset(x, y), b.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				d := int(a.Pix[i+c]) - int(b.Pix[j+c])
				if d < 0 {
					d = -d
				}
				if d > worst {
					worst, at = d, image.Pt(x, y)
				}
			}
		}
	}
	return worst, at
}
