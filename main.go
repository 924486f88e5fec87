package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/renderer"
	"github.com/pthm-cable/grayscott/server"
	"github.com/pthm-cable/grayscott/simulation"
	"github.com/pthm-cable/grayscott/ui"
)

type flags struct {
	configPath string
	headless   bool
	backend    string
	serve      string
	logStats   bool
	outputDir  string
	maxFrames  int
	width      int
	height     int
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flag.BoolVar(&f.headless, "headless", false, "Run without a window (CPU backend)")
	flag.StringVar(&f.backend, "backend", "", "Compute backend: gpu or cpu (empty = use config)")
	flag.StringVar(&f.serve, "serve", "", "Serve the web viewer on this address, e.g. :8080")
	flag.BoolVar(&f.logStats, "log-stats", false, "Output stats via slog")
	flag.StringVar(&f.outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	flag.IntVar(&f.maxFrames, "max-frames", 0, "Stop after N frames (0 = unlimited)")
	flag.IntVar(&f.width, "width", 0, "Grid width (0 = use config)")
	flag.IntVar(&f.height, "height", 0, "Grid height (0 = use config)")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(f); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if err := config.Init(f.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()
	cfg.SetGridSize(f.width, f.height)
	if f.backend != "" {
		cfg.Backend.Kind = f.backend
	}
	if f.headless && cfg.Backend.Kind == config.BackendGPU {
		slog.Info("headless run uses the cpu backend")
		cfg.Backend.Kind = config.BackendCPU
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var window *ui.Window
	if !f.headless {
		// The GL context must exist before a GPU backend is created.
		window = ui.Open(cfg)
		defer window.Close()
	}

	w, h := cfg.Derived.GridW, cfg.Derived.GridH
	backend, err := newBackend(cfg, w, h)
	if err != nil {
		return err
	}
	defer backend.Close()

	sim, err := simulation.New(backend, w, h, simulation.WithSeedRadius(cfg.Simulation.SeedRadius))
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}
	if err := game.ApplyConfig(sim, cfg.Simulation); err != nil {
		sim.Unload()
		return fmt.Errorf("applying config: %w", err)
	}

	opts := game.Options{
		LogStats:      f.logStats,
		OutputDir:     f.outputDir,
		StatsInterval: cfg.Telemetry.StatsInterval,
		FPSWindow:     cfg.Telemetry.FPSWindow,
		PerfWindow:    cfg.Telemetry.PerfWindow,
	}
	var metrics *server.Metrics
	if f.serve != "" {
		metrics = server.NewMetrics()
		opts.OnStats = metrics.ObserveStats
	}

	g, err := game.NewGameWithOptions(sim, cfg, opts)
	if err != nil {
		sim.Unload()
		return err
	}
	defer g.Unload()

	afterFrame := func(*game.Game) error { return nil }
	if f.serve != "" {
		srv := server.New(g.Controls(), metrics, cfg.Derived.FrameInterval)
		go func() {
			if err := srv.ListenAndServe(ctx, f.serve); err != nil {
				slog.Error("web viewer stopped", "error", err)
			}
		}()
		afterFrame = srv.Publish
	}

	slog.Info("starting simulation",
		"backend", backend.Name(),
		"grid_w", w,
		"grid_h", h,
		"headless", f.headless,
		"serve", f.serve,
		"max_frames", f.maxFrames,
		"params", sim.Params(),
	)

	if f.headless {
		// Pace to the target frame rate only when someone may be watching.
		var interval time.Duration
		if f.serve != "" && cfg.Screen.TargetFPS > 0 {
			interval = time.Second / time.Duration(cfg.Screen.TargetFPS)
		}
		err := game.RunFixed(ctx, interval, f.maxFrames, func() error {
			if err := g.Frame(nil); err != nil {
				return err
			}
			return afterFrame(g)
		})
		slog.Info("headless run finished", "frames", g.FrameCount(), "sim_time", sim.SimulationTime())
		return err
	}

	canvas, err := ui.NewCanvas(backend)
	if err != nil {
		return err
	}
	defer canvas.Unload()

	window.AfterFrame = afterFrame
	return window.Run(g, canvas, f.maxFrames)
}

func newBackend(cfg *config.Config, w, h int) (compute.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendGPU:
		b, err := renderer.NewGPUBackend(w, h)
		if err != nil {
			return nil, fmt.Errorf("creating gpu backend: %w", err)
		}
		return b, nil
	default:
		return compute.NewCPUBackend(w, h, cfg.Backend.Workers), nil
	}
}
