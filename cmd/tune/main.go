// Command tune searches feed and remove rates for a pattern that covers a
// target fraction of the grid, using headless CPU runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/grayscott/config"
)

// EvalRecord is one row of tune_log.csv.
type EvalRecord struct {
	Eval       int     `csv:"eval"`
	Fitness    float64 `csv:"fitness"`
	FeedRate   float64 `csv:"feed_rate"`
	RemoveRate float64 `csv:"remove_rate"`
	CoverageB  float64 `csv:"b_coverage"`
	MeanB      float64 `csv:"b_mean"`
	MaxB       float64 `csv:"b_max"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// parseRadii parses a comma-separated list of non-negative seed radii.
func parseRadii(s string) ([]int, error) {
	var radii []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := strconv.Atoi(part)
		if err != nil || r < 0 {
			return nil, fmt.Errorf("seed radius %q: must be a non-negative integer", part)
		}
		radii = append(radii, r)
	}
	if len(radii) == 0 {
		return nil, fmt.Errorf("no seed radii given")
	}
	return radii, nil
}

// newMethod returns the optimizer for name.
func newMethod(name string, dim int) (optimize.Method, error) {
	switch name {
	case "cmaes":
		return &optimize.CmaEsChol{
			InitStepSize: 0.3,
			Population:   4 + 3*dim/2,
		}, nil
	case "nelder-mead":
		return &optimize.NelderMead{}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", name)
	}
}

// logWriter appends EvalRecords to a CSV file, writing the header once.
type logWriter struct {
	w       io.Writer
	written bool
}

func (lw *logWriter) Write(rec EvalRecord) error {
	records := []EvalRecord{rec}
	if !lw.written {
		lw.written = true
		return gocsv.Marshal(records, lw.w)
	}
	return gocsv.MarshalWithoutHeaders(records, lw.w)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = tune.max_evals)")
	frames := flag.Int("frames", 0, "Frames per run (0 = tune.frames)")
	target := flag.Float64("target", 0, "Target B coverage (0 = tune.target_coverage)")
	radiiFlag := flag.String("seed-radii", "6,10,14", "Comma-separated seed radii run per evaluation")
	methodName := flag.String("method", "nelder-mead", "Optimizer: nelder-mead or cmaes")
	workers := flag.Int("workers", 1, "CPU row workers per run")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	if *maxEvals > 0 {
		baseCfg.Tune.MaxEvals = *maxEvals
	}
	if *frames > 0 {
		baseCfg.Tune.Frames = *frames
	}
	if *target > 0 {
		baseCfg.Tune.TargetCoverage = *target
	}

	radii, err := parseRadii(*radiiFlag)
	if err != nil {
		log.Fatal(err)
	}

	params := NewParamVector()
	evaluator := NewFitnessEvaluator(params, baseCfg, radii, *workers)

	method, err := newMethod(*methodName, params.Dim())
	if err != nil {
		log.Fatal(err)
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()
	evalLog := &logWriter{w: logFile}

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = raw
			}

			stats := evaluator.LastStats()
			if err := evalLog.Write(EvalRecord{
				Eval:       evalCount,
				Fitness:    fitness,
				FeedRate:   raw[0],
				RemoveRate: raw[1],
				CoverageB:  stats.CoverageB,
				MeanB:      stats.MeanB,
				MaxB:       stats.MaxB,
			}); err != nil {
				log.Printf("failed to write log row: %v", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(baseCfg.Tune.MaxEvals-evalCount) * avgPerEval
			fmt.Printf("Eval %d/%d: feed=%.4f remove=%.4f coverage=%.3f (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, baseCfg.Tune.MaxEvals, raw[0], raw[1], stats.CoverageB, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: baseCfg.Tune.MaxEvals,
	}

	fmt.Printf("Starting %s search: grid %dx%d, %d frames/run, seed radii %v, target coverage %.2f\n",
		*methodName, baseCfg.Tune.Width, baseCfg.Tune.Height, baseCfg.Tune.Frames, radii, baseCfg.Tune.TargetCoverage)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg))
	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nSearch complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.4f (coverage %.3f)\n", bestFitness, evaluator.BestStats().CoverageB)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
