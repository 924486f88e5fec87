package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/grayscott/compute"
	"github.com/pthm-cable/grayscott/config"
	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/simulation"
	"github.com/pthm-cable/grayscott/telemetry"
)

// Below this peak B the pattern is considered extinct.
const extinctMaxB = 0.05

// FitnessEvaluator runs headless CPU simulations and scores how close the
// final B coverage lands to the target.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	seedRadii  []int
	workers    int

	mu          sync.Mutex
	bestFitness float64
	bestStats   telemetry.FieldStats
	lastStats   telemetry.FieldStats
}

// NewFitnessEvaluator creates an evaluator. Every evaluation runs one
// simulation per seed radius, in parallel.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, seedRadii []int, workers int) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		baseConfig:  baseCfg,
		seedRadii:   seedRadii,
		workers:     workers,
		bestFitness: math.Inf(1),
	}
}

// BestStats returns the field stats of the best evaluation so far.
func (fe *FitnessEvaluator) BestStats() telemetry.FieldStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestStats
}

// LastStats returns the averaged stats of the most recent evaluation.
func (fe *FitnessEvaluator) LastStats() telemetry.FieldStats {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastStats
}

type runResult struct {
	stats telemetry.FieldStats
	err   error
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]runResult, len(fe.seedRadii))
	var wg sync.WaitGroup
	for i, r := range fe.seedRadii {
		wg.Add(1)
		go func(idx, radius int) {
			defer wg.Done()
			stats, err := RunSimulation(cfg, radius, fe.workers)
			results[idx] = runResult{stats: stats, err: err}
		}(i, r)
	}
	wg.Wait()

	var total float64
	var avg telemetry.FieldStats
	for _, r := range results {
		if r.err != nil {
			// Parameters the simulation rejects score worst.
			return math.MaxFloat64
		}
		total += computeFitness(r.stats, cfg.Tune.TargetCoverage)
		avg.MeanB += r.stats.MeanB
		avg.MaxB += r.stats.MaxB
		avg.CoverageB += r.stats.CoverageB
	}
	n := float64(len(results))
	fitness := total / n
	avg.MeanB /= n
	avg.MaxB /= n
	avg.CoverageB /= n

	fe.mu.Lock()
	fe.lastStats = avg
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestStats = avg
	}
	fe.mu.Unlock()

	return fitness
}

// computeFitness is the coverage error, plus one when the pattern died.
func computeFitness(s telemetry.FieldStats, target float64) float64 {
	f := math.Abs(s.CoverageB - target)
	if s.MaxB < extinctMaxB {
		f += 1
	}
	return f
}

// RunSimulation runs cfg.Tune.Frames frames on a CPU backend and returns
// the final field stats.
func RunSimulation(cfg *config.Config, seedRadius, workers int) (telemetry.FieldStats, error) {
	w, h := cfg.Tune.Width, cfg.Tune.Height
	backend := compute.NewCPUBackend(w, h, workers)
	defer backend.Close()

	sim, err := simulation.New(backend, w, h, simulation.WithSeedRadius(seedRadius))
	if err != nil {
		return telemetry.FieldStats{}, err
	}
	defer sim.Unload()

	if err := game.ApplyConfig(sim, cfg.Simulation); err != nil {
		return telemetry.FieldStats{}, err
	}
	for i := 0; i < cfg.Tune.Frames; i++ {
		if err := sim.Update(); err != nil {
			return telemetry.FieldStats{}, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	data, err := sim.ReadState()
	if err != nil {
		return telemetry.FieldStats{}, err
	}
	stats := telemetry.ComputeFieldStats(data, compute.Channels)
	stats.Frame = int64(cfg.Tune.Frames)
	stats.SimTime = sim.SimulationTime()
	return stats, nil
}

func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}
