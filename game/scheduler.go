package game

import (
	"context"
	"time"
)

// Scheduler decides whether a frame advances the simulation.
type Scheduler struct {
	paused   bool
	stepOnce bool
}

func (s *Scheduler) Paused() bool { return s.paused }

func (s *Scheduler) SetPaused(p bool) { s.paused = p }

func (s *Scheduler) TogglePause() { s.paused = !s.paused }

// RequestStep advances exactly one frame while paused.
func (s *Scheduler) RequestStep() { s.stepOnce = true }

// ShouldStep reports whether this frame runs the simulation, consuming a
// pending single-step request.
func (s *Scheduler) ShouldStep() bool {
	if !s.paused {
		s.stepOnce = false
		return true
	}
	if s.stepOnce {
		s.stepOnce = false
		return true
	}
	return false
}

// RunFixed calls frame every interval until ctx is done, frame fails, or
// maxFrames frames have run (0 = unlimited). interval <= 0 runs frames back
// to back. Cancellation is a normal stop and returns nil.
func RunFixed(ctx context.Context, interval time.Duration, maxFrames int, frame func() error) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for n := 0; maxFrames <= 0 || n < maxFrames; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if err := frame(); err != nil {
			return err
		}
	}
	return nil
}
