package compute

import (
	"runtime"
	"sync"
)

// parallelRowThreshold is the minimum row count to fan out to workers.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelRowThreshold = 32

// rowChunk is a half-open range of rows for one worker.
type rowChunk struct {
	start, end int
	fn         func(y0, y1 int)
}

// RowPool runs row-chunked work on persistent goroutines. Run blocks until
// every chunk has finished.
type RowPool struct {
	numWorkers int

	workChan chan rowChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewRowPool creates a pool with n workers; n < 1 uses GOMAXPROCS.
func NewRowPool(n int) *RowPool {
	if n < 1 {
		n = runtime.GOMAXPROCS(0)
	}
	return &RowPool{numWorkers: n}
}

// Workers returns the configured worker count.
func (p *RowPool) Workers() int {
	return p.numWorkers
}

func (p *RowPool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan rowChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *RowPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// Run calls fn over [0, rows) split into contiguous chunks.
func (p *RowPool) Run(rows int, fn func(y0, y1 int)) {
	if rows <= 0 {
		return
	}
	if p.numWorkers == 1 || rows < parallelRowThreshold {
		fn(0, rows)
		return
	}

	p.start()

	chunkSize := (rows + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, rows)
		if start >= end {
			continue
		}
		p.workChan <- rowChunk{start: start, end: end, fn: fn}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// Stop signals all workers to exit and waits for them. The pool restarts on
// the next Run.
func (p *RowPool) Stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
