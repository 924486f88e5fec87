package simulation

import (
	"fmt"

	"github.com/pthm-cable/grayscott/compute"
)

// DoubleBuffer is a ping-pong pair of frame buffers. Kernels sample Read
// and write to Write; Swap exchanges the roles.
type DoubleBuffer struct {
	backend compute.Backend
	buffers [2]compute.FrameBuffer
	read    int
}

// NewDoubleBuffer allocates both buffers and binds read=0, write=1.
func NewDoubleBuffer(backend compute.Backend, w, h int) (*DoubleBuffer, error) {
	db := &DoubleBuffer{backend: backend}
	for i := range db.buffers {
		fb, err := backend.CreateFrameBuffer(w, h)
		if err != nil {
			db.Release()
			return nil, fmt.Errorf("creating frame buffer %d: %w", i, err)
		}
		db.buffers[i] = fb
	}
	db.bind()
	return db, nil
}

// Read returns the buffer sampled by the next dispatch.
func (db *DoubleBuffer) Read() compute.FrameBuffer {
	return db.buffers[db.read]
}

// Write returns the target of the next dispatch.
func (db *DoubleBuffer) Write() compute.FrameBuffer {
	return db.buffers[1-db.read]
}

// Swap exchanges the roles and rebinds them on the backend.
func (db *DoubleBuffer) Swap() {
	db.read = 1 - db.read
	db.bind()
}

// Bind re-applies the current pair, e.g. after the canvas was targeted.
func (db *DoubleBuffer) Bind() {
	db.bind()
}

func (db *DoubleBuffer) bind() {
	db.backend.BindReadTexture(db.Read())
	db.backend.BindWriteTarget(db.Write())
}

// Release frees both buffers. Safe to call more than once.
func (db *DoubleBuffer) Release() {
	for i, fb := range db.buffers {
		if fb != nil {
			db.backend.ReleaseFrameBuffer(fb)
			db.buffers[i] = nil
		}
	}
}
