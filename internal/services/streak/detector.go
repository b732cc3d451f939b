// Package streak detects runs of snapshots with identical size.
package streak

import (
	"sync"

	"github.com/fgeck/gosnap-homelab/internal/models"
)

const unset = -1

// Observation is the outcome of one Observe call.
type Observation struct {
	Equal      bool // size matched the previous baseline
	Count      int  // consecutive equal observations, after this one
	ShouldStop bool // the streak reached the threshold
}

// Detector tracks consecutive equal-size observations. It only reports; stopping the
// schedule is up to the caller. A Detector is safe for concurrent use.
type Detector struct {
	mu       sync.Mutex
	lastSize int64
	count    int
}

// New creates a detector with no baseline.
func New() *Detector {
	return &Detector{lastSize: unset}
}

// Observe records the size of a completed snapshot. When size equals the baseline the count
// grows, and once it reaches threshold ShouldStop is set and the count starts over. Any
// other size becomes the new baseline.
func (d *Detector) Observe(size int64, threshold int) Observation {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size != d.lastSize {
		d.lastSize = size
		d.count = 0
		return Observation{}
	}

	d.count++
	obs := Observation{Equal: true, Count: d.count}
	if threshold > 0 && d.count >= threshold {
		obs.ShouldStop = true
		d.count = 0
	}
	return obs
}

// State returns a copy of the current state.
func (d *Detector) State() models.StreakState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return models.StreakState{LastSize: d.lastSize, Count: d.count}
}

// Reset forgets the baseline.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSize = unset
	d.count = 0
}
