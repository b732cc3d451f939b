package models

import (
	"errors"
	"time"
)

// Error kinds of a backup cycle.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrCopy          = errors.New("copy error")
	ErrPrune         = errors.New("prune error")
)

// CycleStatus is the outcome of one backup cycle.
type CycleStatus string

// Cycle outcomes.
const (
	CycleSuccess CycleStatus = "success"
	CycleFailed  CycleStatus = "failed"
	CycleInvalid CycleStatus = "invalid"
	CycleSkipped CycleStatus = "skipped" // another cycle was already running
)

// CycleResult holds the result of one backup cycle.
type CycleResult struct {
	ID            string
	Status        CycleStatus
	Snapshot      *SnapshotRecord
	Streak        int
	StreakStopped bool
	Prune         *PruneResult
	FailedStep    string
	Error         error
	Duration      time.Duration
}

// StreakState is the in-memory state of the same-size detector.
type StreakState struct {
	LastSize int64 // -1 until the first observation
	Count    int
}
