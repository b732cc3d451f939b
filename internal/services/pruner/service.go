// Package pruner applies the snapshot retention count.
package pruner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the interface for snapshot retention.
type Service interface {
	List(destination string) ([]models.SnapshotRecord, error)
	Prune(destination string, maxBackups int) (*models.PruneResult, error)
}

// RemoveFunc deletes a path recursively.
type RemoveFunc func(path string) error

// Impl implements the pruner Service interface.
type Impl struct {
	remove RemoveFunc
	logger zerolog.Logger
}

// New creates a new pruner.
func New(logger zerolog.Logger) *Impl {
	return NewWithRemover(logger, os.RemoveAll)
}

// NewWithRemover creates a new pruner with a custom remove function (for testing).
func NewWithRemover(logger zerolog.Logger, remove RemoveFunc) *Impl {
	return &Impl{
		remove: remove,
		logger: logger,
	}
}

// List returns the snapshot directories directly under destination, oldest first. Sizes
// are not filled in.
func (s *Impl) List(destination string) ([]models.SnapshotRecord, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", models.ErrPrune, destination, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && models.IsSnapshotName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]models.SnapshotRecord, 0, len(names))
	for _, name := range names {
		records = append(records, models.SnapshotRecord{
			Name: name,
			Path: filepath.Join(destination, name),
		})
	}
	return records, nil
}

// Prune deletes the oldest snapshots until at most maxBackups remain. A failed deletion is
// recorded and the remaining ones are still attempted.
func (s *Impl) Prune(destination string, maxBackups int) (*models.PruneResult, error) {
	if maxBackups < 1 {
		return nil, fmt.Errorf("%w: max backups must be positive, got %d", models.ErrPrune, maxBackups)
	}

	snapshots, err := s.List(destination)
	if err != nil {
		return nil, err
	}

	result := &models.PruneResult{Failed: map[string]error{}}
	if len(snapshots) <= maxBackups {
		result.Kept = len(snapshots)
		return result, nil
	}

	excess := len(snapshots) - maxBackups
	for _, snap := range snapshots[:excess] {
		if err := s.remove(snap.Path); err != nil {
			s.logger.Error().Err(err).Str("snapshot", snap.Name).Msg("failed to prune snapshot")
			result.Failed[snap.Name] = err
			continue
		}
		s.logger.Info().Str("snapshot", snap.Name).Msg("pruned snapshot")
		result.Removed = append(result.Removed, snap.Name)
	}
	result.Kept = len(snapshots) - len(result.Removed)

	return result, nil
}
