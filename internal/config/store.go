package config

import (
	"sync"

	"github.com/fgeck/gosnap-homelab/internal/models"
)

// Store holds the current configuration and hands out copies of it.
type Store struct {
	mu  sync.RWMutex
	cfg models.BackupConfig
}

// NewStore creates a store holding cfg.
func NewStore(cfg models.BackupConfig) *Store {
	return &Store{cfg: cfg.Clone()}
}

// Config returns a copy of the current configuration.
func (s *Store) Config() models.BackupConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Set replaces the configuration.
func (s *Store) Set(cfg models.BackupConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
}
