// Package sizer measures snapshot directories.
package sizer

import (
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Service defines the interface for size calculation.
type Service interface {
	DirSize(path string) int64
}

// Impl implements the sizer Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new sizer.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// DirSize returns the sum of the regular file sizes below path. Entries that cannot be read
// are logged and count as zero; links are not followed.
func (s *Impl) DirSize(path string) int64 {
	var total int64
	var failures int

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			failures++
			s.logger.Warn().Err(err).Str("path", p).Msg("size scan: skipping entry")
			if d != nil && d.IsDir() && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			failures++
			s.logger.Warn().Err(err).Str("path", p).Msg("size scan: skipping entry")
			return nil
		}
		total += info.Size()
		return nil
	})

	s.logger.Debug().
		Str("path", path).
		Int64("bytes", total).
		Int("failures", failures).
		Msg("size scan completed")

	return total
}
