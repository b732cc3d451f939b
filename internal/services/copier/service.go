// Package copier copies a source tree into a new snapshot directory.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/filter"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of files copied concurrently when not configured.
const DefaultWorkers = 4

// Service defines the interface for tree copies.
type Service interface {
	CopyTree(ctx context.Context, source, destination string, excludes []string) (*models.CopyResult, error)
}

// Impl implements the copier Service interface.
type Impl struct {
	logger  zerolog.Logger
	workers int
}

// New creates a new copier with DefaultWorkers workers.
func New(logger zerolog.Logger) *Impl {
	return NewWithWorkers(logger, DefaultWorkers)
}

// NewWithWorkers creates a new copier with a custom worker count.
func NewWithWorkers(logger zerolog.Logger, workers int) *Impl {
	if workers < 1 {
		workers = 1
	}
	return &Impl{
		logger:  logger,
		workers: workers,
	}
}

type counters struct {
	files, dirs, links, bytes atomic.Int64
}

func (c *counters) result(path string) *models.CopyResult {
	return &models.CopyResult{
		Path:     path,
		Files:    int(c.files.Load()),
		Dirs:     int(c.dirs.Load()),
		Symlinks: int(c.links.Load()),
		Bytes:    c.bytes.Load(),
	}
}

// CopyTree copies source to destination, skipping every path matched by excludes. The walk
// runs on the calling goroutine and hands regular files to a bounded worker pool; the call
// returns once every worker is done. A failed copy leaves the partial tree in place.
func (s *Impl) CopyTree(ctx context.Context, source, destination string, excludes []string) (*models.CopyResult, error) {
	var c counters

	info, err := os.Stat(source)
	if err != nil {
		return c.result(destination), fmt.Errorf("%w: source %s: %w", models.ErrCopy, source, err)
	}

	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return c.result(destination), fmt.Errorf("%w: creating destination: %w", models.ErrCopy, err)
		}
		n, err := copyFile(source, destination, info)
		if err != nil {
			return c.result(destination), fmt.Errorf("%w: %w", models.ErrCopy, err)
		}
		c.files.Add(1)
		c.bytes.Add(n)
		return c.result(destination), nil
	}

	if within(source, destination) {
		return c.result(destination), fmt.Errorf("%w: destination %s is inside source %s", models.ErrCopy, destination, source)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return c.result(destination), fmt.Errorf("%w: creating destination: %w", models.ErrCopy, err)
	}
	if err := os.Mkdir(destination, dirPerm(info.Mode())); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return c.result(destination), fmt.Errorf("%w: snapshot %s: %w", models.ErrCopy, destination, err)
		}
		return c.result(destination), fmt.Errorf("%w: creating destination: %w", models.ErrCopy, err)
	}
	destInfo, err := os.Stat(destination)
	if err != nil {
		return c.result(destination), fmt.Errorf("%w: creating destination: %w", models.ErrCopy, err)
	}

	f := filter.New(source, excludes)

	s.logger.Debug().
		Str("source", source).
		Str("destination", destination).
		Strs("excludes", f.Patterns()).
		Int("workers", s.workers).
		Msg("copying tree")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	walkErr := filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		if path == source {
			return nil
		}

		if !f.Include(path) {
			s.logger.Debug().Str("path", path).Msg("excluded")
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destination, rel)

		switch {
		case d.IsDir():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			// The destination can still be reached through a symlinked source path.
			if os.SameFile(entryInfo, destInfo) {
				return filepath.SkipDir
			}
			if err := os.MkdirAll(target, dirPerm(entryInfo.Mode())); err != nil {
				return err
			}
			c.dirs.Add(1)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return err
			}
			c.links.Add(1)

		case d.Type().IsRegular():
			entryInfo, err := d.Info()
			if err != nil {
				return err
			}
			g.Go(func() error {
				n, err := copyFile(path, target, entryInfo)
				if err != nil {
					return err
				}
				c.files.Add(1)
				c.bytes.Add(n)
				return nil
			})

		default:
			s.logger.Debug().Str("path", path).Str("mode", d.Type().String()).Msg("skipping irregular file")
		}

		return nil
	})

	// A worker failure cancels gctx, which makes the walk return context.Canceled; the
	// worker's error is the one worth reporting.
	if err := g.Wait(); err != nil {
		return c.result(destination), fmt.Errorf("%w: %w", models.ErrCopy, err)
	}
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) && ctx.Err() != nil {
			walkErr = ctx.Err()
		}
		return c.result(destination), fmt.Errorf("%w: %w", models.ErrCopy, walkErr)
	}

	return c.result(destination), nil
}

// within reports whether destination is source itself or lies below it.
func within(source, destination string) bool {
	absSource, err := filepath.Abs(source)
	if err != nil {
		return false
	}
	absDestination, err := filepath.Abs(destination)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absSource, absDestination)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func copyFile(src, dst string, info fs.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", dst, err)
	}

	// Best effort: a snapshot is still usable with fresh timestamps.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return n, nil
}

// dirPerm keeps the source bits but always lets the owner manage the directory, so
// read-only sources never produce snapshots that cannot be pruned.
func dirPerm(mode fs.FileMode) fs.FileMode {
	return mode.Perm() | 0o700
}
