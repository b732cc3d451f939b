package models

import (
	"strings"
	"time"
)

// SnapshotPrefix starts the name of every snapshot directory.
const SnapshotPrefix = "backup-"

// snapshotTimeLayout is ISO 8601 in UTC with millisecond precision.
const snapshotTimeLayout = "2006-01-02T15:04:05.000Z"

// SnapshotRecord describes one snapshot directory under the destination.
type SnapshotRecord struct {
	Name      string
	Path      string
	SizeBytes int64
}

// SnapshotName returns the directory name for a snapshot taken at t. Colons and dots are
// replaced so the name is filesystem safe and sorts chronologically.
func SnapshotName(t time.Time) string {
	stamp := t.UTC().Format(snapshotTimeLayout)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return SnapshotPrefix + stamp
}

// IsSnapshotName reports whether name looks like a snapshot directory.
func IsSnapshotName(name string) bool {
	return strings.HasPrefix(name, SnapshotPrefix)
}

// CopyResult holds the result of a tree copy.
type CopyResult struct {
	Path     string
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

// PruneResult holds the result of a retention pass.
type PruneResult struct {
	Kept    int
	Removed []string
	Failed  map[string]error
}
