package models

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotName(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"midnight", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "backup-2024-01-01T00-00-00-000Z"},
		{"milliseconds", time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.UTC), "backup-2024-03-05T14-07-09-123Z"},
		{"converted to utc", time.Date(2024, 1, 1, 2, 0, 0, 0, time.FixedZone("CEST", 2*3600)), "backup-2024-01-01T00-00-00-000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SnapshotName(tt.in))
			assert.True(t, IsSnapshotName(SnapshotName(tt.in)))
		})
	}
}

func TestSnapshotName_SortsChronologically(t *testing.T) {
	base := time.Date(2024, 12, 31, 23, 59, 59, 998_000_000, time.UTC)
	var names []string
	for i := 3; i >= 0; i-- {
		names = append(names, SnapshotName(base.Add(time.Duration(i)*time.Millisecond)))
	}

	sort.Strings(names)

	assert.Equal(t, SnapshotName(base), names[0])
	assert.Equal(t, SnapshotName(base.Add(3*time.Millisecond)), names[3])
}

func TestIsSnapshotName(t *testing.T) {
	assert.True(t, IsSnapshotName("backup-anything"))
	assert.False(t, IsSnapshotName("notes.txt"))
	assert.False(t, IsSnapshotName("Backup-2024"))
}

func TestBackupConfig_Clone(t *testing.T) {
	cfg := BackupConfig{Excludes: []string{"a"}}

	out := cfg.Clone()
	out.Excludes[0] = "b"

	assert.Equal(t, "a", cfg.Excludes[0])
}
