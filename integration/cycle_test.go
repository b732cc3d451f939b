//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/config"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/events"
	"github.com/fgeck/gosnap-homelab/internal/services/pruner"
	"github.com/fgeck/gosnap-homelab/internal/services/runner"
	"github.com/fgeck/gosnap-homelab/internal/services/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// destination returns TEST_SNAPSHOT_DESTINATION (e.g. a NAS mount) or a temp dir.
func destination(t *testing.T) string {
	t.Helper()

	if base := os.Getenv("TEST_SNAPSHOT_DESTINATION"); base != "" {
		dir, err := os.MkdirTemp(base, "gosnap-integration-")
		require.NoError(t, err)
		t.Cleanup(func() { _ = os.RemoveAll(dir) })
		return dir
	}
	return t.TempDir()
}

func writeSource(t *testing.T) string {
	t.Helper()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("0123456789"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "docs", "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "docs", "node_modules", "x.js"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "docs", "readme.md"), []byte("hello"), 0o644))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))
	return src
}

func newRunner(t *testing.T, store *config.Store, observer events.Observer) *runner.Impl {
	t.Helper()

	r := runner.NewWithServices(testLogger(), store, observer, runner.Services{
		// One interval unit is a second so the schedule fires quickly.
		NewScheduler: func(job func()) runner.Scheduler {
			return scheduler.NewWithUnit(job, observer, testLogger(), time.Second)
		},
	})
	t.Cleanup(r.Close)
	return r
}

func TestScheduledCyclesPauseOnUnchangedSource_Integration(t *testing.T) {
	cfg := models.BackupConfig{
		Source:          writeSource(t),
		Destination:     destination(t),
		Excludes:        []string{"node_modules"},
		IntervalMinutes: 1,
		MaxBackups:      2,
		SmartStreak:     2,
		CopyWorkers:     4,
	}
	recorder := events.NewRecorder()
	r := newRunner(t, config.NewStore(cfg), recorder)

	require.NoError(t, r.Start())

	// Baseline, one repeat, second repeat: the third cycle pauses the schedule.
	require.Eventually(t, func() bool { return !r.Running() }, 15*time.Second, 100*time.Millisecond)

	assert.Equal(t, []events.Notification{
		{Title: runner.NotificationTitle, Body: runner.InactivityMessage},
	}, recorder.Notifications())

	logs := recorder.Logs()
	assert.Contains(t, logs, "Starting auto-backup. Interval: 1 mins.")
	assert.Contains(t, logs, "Backup size: 15 bytes")
	assert.Contains(t, logs, "Same size streak: 2/2")
	assert.Contains(t, logs, "Smart Check Triggered: Stopping auto-backups.")
	assert.Contains(t, logs, "Auto-backup stopped.")

	snapshots, err := pruner.New(testLogger()).List(cfg.Destination)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	latest := snapshots[len(snapshots)-1].Path
	assert.FileExists(t, filepath.Join(latest, "a.txt"))
	assert.FileExists(t, filepath.Join(latest, "docs", "readme.md"))
	assert.NoDirExists(t, filepath.Join(latest, "docs", "node_modules"))

	target, err := os.Readlink(filepath.Join(latest, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)
}

func TestForcedCycleAfterPause_Integration(t *testing.T) {
	cfg := models.BackupConfig{
		Source:          writeSource(t),
		Destination:     destination(t),
		IntervalMinutes: 60,
		MaxBackups:      10,
		SmartStreak:     3,
	}
	recorder := events.NewRecorder()
	r := newRunner(t, config.NewStore(cfg), recorder)

	first := r.ForceRunOnce(context.Background())
	require.Equal(t, models.CycleSuccess, first.Status, "%v", first.Error)

	// A changed source resets the streak.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source, "b.txt"), []byte("more"), 0o644))
	second := r.ForceRunOnce(context.Background())
	require.Equal(t, models.CycleSuccess, second.Status, "%v", second.Error)

	assert.Equal(t, first.Snapshot.SizeBytes+4, second.Snapshot.SizeBytes)
	assert.Equal(t, 0, second.Streak)
	assert.NotEqual(t, first.Snapshot.Name, second.Snapshot.Name)
}

func TestConfigReloadReschedules_Integration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gosnap.yaml")
	src := writeSource(t)
	dst := destination(t)

	write := func(interval int) {
		content := "source: " + src + "\ndestination: " + dst + "\ninterval_minutes: " + strconv.Itoa(interval) + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	write(60)

	parser := config.NewParser()
	cfg, err := parser.LoadFile(path)
	require.NoError(t, err)

	store := config.NewStore(*cfg)
	recorder := events.NewRecorder()
	r := newRunner(t, store, recorder)
	require.NoError(t, r.Start())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, parser.Watch(ctx, func(next *models.BackupConfig, err error) {
		if err != nil {
			return
		}
		store.Set(*next)
		_ = r.ReloadConfig()
	}))

	write(1)

	require.Eventually(t, func() bool {
		for _, line := range recorder.Logs() {
			if line == "Starting auto-backup. Interval: 1 mins." {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	// With a one second interval a cycle runs soon after the reload.
	require.Eventually(t, func() bool {
		snapshots, err := pruner.New(testLogger()).List(dst)
		return err == nil && len(snapshots) > 0
	}, 10*time.Second, 100*time.Millisecond)
}
