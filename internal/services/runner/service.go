// Package runner orchestrates the backup workflow.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/gosnap-homelab/internal/metrics"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/copier"
	"github.com/fgeck/gosnap-homelab/internal/services/events"
	"github.com/fgeck/gosnap-homelab/internal/services/pruner"
	"github.com/fgeck/gosnap-homelab/internal/services/scheduler"
	"github.com/fgeck/gosnap-homelab/internal/services/shutdown"
	"github.com/fgeck/gosnap-homelab/internal/services/sizer"
	"github.com/fgeck/gosnap-homelab/internal/services/streak"
	"github.com/fgeck/gosnap-homelab/internal/services/wake"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Title of every user-facing notification.
const NotificationTitle = "Nexus Backup"

// InactivityMessage is sent when the same-size streak pauses the schedule.
const InactivityMessage = "Backup stopped due to inactivity (Smart Check)."

// ConfigSource hands out the current configuration.
type ConfigSource interface {
	Config() models.BackupConfig
}

// Scheduler fires the scheduled cycle at a fixed interval.
type Scheduler interface {
	Start(intervalMinutes int) error
	Stop()
	Running() bool
	Close() context.Context
}

// Service defines the interface for the backup runner.
type Service interface {
	RunCycle(ctx context.Context) *models.CycleResult
	ForceRunOnce(ctx context.Context) *models.CycleResult
	Start() error
	Stop()
	ReloadConfig() error
	Running() bool
	Close()
}

// Services bundles the collaborators of a runner. Nil fields get their default implementation.
type Services struct {
	Copier       copier.Service
	Sizer        sizer.Service
	Pruner       pruner.Service
	Wake         wake.Service
	Shutdown     shutdown.Service
	Metrics      *metrics.Metrics
	NewScheduler func(job func()) Scheduler
	Now          func() time.Time
}

// Impl implements the runner Service interface.
type Impl struct {
	configs     ConfigSource
	observer    events.Observer
	copierSvc   copier.Service
	sizerSvc    sizer.Service
	prunerSvc   pruner.Service
	wakeSvc     wake.Service
	shutdownSvc shutdown.Service
	metrics     *metrics.Metrics
	scheduler   Scheduler
	streak      *streak.Detector
	logger      zerolog.Logger
	now         func() time.Time

	running atomic.Bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new runner service.
func New(logger zerolog.Logger, configs ConfigSource, observer events.Observer) *Impl {
	return NewWithServices(logger, configs, observer, Services{})
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(logger zerolog.Logger, configs ConfigSource, observer events.Observer, svcs Services) *Impl {
	if svcs.Copier == nil {
		svcs.Copier = copier.NewWithWorkers(logger, configs.Config().CopyWorkers)
	}
	if svcs.Sizer == nil {
		svcs.Sizer = sizer.New(logger)
	}
	if svcs.Pruner == nil {
		svcs.Pruner = pruner.New(logger)
	}
	if svcs.Wake == nil {
		svcs.Wake = wake.New(logger)
	}
	if svcs.Shutdown == nil {
		svcs.Shutdown = shutdown.New(logger)
	}
	if svcs.Now == nil {
		svcs.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Impl{
		configs:     configs,
		observer:    observer,
		copierSvc:   svcs.Copier,
		sizerSvc:    svcs.Sizer,
		prunerSvc:   svcs.Pruner,
		wakeSvc:     svcs.Wake,
		shutdownSvc: svcs.Shutdown,
		metrics:     svcs.Metrics,
		streak:      streak.New(),
		logger:      logger.With().Str("component", "runner").Logger(),
		now:         svcs.Now,
		baseCtx:     ctx,
		cancel:      cancel,
	}

	if svcs.NewScheduler != nil {
		r.scheduler = svcs.NewScheduler(r.scheduledCycle)
	} else {
		r.scheduler = scheduler.New(r.scheduledCycle, observer, logger)
	}
	return r
}

// Start schedules cycles with the configured interval. Starting while scheduled reschedules.
func (r *Impl) Start() error {
	cfg := r.configs.Config()
	if err := r.scheduler.Start(cfg.IntervalMinutes); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, err)
	}
	r.metrics.SetScheduled(true)
	return nil
}

// Stop cancels future scheduled cycles. A cycle in flight keeps running.
func (r *Impl) Stop() {
	r.scheduler.Stop()
	r.metrics.SetScheduled(false)
}

// Running reports whether cycles are scheduled.
func (r *Impl) Running() bool {
	return r.scheduler.Running()
}

// ForceRunOnce runs a cycle now, unless one is already in progress.
func (r *Impl) ForceRunOnce(ctx context.Context) *models.CycleResult {
	r.logger.Debug().Msg("forced cycle requested")
	return r.RunCycle(ctx)
}

// ReloadConfig applies a changed configuration. A running schedule picks up the new interval,
// a stopped one stays stopped.
func (r *Impl) ReloadConfig() error {
	r.observer.Log("Settings reloaded.")
	if !r.scheduler.Running() {
		return nil
	}
	return r.Start()
}

// Close stops scheduling, cancels the context of scheduled cycles and waits for them.
func (r *Impl) Close() {
	stopped := r.scheduler.Close()
	r.cancel()
	<-stopped.Done()
	r.wg.Wait()
	r.metrics.SetScheduled(false)
}

func (r *Impl) scheduledCycle() {
	r.wg.Add(1)
	defer r.wg.Done()
	r.RunCycle(r.baseCtx)
}

// RunCycle executes one backup cycle: copy, measure, streak check and prune.
// A cycle that starts while another one runs is skipped.
//
//nolint:gocognit,gocyclo // backup workflow has multiple steps by design
func (r *Impl) RunCycle(ctx context.Context) *models.CycleResult {
	result := &models.CycleResult{ID: uuid.NewString()}

	if !r.running.CompareAndSwap(false, true) {
		result.Status = models.CycleSkipped
		r.logger.Debug().Str("cycle", result.ID).Msg("cycle already running, skipping")
		r.metrics.RecordCycle(result, r.now())
		return result
	}
	defer r.running.Store(false)

	start := r.now()
	logger := r.logger.With().Str("cycle", result.ID).Logger()
	cfg := r.configs.Config()

	r.observer.Status(true)
	r.observer.Log("Starting backup...")

	defer func() {
		result.Duration = r.now().Sub(start)
		r.observer.Status(r.scheduler.Running())
		r.metrics.RecordCycle(result, r.now())
		r.metrics.SetScheduled(r.scheduler.Running())

		logger.Info().
			Str("status", string(result.Status)).
			Str("failed_step", result.FailedStep).
			Dur("duration", result.Duration).
			Msg("cycle finished")
	}()

	// Step 1: Validate paths
	if cfg.Source == "" || cfg.Destination == "" {
		r.observer.Log("Error: Source or Destination not set.")
		r.invalid(result, fmt.Errorf("%w: source or destination not set", models.ErrConfiguration))
		return result
	}
	if _, err := os.Stat(cfg.Source); err != nil {
		r.observer.Log("Error: Source path does not exist.")
		r.invalid(result, fmt.Errorf("%w: source path %s: %w", models.ErrConfiguration, cfg.Source, err))
		return result
	}

	// Step 2: Wake the storage host (if configured)
	if cfg.Wake != nil {
		if err := r.runWake(ctx, cfg.Wake); err != nil {
			r.fail(cfg, result, "wake", err)
			return result
		}
	}

	// Step 3: Copy
	snapshotPath := filepath.Join(cfg.Destination, models.SnapshotName(start))
	copyResult, err := r.copierSvc.CopyTree(ctx, cfg.Source, snapshotPath, cfg.Excludes)
	if err != nil {
		r.fail(cfg, result, "copy", err)
		return result
	}
	r.observer.Log(fmt.Sprintf("Backup created at: %s", snapshotPath))

	// Step 4: Measure
	size := r.sizerSvc.DirSize(snapshotPath)
	r.observer.Log(fmt.Sprintf("Backup size: %d bytes", size))
	result.Snapshot = &models.SnapshotRecord{
		Name:      filepath.Base(snapshotPath),
		Path:      snapshotPath,
		SizeBytes: size,
	}

	logger.Info().
		Str("snapshot", result.Snapshot.Name).
		Int("files", copyResult.Files).
		Int("dirs", copyResult.Dirs).
		Str("size", humanize.IBytes(uint64(size))).
		Msg("snapshot created")

	// Step 5: Smart check
	obs := r.streak.Observe(size, cfg.SmartStreak)
	result.Streak = obs.Count
	if obs.Equal {
		r.observer.Log(fmt.Sprintf("Same size streak: %d/%d", obs.Count, cfg.SmartStreak))
	}
	if obs.ShouldStop {
		result.StreakStopped = true
		r.observer.Log("Smart Check Triggered: Stopping auto-backups.")
		r.Stop()
		r.observer.Notify(NotificationTitle, InactivityMessage)
	}

	// Step 6: Prune
	result.Prune = r.runPrune(cfg)

	// Step 7: Shut the storage host down once the schedule paused (if configured)
	if result.StreakStopped && cfg.Shutdown != nil {
		r.runShutdown(ctx, cfg.Shutdown)
	}

	result.Status = models.CycleSuccess
	return result
}

func (r *Impl) invalid(result *models.CycleResult, err error) {
	result.Status = models.CycleInvalid
	result.FailedStep = "validate"
	result.Error = err
}

func (r *Impl) fail(cfg models.BackupConfig, result *models.CycleResult, step string, err error) {
	result.Status = models.CycleFailed
	result.FailedStep = step
	result.Error = err

	msg := fmt.Sprintf("Backup failed: %s", err.Error())
	r.observer.Log(msg)
	r.logger.Error().Err(err).Str("step", step).Msg("cycle failed")

	if cfg.NotifyOnFailure {
		r.observer.Notify(NotificationTitle, msg)
	}
}

func (r *Impl) runWake(ctx context.Context, cfg *models.WakeConfig) error {
	result, err := r.wakeSvc.Wake(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("wake storage host: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("wake storage host: %w", result.Error)
	}
	if !result.TargetReady {
		return errors.New("storage host did not become ready")
	}

	r.logger.Info().
		Bool("packet_sent", result.PacketSent).
		Dur("wait_duration", result.WaitDuration).
		Msg("storage host awake")
	return nil
}

func (r *Impl) runPrune(cfg models.BackupConfig) *models.PruneResult {
	result, err := r.prunerSvc.Prune(cfg.Destination, cfg.MaxBackups)
	if err != nil {
		r.observer.Log(fmt.Sprintf("Pruning failed: %s", err.Error()))
		return nil
	}

	for _, name := range result.Removed {
		r.observer.Log(fmt.Sprintf("Pruned old backup: %s", name))
	}

	failed := make([]string, 0, len(result.Failed))
	for name := range result.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		r.observer.Log(fmt.Sprintf("Pruning failed: %s", result.Failed[name].Error()))
	}

	return result
}

func (r *Impl) runShutdown(ctx context.Context, cfg *models.ShutdownConfig) {
	result, err := r.shutdownSvc.Shutdown(ctx, *cfg)
	if err != nil {
		r.logger.Error().Err(err).Msg("storage host shutdown failed")
		return
	}
	if result.Error != nil {
		r.logger.Error().Err(result.Error).Bool("command_run", result.CommandRun).Msg("storage host shutdown failed")
		return
	}

	r.logger.Info().
		Str("host", cfg.Host).
		Str("output", result.Output).
		Msg("storage host shutdown command sent")
}
