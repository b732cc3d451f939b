package main

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"sync"

	"github.com/fgeck/gosnap-homelab/internal/config"
	"github.com/fgeck/gosnap-homelab/internal/metrics"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/runner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var startSchedule bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the backup daemon",
	Long: `Run the backup daemon. Every cycle:
1. Wake-on-LAN of the storage host (if configured)
2. Copy the source into <destination>/backup-<timestamp>
3. Measure the snapshot and update the same-size streak
4. Pause the schedule and notify when the streak reaches smart_streak
5. Delete the oldest snapshots beyond max_backups
6. SSH shutdown of the storage host after a pause (if configured)

The schedule starts right away with auto_start or --start.
Signals: SIGINT/SIGTERM stop the daemon, SIGHUP reloads the config file,
SIGUSR1 runs a cycle now. Changes to the config file are applied automatically.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().BoolVar(&startSchedule, "start", false, "start the schedule even if auto_start is false")
}

//nolint:gocognit // daemon wiring
func runDaemon(cmd *cobra.Command, args []string) error {
	parser, cfg, err := loadConfig(cmd)
	if err != nil || cfg == nil {
		return err
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Error().Err(err).Msg("failed to register metrics")
		return err
	}

	store := config.NewStore(*cfg)
	runnerSvc := runner.NewWithServices(log.Logger, store, newObserver(cfg), runner.Services{Metrics: m})

	var wg sync.WaitGroup
	defer func() {
		cancel()
		runnerSvc.Close()
		wg.Wait()
		log.Info().Msg("daemon stopped")
	}()

	if cfg.Metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg, log.Logger); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Listen).Msg("metrics server failed")
			}
		}()
	}

	apply := func(next *models.BackupConfig, err error) {
		if err != nil {
			log.Error().Err(err).Str("file", configFile).Msg("failed to reload config, keeping previous settings")
			return
		}
		store.Set(*next)
		if err := runnerSvc.ReloadConfig(); err != nil {
			log.Error().Err(err).Msg("failed to apply reloaded config")
		}
	}
	if err := parser.Watch(ctx, apply); err != nil {
		log.Warn().Err(err).Str("file", configFile).Msg("config file changes will need a reload signal")
	}

	if cfg.AutoStart || startSchedule {
		if err := runnerSvc.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start schedule")
			return err
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, append(append(append([]os.Signal{}, shutdownSignals...), reloadSignals...), forceSignals...)...)
	defer signal.Stop(sigChan)

	log.Info().
		Str("source", cfg.Source).
		Str("destination", cfg.Destination).
		Bool("scheduled", runnerSvc.Running()).
		Msg("daemon started")

	for sig := range sigChan {
		switch {
		case slices.Contains(reloadSignals, sig):
			log.Info().Str("signal", sig.String()).Msg("reloading config")
			apply(parser.Reload())
		case slices.Contains(forceSignals, sig):
			log.Info().Str("signal", sig.String()).Msg("running backup now")
			wg.Add(1)
			go func() {
				defer wg.Done()
				runnerSvc.ForceRunOnce(ctx)
			}()
		default:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			return nil
		}
	}
	return nil
}
