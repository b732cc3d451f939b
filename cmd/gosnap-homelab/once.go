package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/gosnap-homelab/internal/config"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single backup cycle",
	Long: `Run a single backup cycle and exit. Suitable for an external scheduler
(cron, systemd timer, etc.). Exits non-zero when the cycle fails or the
configuration is incomplete.`,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil || cfg == nil {
		return err
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, shutdownSignals...)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	runnerSvc := runner.New(log.Logger, config.NewStore(*cfg), newObserver(cfg))
	defer runnerSvc.Close()

	result := runnerSvc.RunCycle(ctx)
	if result.Status != models.CycleSuccess {
		log.Error().Err(result.Error).Str("step", result.FailedStep).Msg("backup failed")
		if result.Error != nil {
			return result.Error
		}
		return fmt.Errorf("backup cycle %s", result.Status)
	}

	event := log.Info().
		Str("snapshot", result.Snapshot.Path).
		Str("size", humanize.IBytes(uint64(result.Snapshot.SizeBytes))).
		Dur("duration", result.Duration)
	if result.Prune != nil {
		event = event.Int("pruned", len(result.Prune.Removed))
	}
	event.Msg("backup completed successfully")
	return nil
}
