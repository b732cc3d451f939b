package main

import (
	"fmt"

	"github.com/fgeck/gosnap-homelab/internal/services/pruner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots beyond max_backups",
	Long:  `Apply the retention policy to the destination without taking a new snapshot.`,
	RunE:  runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil || cfg == nil {
		return err
	}

	if cfg.Destination == "" {
		log.Error().Msg("destination is not set")
		return fmt.Errorf("destination is required")
	}

	result, err := pruner.New(log.Logger).Prune(cfg.Destination, cfg.MaxBackups)
	if err != nil {
		log.Error().Err(err).Str("destination", cfg.Destination).Msg("pruning failed")
		return err
	}

	log.Info().
		Int("kept", result.Kept).
		Int("removed", len(result.Removed)).
		Int("failed", len(result.Failed)).
		Msg("retention policy applied")

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d snapshot(s) could not be deleted", len(result.Failed))
	}
	return nil
}
