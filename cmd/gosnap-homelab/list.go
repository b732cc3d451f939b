package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/pruner"
	"github.com/fgeck/gosnap-homelab/internal/services/sizer"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the destination",
	Long:  `List the snapshot directories in the destination, oldest first, with their sizes.`,
	RunE:  listSnapshots,
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil || cfg == nil {
		return err
	}

	if cfg.Destination == "" {
		log.Error().Msg("destination is not set")
		return fmt.Errorf("destination is required")
	}

	snapshots, err := pruner.New(log.Logger).List(cfg.Destination)
	if err != nil {
		log.Error().Err(err).Str("destination", cfg.Destination).Msg("failed to list snapshots")
		return err
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots found.")
		return nil
	}

	sizes := sizer.New(log.Logger)
	var total int64
	for _, snap := range snapshots {
		size := sizes.DirSize(snap.Path)
		total += size
		fmt.Printf("  %-36s %10s  %s\n", snap.Name, humanize.IBytes(uint64(size)), age(snap.Name))
	}

	fmt.Println()
	fmt.Printf("%d snapshot(s), %s total (keeping %d)\n", len(snapshots), humanize.IBytes(uint64(total)), cfg.MaxBackups)
	return nil
}

// age turns a snapshot name back into a relative time, e.g. "3 hours ago".
func age(name string) string {
	stamp := strings.TrimPrefix(name, models.SnapshotPrefix)
	t, err := time.Parse("2006-01-02T15-04-05-000Z", stamp)
	if err != nil {
		return ""
	}
	return humanize.Time(t)
}
