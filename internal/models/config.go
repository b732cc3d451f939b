// Package models contains the data structures used throughout gosnap-homelab.
package models

// BackupConfig holds the complete configuration for the snapshot engine.
type BackupConfig struct {
	Source          string
	Destination     string
	Excludes        []string
	IntervalMinutes int
	MaxBackups      int
	SmartStreak     int // consecutive same-size snapshots before the schedule pauses
	AutoStart       bool
	CopyWorkers     int
	NotifyOnFailure bool

	Wake     *WakeConfig     // nil if not configured
	Shutdown *ShutdownConfig // nil if not configured
	Telegram *TelegramConfig // nil if not configured
	Metrics  *MetricsConfig  // nil if not configured
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Listen string // e.g. ":9110"
}

// Clone returns a copy of the configuration that shares no slices with the original.
func (c BackupConfig) Clone() BackupConfig {
	out := c
	if c.Excludes != nil {
		out.Excludes = append([]string(nil), c.Excludes...)
	}
	return out
}
