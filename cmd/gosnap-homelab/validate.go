package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/config"
	"github.com/fgeck/gosnap-homelab/internal/services/shutdown"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkShutdownHost bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without executing any backup operations.`,
	RunE:  validateConfig,
}

func init() {
	validateCmd.Flags().BoolVar(&checkShutdownHost, "check-ssh", false, "test the SSH connection to the shutdown host")
}

//nolint:gocognit,gocyclo // summary output for each optional feature
func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	if _, err := os.Stat(cfg.Source); err != nil {
		log.Warn().Err(err).Str("source", cfg.Source).Msg("source path is not accessible")
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Source: %s\n", cfg.Source)
	fmt.Printf("  Destination: %s\n", cfg.Destination)
	fmt.Printf("  Excludes: %v\n", cfg.Excludes)
	fmt.Printf("  Interval: %d minute(s)\n", cfg.IntervalMinutes)
	fmt.Printf("  Auto start: %v\n", cfg.AutoStart)
	fmt.Printf("  Copy workers: %d\n", cfg.CopyWorkers)
	fmt.Println()
	fmt.Println("Retention Policy:")
	fmt.Printf("  Max backups: %d\n", cfg.MaxBackups)
	fmt.Printf("  Smart streak: %d\n", cfg.SmartStreak)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Wake-on-LAN: %v\n", cfg.Wake != nil)
	fmt.Printf("  SSH Shutdown: %v\n", cfg.Shutdown != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Printf("  Notify on failure: %v\n", cfg.NotifyOnFailure)
	fmt.Printf("  Metrics: %v\n", cfg.Metrics != nil)

	if cfg.Wake != nil {
		fmt.Println()
		fmt.Println("Wake-on-LAN Configuration:")
		fmt.Printf("  MAC Address: %s\n", cfg.Wake.MACAddress)
		fmt.Printf("  Broadcast IP: %s\n", cfg.Wake.BroadcastIP)
		if cfg.Wake.PollURL != "" {
			fmt.Printf("  Poll URL: %s\n", cfg.Wake.PollURL)
			fmt.Printf("  Timeout: %s\n", cfg.Wake.Timeout)
		}
	}

	if cfg.Shutdown != nil {
		fmt.Println()
		fmt.Println("SSH Shutdown Configuration:")
		fmt.Printf("  Host: %s\n", cfg.Shutdown.Host)
		fmt.Printf("  Port: %d\n", cfg.Shutdown.Port)
		fmt.Printf("  Username: %s\n", cfg.Shutdown.Username)
		fmt.Printf("  OS: %s\n", cfg.Shutdown.OS)
		fmt.Printf("  Shutdown Delay: %d minute(s)\n", cfg.Shutdown.ShutdownDelay)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if cfg.Metrics != nil {
		fmt.Println()
		fmt.Println("Metrics Configuration:")
		fmt.Printf("  Listen: %s\n", cfg.Metrics.Listen)
	}

	if checkShutdownHost {
		if cfg.Shutdown == nil {
			return fmt.Errorf("--check-ssh requires a shutdown section")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := shutdown.New(log.Logger).CheckAccess(ctx, *cfg.Shutdown)
		if err == nil {
			err = result.Error
		}
		if err != nil {
			log.Error().Err(err).Str("host", cfg.Shutdown.Host).Msg("SSH check failed")
			return err
		}
		fmt.Println()
		fmt.Printf("SSH check: OK (%s)\n", cfg.Shutdown.Host)
	}

	return nil
}
