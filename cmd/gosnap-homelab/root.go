package main

import (
	"os"
	"strings"

	"github.com/fgeck/gosnap-homelab/internal/config"
	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/events"
	"github.com/fgeck/gosnap-homelab/internal/services/telegram"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "gosnap-homelab",
	Short: "A snapshot backup daemon for homelab environments",
	Long: `gosnap-homelab copies a source directory into timestamped snapshot
directories on a schedule and handles:
  - Exclude patterns (plain substring match on relative paths)
  - Retention of the newest N snapshots
  - Smart check: pauses the schedule after N snapshots of unchanged size
  - Wake-on-LAN of the storage host before a snapshot
  - SSH shutdown of the storage host when the schedule pauses
  - Telegram notifications and Prometheus metrics

Run it as a daemon ("run") or trigger single cycles from an external scheduler ("once").`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig parses the file given with --config.
func loadConfig(cmd *cobra.Command) (*config.Parser, *models.BackupConfig, error) {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return nil, nil, cmd.Help()
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, nil, err
	}

	log.Debug().
		Str("config", configFile).
		Str("source", cfg.Source).
		Str("destination", cfg.Destination).
		Msg("configuration loaded")

	return parser, cfg, nil
}

// newObserver logs every engine event and forwards notifications to Telegram when configured.
func newObserver(cfg *models.BackupConfig) events.Observer {
	observers := events.Fanout{events.NewLogObserver(log.Logger)}
	if cfg.Telegram != nil {
		observers = append(observers, telegram.NewNotifier(telegram.New(log.Logger), *cfg.Telegram, log.Logger))
	}
	return observers
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
