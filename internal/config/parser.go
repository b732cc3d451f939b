// Package config provides configuration file parsing.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/filter"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent.
const (
	DefaultExcludes        = "node_modules, .git, temp"
	DefaultIntervalMinutes = 60
	DefaultMaxBackups      = 10
	DefaultSmartStreak     = 3
	DefaultCopyWorkers     = 4
)

// Parser handles configuration file parsing. A viper instance is not safe for concurrent
// use, so every read of it goes through mu.
type Parser struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.BackupConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.path = abs
	p.v.SetConfigFile(abs)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BackupConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// Watch re-parses the file loaded by LoadFile whenever it changes on disk and hands the
// outcome to onChange until ctx is done. A parse error leaves the previous configuration
// in effect.
func (p *Parser) Watch(ctx context.Context, onChange func(cfg *models.BackupConfig, err error)) error {
	p.mu.Lock()
	path := p.path
	p.mu.Unlock()

	if path == "" {
		return fmt.Errorf("watching config: no config file loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	// Editors often replace the file on save, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching config directory: %w", err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				onChange(p.Reload())

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onChange(nil, fmt.Errorf("watching config: %w", err))
			}
		}
	}()

	return nil
}

// Reload re-reads the file loaded by LoadFile. It is safe to call while Watch is running.
func (p *Parser) Reload() (*models.BackupConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.path == "" {
		return nil, fmt.Errorf("reading config file: no config file loaded")
	}
	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return p.parse()
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{
		Source:          p.expandEnv(p.v.GetString("source")),
		Destination:     p.expandEnv(p.v.GetString("destination")),
		Excludes:        p.excludes(),
		IntervalMinutes: p.v.GetInt("interval_minutes"),
		MaxBackups:      p.v.GetInt("max_backups"),
		SmartStreak:     p.v.GetInt("smart_streak"),
		AutoStart:       p.v.GetBool("auto_start"),
		CopyWorkers:     p.v.GetInt("copy_workers"),
		NotifyOnFailure: p.v.GetBool("notify_on_failure"),
	}

	// Zero means "use the default", as in the desktop settings store.
	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = DefaultIntervalMinutes
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	if cfg.SmartStreak == 0 {
		cfg.SmartStreak = DefaultSmartStreak
	}
	if cfg.CopyWorkers == 0 {
		cfg.CopyWorkers = DefaultCopyWorkers
	}

	if cfg.IntervalMinutes < 0 {
		return nil, fmt.Errorf("interval_minutes must be positive")
	}
	if cfg.MaxBackups < 0 {
		return nil, fmt.Errorf("max_backups must be positive")
	}
	if cfg.SmartStreak < 0 {
		return nil, fmt.Errorf("smart_streak must be positive")
	}
	if cfg.CopyWorkers < 0 {
		return nil, fmt.Errorf("copy_workers must be positive")
	}

	// Parse optional wake config.
	if p.v.IsSet("wake") { //nolint:nestif // config parsing with defaults
		cfg.Wake = &models.WakeConfig{
			MACAddress:    p.v.GetString("wake.mac_address"),
			BroadcastIP:   p.v.GetString("wake.broadcast_ip"),
			PollURL:       p.v.GetString("wake.poll_url"),
			Timeout:       p.v.GetDuration("wake.timeout"),
			PollInterval:  p.v.GetDuration("wake.poll_interval"),
			StabilizeWait: p.v.GetDuration("wake.stabilize_wait"),
		}

		if cfg.Wake.MACAddress == "" {
			return nil, fmt.Errorf("wake.mac_address is required when wake is configured")
		}
		if cfg.Wake.BroadcastIP == "" {
			cfg.Wake.BroadcastIP = "255.255.255.255"
		}
		if cfg.Wake.Timeout == 0 {
			cfg.Wake.Timeout = 5 * time.Minute
		}
		if cfg.Wake.PollInterval == 0 {
			cfg.Wake.PollInterval = 10 * time.Second
		}
		if cfg.Wake.StabilizeWait == 0 {
			cfg.Wake.StabilizeWait = 10 * time.Second
		}
	}

	// Parse optional shutdown config.
	if p.v.IsSet("shutdown") { //nolint:nestif // config parsing with defaults
		cfg.Shutdown = &models.ShutdownConfig{
			Host:          p.v.GetString("shutdown.host"),
			Port:          p.v.GetInt("shutdown.port"),
			Username:      p.v.GetString("shutdown.username"),
			KeyPath:       p.expandEnv(p.v.GetString("shutdown.key_path")),
			ShutdownDelay: p.v.GetInt("shutdown.shutdown_delay"),
			OS:            p.v.GetString("shutdown.os"),
		}

		if cfg.Shutdown.Host == "" {
			return nil, fmt.Errorf("shutdown.host is required when shutdown is configured")
		}
		if cfg.Shutdown.KeyPath == "" {
			return nil, fmt.Errorf("shutdown.key_path is required when shutdown is configured")
		}
		if cfg.Shutdown.Port == 0 {
			cfg.Shutdown.Port = 22
		}
		if cfg.Shutdown.Username == "" {
			cfg.Shutdown.Username = "root"
		}
		if cfg.Shutdown.OS == "" {
			cfg.Shutdown.OS = "linux"
		}
		validOS := map[string]bool{"linux": true, "windows": true}
		if !validOS[cfg.Shutdown.OS] {
			return nil, fmt.Errorf("shutdown.os must be one of: linux, windows")
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	// Parse optional metrics config.
	if p.v.IsSet("metrics") {
		cfg.Metrics = &models.MetricsConfig{Listen: p.v.GetString("metrics.listen")}
		if cfg.Metrics.Listen == "" {
			return nil, fmt.Errorf("metrics.listen is required when metrics is configured")
		}
	}

	return cfg, nil
}

// excludes accepts either a YAML list or the comma-separated form of the desktop settings.
func (p *Parser) excludes() []string {
	if !p.v.IsSet("excludes") {
		return filter.Normalize(strings.Split(DefaultExcludes, ","))
	}

	switch raw := p.v.Get("excludes").(type) {
	case string:
		return filter.Normalize(strings.Split(raw, ","))
	case nil:
		return []string{}
	default:
		return filter.Normalize(p.v.GetStringSlice("excludes"))
	}
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate checks the constraints of a configuration that is about to drive backups.
func Validate(cfg *models.BackupConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Source == "" {
		return fmt.Errorf("source is required")
	}
	if cfg.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if cfg.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive")
	}
	if cfg.MaxBackups <= 0 {
		return fmt.Errorf("max_backups must be positive")
	}
	if cfg.SmartStreak <= 0 {
		return fmt.Errorf("smart_streak must be positive")
	}

	return nil
}
