// Package shutdown powers down the storage host over SSH once backups pause.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Service defines the interface for remote power operations.
type Service interface {
	Shutdown(ctx context.Context, cfg models.ShutdownConfig) (*models.ShutdownResult, error)
	CheckAccess(ctx context.Context, cfg models.ShutdownConfig) (*models.ShutdownResult, error)
}

// Runner executes one command on a remote host.
type Runner interface {
	Run(network, addr string, config *ssh.ClientConfig, cmd string) ([]byte, error)
}

// ConnectError reports that a command never reached the host.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string { return e.Err.Error() }

func (e *ConnectError) Unwrap() error { return e.Err }

// SSHRunner dials with golang.org/x/crypto/ssh and runs the command in a new session.
type SSHRunner struct{}

// Run implements Runner.
func (SSHRunner) Run(network, addr string, config *ssh.ClientConfig, cmd string) ([]byte, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, &ConnectError{Err: fmt.Errorf("failed to connect: %w", err)}
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, &ConnectError{Err: fmt.Errorf("failed to create session: %w", err)}
	}
	defer func() { _ = session.Close() }()

	return session.CombinedOutput(cmd)
}

// Impl implements the shutdown Service interface.
type Impl struct {
	runner Runner
	logger zerolog.Logger
}

// New creates a new shutdown service.
func New(logger zerolog.Logger) *Impl {
	return NewWithRunner(logger, SSHRunner{})
}

// NewWithRunner creates a new shutdown service with a custom runner (for testing).
func NewWithRunner(logger zerolog.Logger, runner Runner) *Impl {
	return &Impl{
		runner: runner,
		logger: logger.With().Str("component", "shutdown").Logger(),
	}
}

// Command returns the shutdown command for the host's OS. Delays are in minutes.
func Command(cfg models.ShutdownConfig) string {
	if cfg.OS == "windows" {
		seconds := cfg.ShutdownDelay * 60
		if seconds == 0 {
			seconds = 60
		}
		return fmt.Sprintf("shutdown /s /t %d", seconds)
	}
	if cfg.ShutdownDelay == 0 {
		return "sudo shutdown -h now"
	}
	return fmt.Sprintf("sudo shutdown -h +%d", cfg.ShutdownDelay)
}

// Shutdown schedules a power-off of the storage host. An error after the command was sent
// is only logged: hosts often drop the connection while shutting down.
func (s *Impl) Shutdown(ctx context.Context, cfg models.ShutdownConfig) (*models.ShutdownResult, error) {
	cmd := Command(cfg)

	s.logger.Info().
		Str("host", cfg.Host).
		Int("delay_minutes", cfg.ShutdownDelay).
		Msg("shutting down storage host")

	result := s.run(ctx, cfg, cmd)
	if result.CommandRun && result.Error != nil && ctx.Err() == nil {
		s.logger.Warn().Err(result.Error).Str("output", result.Output).Msg("shutdown command returned error (may be expected)")
		result.Error = nil
	}
	return result, nil
}

// CheckAccess checks that the storage host accepts the configured key.
func (s *Impl) CheckAccess(ctx context.Context, cfg models.ShutdownConfig) (*models.ShutdownResult, error) {
	result := s.run(ctx, cfg, "echo OK")
	if result.CommandRun && result.Error != nil {
		result.Error = fmt.Errorf("access check failed: %w", result.Error)
	}
	return result, nil
}

type runOutcome struct {
	output []byte
	err    error
}

func (s *Impl) run(ctx context.Context, cfg models.ShutdownConfig, cmd string) *models.ShutdownResult {
	result := &models.ShutdownResult{}

	clientCfg, err := clientConfig(cfg)
	if err != nil {
		result.Error = err
		return result
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	done := make(chan runOutcome, 1)
	go func() {
		out, err := s.runner.Run("tcp", addr, clientCfg, cmd)
		done <- runOutcome{output: out, err: err}
	}()

	select {
	case <-ctx.Done():
		result.Error = ctx.Err()
	case o := <-done:
		var connErr *ConnectError
		result.CommandRun = !errors.As(o.err, &connErr)
		result.Output = string(o.output)
		result.Error = o.err
	}
	return result
}

func clientConfig(cfg models.ShutdownConfig) (*ssh.ClientConfig, error) {
	key := cfg.PrivateKey
	if len(key) == 0 {
		if cfg.KeyPath == "" {
			return nil, fmt.Errorf("no private key provided")
		}
		var err error
		key, err = os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.KeyPath, err)
		}
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // homelab environment
		Timeout:         30 * time.Second,
	}, nil
}
