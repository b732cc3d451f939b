// Package wake powers on the storage host that exports the snapshot destination.
package wake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// Service defines the interface for waking the storage host.
type Service interface {
	Wake(ctx context.Context, cfg models.WakeConfig) (*models.WakeResult, error)
}

// Sender sends magic packets.
type Sender interface {
	Send(broadcastIP string, mac net.HardwareAddr) error
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UDPSender sends magic packets with mdlayher/wol to port 9.
type UDPSender struct{}

// Send implements Sender.
func (UDPSender) Send(broadcastIP string, mac net.HardwareAddr) error {
	ip := net.ParseIP(broadcastIP)
	if ip == nil {
		return fmt.Errorf("invalid broadcast IP: %s", broadcastIP)
	}

	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(net.JoinHostPort(ip.String(), "9"), mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}
	return nil
}

// Impl implements the wake Service interface.
type Impl struct {
	sender     Sender
	httpClient HTTPClient
	logger     zerolog.Logger
}

// New creates a new wake service.
func New(logger zerolog.Logger) *Impl {
	return NewWithClients(logger, UDPSender{}, &http.Client{Timeout: 5 * time.Second})
}

// NewWithClients creates a new wake service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, sender Sender, httpClient HTTPClient) *Impl {
	return &Impl{
		sender:     sender,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "wake").Logger(),
	}
}

// Wake sends a magic packet and, when PollURL is set, waits until the storage host answers
// HTTP and then for StabilizeWait so its mounts can settle.
func (s *Impl) Wake(ctx context.Context, cfg models.WakeConfig) (*models.WakeResult, error) {
	result := &models.WakeResult{}
	start := time.Now()
	defer func() { result.WaitDuration = time.Since(start) }()

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
		return result, nil
	}

	s.logger.Info().
		Str("mac", cfg.MACAddress).
		Str("broadcast", cfg.BroadcastIP).
		Msg("waking storage host")

	if err := s.sender.Send(cfg.BroadcastIP, mac); err != nil {
		result.Error = err
		return result, nil
	}
	result.PacketSent = true

	if cfg.PollURL == "" {
		result.TargetReady = true
		return result, nil
	}

	if err := s.pollUntilReady(ctx, cfg); err != nil {
		result.Error = err
		return result, nil
	}

	if cfg.StabilizeWait > 0 {
		timer := time.NewTimer(cfg.StabilizeWait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			result.Error = ctx.Err()
			return result, nil
		case <-timer.C:
		}
	}

	result.TargetReady = true
	s.logger.Info().Dur("waited", time.Since(start)).Msg("storage host is ready")
	return result, nil
}

// pollUntilReady returns once any HTTP response arrives from PollURL.
func (s *Impl) pollUntilReady(ctx context.Context, cfg models.WakeConfig) error {
	pollCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.reachable(pollCtx, cfg.PollURL) {
			return nil
		}

		select {
		case <-pollCtx.Done():
			if errors.Is(pollCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("timeout waiting for storage host at %s", cfg.PollURL)
			}
			return pollCtx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Impl) reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("storage host not ready yet")
		return false
	}
	_ = resp.Body.Close()
	return true
}
