//go:build e2e

package e2e

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/fgeck/gosnap-homelab/internal/services/wake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestWake_WithPollURL_E2E(t *testing.T) {
	// Create a test HTTP server to act as the storage host
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := wake.NewWithClients(testLogger(), &noopSender{}, server.Client())

	cfg := models.WakeConfig{
		MACAddress:    "AA:BB:CC:DD:EE:FF",
		BroadcastIP:   "255.255.255.255",
		PollURL:       server.URL,
		Timeout:       5 * time.Second,
		PollInterval:  100 * time.Millisecond,
		StabilizeWait: 100 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.True(t, result.TargetReady)
	assert.Nil(t, result.Error)
	assert.GreaterOrEqual(t, result.WaitDuration, 100*time.Millisecond)
}

func TestWake_HostComesUpLater_E2E(t *testing.T) {
	// Reserve a port, then start listening on it only after a delay.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	var requests atomic.Int32
	srv := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusOK)
		}),
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = srv.ListenAndServe()
	}()
	defer func() { _ = srv.Close() }()

	svc := wake.NewWithClients(testLogger(), &noopSender{}, &http.Client{Timeout: time.Second})

	cfg := models.WakeConfig{
		MACAddress:    "AA:BB:CC:DD:EE:FF",
		BroadcastIP:   "255.255.255.255",
		PollURL:       "http://" + addr,
		Timeout:       5 * time.Second,
		PollInterval:  50 * time.Millisecond,
		StabilizeWait: 50 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.TargetReady)
	assert.Nil(t, result.Error)
	assert.Equal(t, int32(1), requests.Load())
}

func TestWake_HostNeverReady_E2E(t *testing.T) {
	// A closed server refuses every connection.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	svc := wake.NewWithClients(testLogger(), &noopSender{}, &http.Client{Timeout: time.Second})

	cfg := models.WakeConfig{
		MACAddress:   "AA:BB:CC:DD:EE:FF",
		BroadcastIP:  "255.255.255.255",
		PollURL:      url,
		Timeout:      200 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	assert.False(t, result.TargetReady)
	require.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "timeout")
}

// Mock implementations for E2E tests
type noopSender struct{}

func (s *noopSender) Send(string, net.HardwareAddr) error {
	return nil
}

// Real Wake-on-LAN test - only runs if explicitly configured
func TestRealWake_E2E(t *testing.T) {
	mac := os.Getenv("TEST_WAKE_MAC")
	if mac == "" {
		t.Skip("TEST_WAKE_MAC not set")
	}

	pollURL := os.Getenv("TEST_WAKE_POLL_URL")

	svc := wake.New(testLogger())

	cfg := models.WakeConfig{
		MACAddress:    mac,
		BroadcastIP:   "255.255.255.255",
		PollURL:       pollURL,
		Timeout:       5 * time.Minute,
		PollInterval:  10 * time.Second,
		StabilizeWait: 10 * time.Second,
	}

	result, err := svc.Wake(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, result.PacketSent)
	if pollURL != "" {
		assert.True(t, result.TargetReady)
	}
}
