package telegram

import (
	"context"
	"os"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/models"
	"github.com/rs/zerolog"
)

// Notifier forwards engine notifications to Telegram. Log lines and status changes are
// ignored. It satisfies events.Observer.
type Notifier struct {
	svc     Service
	cfg     models.TelegramConfig
	host    string
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewNotifier creates a notifier sending to the chat in cfg.
func NewNotifier(svc Service, cfg models.TelegramConfig, logger zerolog.Logger) *Notifier {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Notifier{
		svc:     svc,
		cfg:     cfg,
		host:    host,
		timeout: 30 * time.Second,
		now:     time.Now,
		logger:  logger,
	}
}

// Log is a no-op.
func (n *Notifier) Log(string) {}

// Status is a no-op.
func (n *Notifier) Status(bool) {}

// Notify sends the notification and logs delivery failures.
func (n *Notifier) Notify(title, body string) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	result, err := n.svc.SendNotification(ctx, n.cfg, models.TelegramMessage{
		Title: title,
		Body:  body,
		Host:  n.host,
		Time:  n.now(),
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		n.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
	}
}
