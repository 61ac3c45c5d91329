// Package notify delivers processing results to the user over Telegram
// and email. Delivery is best effort: a failing provider never fails the
// pipeline.
package notify

import (
	"context"
	"log/slog"
)

// Provider sends one message over one channel.
type Provider interface {
	Send(ctx context.Context, message string) error
	Name() string
}

// Manager fans a message out to every configured provider.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

func NewManager(logger *slog.Logger, providers ...Provider) *Manager {
	return &Manager{providers: providers, logger: logger}
}

// Enabled reports whether any provider is configured.
func (m *Manager) Enabled() bool {
	return len(m.providers) > 0
}

// Send delivers message to all providers, logging failures instead of
// returning them.
func (m *Manager) Send(ctx context.Context, message string) {
	for _, provider := range m.providers {
		if err := provider.Send(ctx, message); err != nil {
			m.logger.Warn("notification delivery failed",
				slog.String("provider", provider.Name()),
				slog.Any("error", err))
			continue
		}
		m.logger.Debug("notification delivered", slog.String("provider", provider.Name()))
	}
}
