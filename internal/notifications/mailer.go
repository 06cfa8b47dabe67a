package notifications

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Mailer delivers a notification to a recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SimulatedMailer stands in for a real mail provider: it sleeps for a
// provider-ish latency and logs the send.
type SimulatedMailer struct {
	logger *slog.Logger
}

func NewSimulatedMailer(logger *slog.Logger) *SimulatedMailer {
	return &SimulatedMailer{logger: logger}
}

func (m *SimulatedMailer) Send(ctx context.Context, to, subject, body string) error {
	delay := time.Duration(50+rand.Intn(151)) * time.Millisecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
