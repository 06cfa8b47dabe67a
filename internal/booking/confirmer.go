package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tripflow/internal/bus"
	"tripflow/internal/domain"
)

// ConfirmStore is the single conditional transition the confirmer needs.
type ConfirmStore interface {
	ConfirmIfPending(ctx context.Context, id string) (bool, error)
}

// Confirmer consumes payment.succeeded and flips the booking from PENDING to
// CONFIRMED. The conditional update makes redelivery harmless: a second
// delivery matches zero rows and is acknowledged.
type Confirmer struct {
	store  ConfirmStore
	logger *slog.Logger
}

func NewConfirmer(store ConfirmStore, logger *slog.Logger) *Confirmer {
	return &Confirmer{
		store:  store,
		logger: logger,
	}
}

func (c *Confirmer) Handle(ctx context.Context, d bus.Delivery) error {
	var event domain.PaymentSucceededEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return bus.Discard(fmt.Errorf("unmarshal payment succeeded event: %w", err))
	}
	if event.BookingID == "" {
		return bus.Discard(errors.New("payment succeeded event missing booking id"))
	}
	// A malformed id would error on the UUID column on every redelivery, so
	// it is poison, not a transient failure.
	if _, err := uuid.Parse(event.BookingID); err != nil {
		return bus.Discard(fmt.Errorf("payment succeeded event booking id %q: %w", event.BookingID, err))
	}

	confirmed, err := c.store.ConfirmIfPending(ctx, event.BookingID)
	if err != nil {
		// Transient storage failure: requeue so the broker retries.
		return fmt.Errorf("confirm booking %s: %w", event.BookingID, err)
	}

	if !confirmed {
		c.logger.Warn("booking not pending, acknowledging",
			"booking_id", event.BookingID, "redelivered", d.Redelivered)
		return nil
	}

	c.logger.Info("booking confirmed", "booking_id", event.BookingID)
	return nil
}
