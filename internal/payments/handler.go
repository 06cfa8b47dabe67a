package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"tripflow/internal/bus"
	"tripflow/internal/domain"
)

// Emitter publishes the follow-up event once the payment step completed.
type Emitter interface {
	Emit(ctx context.Context, routingKey string, payload any) error
}

// Handler is the payment simulator: a stateless transform from
// booking.created to payment.succeeded. There is no payment network here;
// authorization always approves. Redelivery simply re-emits, which is safe
// because the downstream confirmation is conditional.
type Handler struct {
	emitter Emitter
	logger  *slog.Logger
}

func NewHandler(emitter Emitter, logger *slog.Logger) *Handler {
	return &Handler{
		emitter: emitter,
		logger:  logger,
	}
}

func (h *Handler) Handle(ctx context.Context, d bus.Delivery) error {
	var event domain.BookingCreatedEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return bus.Discard(fmt.Errorf("unmarshal booking created event: %w", err))
	}
	if event.BookingID == "" {
		return bus.Discard(errors.New("booking created event missing booking id"))
	}

	h.logger.Info("simulating payment authorization",
		"booking_id", event.BookingID, "total_price", event.TotalPrice,
		"redelivered", d.Redelivered)

	succeeded := domain.PaymentSucceededEvent{BookingID: event.BookingID}
	if err := h.emitter.Emit(ctx, domain.EventPaymentSucceeded, succeeded); err != nil {
		// The transform produced nothing durable yet; requeue and retry.
		return fmt.Errorf("emit payment succeeded for %s: %w", event.BookingID, err)
	}

	h.logger.Info("payment succeeded", "booking_id", event.BookingID)
	return nil
}
