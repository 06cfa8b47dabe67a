package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tripflow/internal/bus"
	"tripflow/internal/domain"
)

// Handler reacts to lifecycle events with side effects only; it owns no
// state. Duplicate deliveries cause duplicate notifications: the events
// carry no idempotency key, and that limitation is accepted.
type Handler struct {
	mailer Mailer
	logger *slog.Logger
}

func NewHandler(mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		mailer: mailer,
		logger: logger,
	}
}

func (h *Handler) Handle(ctx context.Context, d bus.Delivery) error {
	switch d.RoutingKey {
	case domain.EventBookingCreated:
		return h.handleBookingCreated(ctx, d.Body)
	case domain.EventTripImported:
		return h.handleTripImported(ctx, d.Body)
	default:
		h.logger.Warn("no handler for routing key, acknowledging", "routing_key", d.RoutingKey)
		return nil
	}
}

func (h *Handler) handleBookingCreated(ctx context.Context, body []byte) error {
	var event domain.BookingCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return bus.Discard(fmt.Errorf("unmarshal booking created event: %w", err))
	}

	subject := "Booking received: " + event.BookingID
	text := fmt.Sprintf("Your booking on flight %s (%s to %s) for %s is being processed.",
		event.FlightDetail.FlightNumber, event.FlightDetail.Departure,
		event.FlightDetail.Arrival, event.TotalPrice.StringFixed(2))

	if err := h.mailer.Send(ctx, event.UserEmail, subject, text); err != nil {
		return fmt.Errorf("send booking notification for %s: %w", event.BookingID, err)
	}

	h.logger.Info("booking notification sent", "booking_id", event.BookingID, "user_id", event.UserID)
	return nil
}

func (h *Handler) handleTripImported(ctx context.Context, body []byte) error {
	var event domain.TripImportedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return bus.Discard(fmt.Errorf("unmarshal trip imported event: %w", err))
	}

	// The event carries no email address, so the notification can only be
	// logged against the user id.
	h.logger.Info("trip imported notification",
		"trip_id", event.TripID, "user_id", event.UserID, "segments", len(event.Segments))
	return nil
}
