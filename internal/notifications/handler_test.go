package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"tripflow/internal/bus"
	"tripflow/internal/domain"
)

type recordingMailer struct {
	to       []string
	subjects []string
	bodies   []string
	err      error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_Handle(t *testing.T) {
	t.Run("booking created sends a mail to the owner", func(t *testing.T) {
		mailer := &recordingMailer{}
		handler := NewHandler(mailer, discardLogger())

		body, _ := json.Marshal(domain.BookingCreatedEvent{
			BookingID: "b-1",
			UserID:    "user-1",
			UserEmail: "user-1@example.com",
			FlightDetail: domain.FlightSummary{
				FlightNumber: "AI-202",
				Departure:    "DEL",
				Arrival:      "BOM",
			},
		})

		err := handler.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventBookingCreated,
			Body:       body,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(mailer.to) != 1 || mailer.to[0] != "user-1@example.com" {
			t.Errorf("unexpected recipients: %v", mailer.to)
		}
		if !strings.Contains(mailer.bodies[0], "AI-202 (DEL to BOM)") {
			t.Errorf("unexpected mail body: %s", mailer.bodies[0])
		}
	})

	t.Run("duplicate deliveries send duplicate mails", func(t *testing.T) {
		mailer := &recordingMailer{}
		handler := NewHandler(mailer, discardLogger())

		body, _ := json.Marshal(domain.BookingCreatedEvent{
			BookingID: "b-1",
			UserEmail: "user-1@example.com",
		})

		for i := 0; i < 2; i++ {
			if err := handler.Handle(context.Background(), bus.Delivery{
				RoutingKey:  domain.EventBookingCreated,
				Body:        body,
				Redelivered: i == 1,
			}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		// No idempotency key on the event: two deliveries, two mails.
		if len(mailer.to) != 2 {
			t.Errorf("expected 2 mails, got %d", len(mailer.to))
		}
	})

	t.Run("trip imported is acknowledged without mail", func(t *testing.T) {
		mailer := &recordingMailer{}
		handler := NewHandler(mailer, discardLogger())

		body, _ := json.Marshal(domain.TripImportedEvent{
			TripID: "t-1",
			UserID: "user-1",
			Segments: []domain.TripSegment{
				{FlightNumber: "6E-101", DepartureAirportIATA: "DEL", ArrivalAirportIATA: "GOI"},
			},
		})

		err := handler.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventTripImported,
			Body:       body,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(mailer.to) != 0 {
			t.Errorf("expected no mails for trip imports, got %v", mailer.to)
		}
	})

	t.Run("unknown routing key is acknowledged", func(t *testing.T) {
		handler := NewHandler(&recordingMailer{}, discardLogger())

		err := handler.Handle(context.Background(), bus.Delivery{
			RoutingKey: "flight.delayed",
			Body:       []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("expected unknown keys to be acknowledged, got %v", err)
		}
	})

	t.Run("malformed payload discards", func(t *testing.T) {
		handler := NewHandler(&recordingMailer{}, discardLogger())

		err := handler.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventBookingCreated,
			Body:       []byte(`{broken`),
		})
		if !bus.IsDiscard(err) {
			t.Fatalf("expected discard, got %v", err)
		}
	})

	t.Run("mailer failure requeues", func(t *testing.T) {
		mailer := &recordingMailer{err: errors.New("provider timeout")}
		handler := NewHandler(mailer, discardLogger())

		body, _ := json.Marshal(domain.BookingCreatedEvent{BookingID: "b-1", UserEmail: "u@e.c"})

		err := handler.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventBookingCreated,
			Body:       body,
		})
		if err == nil {
			t.Fatal("expected an error")
		}
		if bus.IsDiscard(err) {
			t.Fatal("transient mailer failures must requeue, not discard")
		}
	})
}
