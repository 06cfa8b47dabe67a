package booking

import (
	"context"
	"errors"
	"testing"

	"tripflow/internal/bus"
	"tripflow/internal/domain"
)

const (
	testBookingID  = "3f1c8f6a-98a4-4d71-af0a-2f4f9de24f11"
	missingBooking = "7e0fdc47-17b4-4bb7-a1f9-38361c2bb222"
)

type fakeConfirmStore struct {
	confirmed map[string]bool
	err       error
	calls     []string
}

func (s *fakeConfirmStore) ConfirmIfPending(ctx context.Context, id string) (bool, error) {
	s.calls = append(s.calls, id)
	if s.err != nil {
		return false, s.err
	}
	if s.confirmed[id] {
		return false, nil
	}
	if s.confirmed == nil {
		s.confirmed = make(map[string]bool)
	}
	s.confirmed[id] = true
	return true, nil
}

func TestConfirmer_Handle(t *testing.T) {
	t.Run("confirms a pending booking", func(t *testing.T) {
		store := &fakeConfirmStore{}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{"bookingId":"` + testBookingID + `"}`),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.calls) != 1 || store.calls[0] != testBookingID {
			t.Errorf("unexpected store calls: %v", store.calls)
		}
	})

	t.Run("redelivery of a confirmed booking is acknowledged", func(t *testing.T) {
		store := &fakeConfirmStore{confirmed: map[string]bool{testBookingID: true}}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey:  domain.EventPaymentSucceeded,
			Body:        []byte(`{"bookingId":"` + testBookingID + `"}`),
			Redelivered: true,
		})
		if err != nil {
			t.Fatalf("expected redelivery to be acknowledged, got %v", err)
		}
	})

	t.Run("unknown booking is acknowledged", func(t *testing.T) {
		store := &fakeConfirmStore{confirmed: map[string]bool{missingBooking: true}}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{"bookingId":"` + missingBooking + `"}`),
		})
		if err != nil {
			t.Fatalf("expected unknown booking to be acknowledged, got %v", err)
		}
	})

	t.Run("storage failure requeues", func(t *testing.T) {
		store := &fakeConfirmStore{err: errors.New("connection reset")}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{"bookingId":"` + testBookingID + `"}`),
		})
		if err == nil {
			t.Fatal("expected an error for transient storage failure")
		}
		if bus.IsDiscard(err) {
			t.Fatal("transient failures must requeue, not discard")
		}
	})

	t.Run("malformed payload discards", func(t *testing.T) {
		store := &fakeConfirmStore{}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{broken`),
		})
		if !bus.IsDiscard(err) {
			t.Fatalf("expected discard for malformed payload, got %v", err)
		}
		if len(store.calls) != 0 {
			t.Errorf("store must not be touched for malformed payloads, calls: %v", store.calls)
		}
	})

	t.Run("missing booking id discards", func(t *testing.T) {
		store := &fakeConfirmStore{}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{}`),
		})
		if !bus.IsDiscard(err) {
			t.Fatalf("expected discard for missing booking id, got %v", err)
		}
	})

	t.Run("non-uuid booking id discards without touching the store", func(t *testing.T) {
		// The id column is a UUID; letting "xyz" through would fail with the
		// same cast error on every redelivery and wedge the queue.
		store := &fakeConfirmStore{}
		confirmer := NewConfirmer(store, discardLogger())

		err := confirmer.Handle(context.Background(), bus.Delivery{
			RoutingKey: domain.EventPaymentSucceeded,
			Body:       []byte(`{"bookingId":"xyz"}`),
		})
		if !bus.IsDiscard(err) {
			t.Fatalf("expected discard for non-uuid booking id, got %v", err)
		}
		if len(store.calls) != 0 {
			t.Errorf("store must not be touched for non-uuid ids, calls: %v", store.calls)
		}
	})
}
