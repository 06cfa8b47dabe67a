package domain

import "github.com/shopspring/decimal"

// Routing keys on the shared topic exchange. Events are facts about state
// changes that already committed; they are never requests.
const (
	EventBookingCreated   = "booking.created"
	EventPaymentSucceeded = "payment.succeeded"
	EventTripImported     = "trip.imported"
)

type BookingCreatedEvent struct {
	BookingID    string          `json:"bookingId"`
	UserID       string          `json:"userId"`
	UserEmail    string          `json:"userEmail"`
	FlightDetail FlightSummary   `json:"flightDetails"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

type PaymentSucceededEvent struct {
	BookingID string `json:"bookingId"`
}

type TripImportedEvent struct {
	TripID   string        `json:"tripId"`
	UserID   string        `json:"userId"`
	Segments []TripSegment `json:"segments"`
}
