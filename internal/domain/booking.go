package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// FlightSummary is the snapshot of flight details captured at booking time,
// so bookings stay readable even if the flight service forgets the flight.
type FlightSummary struct {
	FlightNumber string `json:"flightNumber"`
	Airline      string `json:"airline"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
}

type Booking struct {
	ID         string          `json:"bookingId"`
	UserID     string          `json:"userId"`
	FlightID   int64           `json:"flightId"`
	Flight     FlightSummary   `json:"flight"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     BookingStatus   `json:"status"`
	CreatedAt  time.Time       `json:"bookingDate"`
	DisplayRef string          `json:"pnr"`
	Passengers []Passenger     `json:"passengers,omitempty"`
}

type Passenger struct {
	ID             string `json:"-"`
	BookingID      string `json:"-"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	PassportNumber string `json:"passportNumber,omitempty"`
}

var (
	ErrPassengerNameRequired  = errors.New("passenger full name is required")
	ErrPassengerEmailRequired = errors.New("passenger email is required")
)

// Validate checks the fields every passenger must carry before it may be
// persisted.
func (p Passenger) Validate() error {
	if p.FullName == "" {
		return ErrPassengerNameRequired
	}
	if p.Email == "" {
		return ErrPassengerEmailRequired
	}
	return nil
}

// TotalPrice multiplies the per-seat price by the passenger count using
// exact decimal arithmetic.
func TotalPrice(unitPrice decimal.Decimal, passengerCount int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(passengerCount)))
}
