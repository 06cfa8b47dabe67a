package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tripflow/internal/domain"
	"tripflow/internal/flights"
)

// FlightLookup resolves a flight id to its details and unit price.
type FlightLookup interface {
	GetFlight(ctx context.Context, id int64) (*flights.Flight, error)
}

// Emitter publishes a domain event after the local transaction committed.
type Emitter interface {
	Emit(ctx context.Context, routingKey string, payload any) error
}

// Store is the booking persistence the HTTP handlers need.
type Store interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
}

type Handler struct {
	repo      Store
	flights   FlightLookup
	publisher Emitter
	logger    *slog.Logger
}

func NewHandler(repo Store, flightLookup FlightLookup, publisher Emitter, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		flights:   flightLookup,
		publisher: publisher,
		logger:    logger,
	}
}

type passengerInput struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	PassportNumber string `json:"passportNumber"`
}

type createBookingRequest struct {
	FlightID   int64            `json:"flightId"`
	Passengers []passengerInput `json:"passengers"`
}

type createBookingResponse struct {
	BookingID  string          `json:"bookingId"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	userEmail := r.Header.Get("X-User-Email")

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FlightID <= 0 {
		h.writeError(w, http.StatusBadRequest, "flightId is required")
		return
	}
	if len(req.Passengers) == 0 {
		h.writeError(w, http.StatusBadRequest, "a non-empty passenger list is required")
		return
	}

	passengers := make([]domain.Passenger, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		passenger := domain.Passenger{
			FullName:       p.FullName,
			Email:          p.Email,
			Phone:          p.Phone,
			PassportNumber: p.PassportNumber,
		}
		if err := passenger.Validate(); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		passengers = append(passengers, passenger)
	}

	flight, err := h.flights.GetFlight(r.Context(), req.FlightID)
	if err != nil {
		if errors.Is(err, flights.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "flight not found")
			return
		}
		h.logger.Error("flight lookup failed", "error", err, "flight_id", req.FlightID)
		h.writeError(w, http.StatusBadGateway, "could not retrieve flight information")
		return
	}

	booking := &domain.Booking{
		UserID:   userID,
		FlightID: flight.ID,
		Flight: domain.FlightSummary{
			FlightNumber: flight.FlightNumber,
			Airline:      flight.AirlineName,
			Departure:    flight.DepartureAirportIATA,
			Arrival:      flight.ArrivalAirportIATA,
		},
		TotalPrice: domain.TotalPrice(flight.Price, len(passengers)),
		Status:     domain.BookingStatusPending,
		CreatedAt:  time.Now().UTC(),
		Passengers: passengers,
	}

	if err := h.repo.Create(r.Context(), booking); err != nil {
		h.logger.Error("failed to create booking", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Publish only after the transaction committed. A failed publish no
	// longer fails the request: the booking durably exists, the saga just
	// lags until something re-drives it. The publish context is detached
	// from the request so a client disconnect after commit cannot cancel it.
	if h.publisher != nil {
		emitCtx := context.WithoutCancel(r.Context())
		event := domain.BookingCreatedEvent{
			BookingID:    booking.ID,
			UserID:       booking.UserID,
			UserEmail:    userEmail,
			FlightDetail: booking.Flight,
			TotalPrice:   booking.TotalPrice,
		}
		if err := h.publisher.Emit(emitCtx, domain.EventBookingCreated, event); err != nil {
			h.logger.Error("failed to publish booking created event",
				"error", err, "booking_id", booking.ID)
		}
	}

	h.logger.Info("booking created", "booking_id", booking.ID, "user_id", userID,
		"flight_id", booking.FlightID, "total_price", booking.TotalPrice)
	h.writeJSON(w, http.StatusCreated, createBookingResponse{
		BookingID:  booking.ID,
		Status:     string(booking.Status),
		TotalPrice: booking.TotalPrice,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing booking id")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	booking, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get booking", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if booking == nil {
		h.writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	h.writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	bookings, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("bookings listed", "user_id", userID, "count", len(bookings))
	h.writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
