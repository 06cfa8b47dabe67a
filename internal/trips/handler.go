package trips

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tripflow/internal/domain"
)

// Emitter publishes a domain event after the local transaction committed.
type Emitter interface {
	Emit(ctx context.Context, routingKey string, payload any) error
}

// Store is the trip persistence the HTTP handlers need.
type Store interface {
	FindPNR(ctx context.Context, pnr, airline string) (*PNRRecord, error)
	Create(ctx context.Context, trip *domain.Trip) error
	ListByUser(ctx context.Context, userID string) ([]domain.Trip, error)
}

type Handler struct {
	repo      Store
	publisher Emitter
	logger    *slog.Logger
}

func NewHandler(repo Store, publisher Emitter, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

type importTripRequest struct {
	PNR     string `json:"pnr"`
	Airline string `json:"airline"`
}

type importTripResponse struct {
	TripID string `json:"tripId"`
}

func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req importTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PNR == "" || req.Airline == "" {
		h.writeError(w, http.StatusBadRequest, "pnr and airline are required")
		return
	}

	record, err := h.repo.FindPNR(r.Context(), strings.ToUpper(req.PNR), req.Airline)
	if err != nil {
		h.logger.Error("pnr lookup failed", "error", err, "pnr", req.PNR)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if record == nil {
		h.writeError(w, http.StatusNotFound, "could not find a trip with the provided pnr and airline")
		return
	}

	trip := &domain.Trip{
		UserID:      userID,
		PNR:         strings.ToUpper(req.PNR),
		AirlineName: record.AirlineName,
		CreatedAt:   time.Now().UTC(),
		Segments:    record.Segments,
	}

	if err := h.repo.Create(r.Context(), trip); err != nil {
		h.logger.Error("failed to import trip", "error", err, "pnr", trip.PNR)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.publisher != nil {
		// Detached from the request so a client disconnect after commit
		// cannot cancel the publish.
		emitCtx := context.WithoutCancel(r.Context())
		event := domain.TripImportedEvent{
			TripID:   trip.ID,
			UserID:   trip.UserID,
			Segments: trip.Segments,
		}
		if err := h.publisher.Emit(emitCtx, domain.EventTripImported, event); err != nil {
			h.logger.Error("failed to publish trip imported event", "error", err, "trip_id", trip.ID)
		}
	}

	h.logger.Info("trip imported", "trip_id", trip.ID, "user_id", userID, "pnr", trip.PNR)
	h.writeJSON(w, http.StatusCreated, importTripResponse{TripID: trip.ID})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	trips, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list trips", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, trips)
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
