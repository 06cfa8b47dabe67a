package booking

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tripflow/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create persists the booking and all of its passengers in one transaction.
// Any failure rolls the whole booking back; no partial passenger rows can
// survive.
func (r *Repository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	booking.ID = uuid.New().String()

	var displayRef int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bookings (id, user_id, flight_id, flight_number, airline_name,
			departure_iata, arrival_iata, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING display_ref
	`, booking.ID, booking.UserID, booking.FlightID, booking.Flight.FlightNumber,
		booking.Flight.Airline, booking.Flight.Departure, booking.Flight.Arrival,
		booking.TotalPrice, booking.Status, booking.CreatedAt).Scan(&displayRef)
	if err != nil {
		return err
	}

	for i := range booking.Passengers {
		p := &booking.Passengers[i]
		if err := p.Validate(); err != nil {
			return err
		}
		p.ID = uuid.New().String()
		p.BookingID = booking.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO passengers (id, booking_id, full_name, email, phone, passport_number)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.BookingID, p.FullName, p.Email, nullable(p.Phone), nullable(p.PassportNumber))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	booking.DisplayRef = formatDisplayRef(displayRef)
	return nil
}

// ConfirmIfPending transitions the booking to CONFIRMED only when it is
// still PENDING. It reports false without error when nothing matched: an
// unknown id, an already confirmed booking, or a cancelled one. That makes
// the transition idempotent under message redelivery.
func (r *Repository) ConfirmIfPending(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.BookingStatusConfirmed, id, domain.BookingStatusPending)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	booking := &domain.Booking{}

	var displayRef int64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, flight_id, flight_number, airline_name, departure_iata,
			arrival_iata, total_price, status, created_at, display_ref
		FROM bookings
		WHERE id = $1
	`, id).Scan(&booking.ID, &booking.UserID, &booking.FlightID,
		&booking.Flight.FlightNumber, &booking.Flight.Airline,
		&booking.Flight.Departure, &booking.Flight.Arrival,
		&booking.TotalPrice, &booking.Status, &booking.CreatedAt, &displayRef)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	booking.DisplayRef = formatDisplayRef(displayRef)

	passengers, err := r.passengersFor(ctx, []string{booking.ID})
	if err != nil {
		return nil, err
	}
	booking.Passengers = passengers[booking.ID]

	return booking, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, flight_id, flight_number, airline_name, departure_iata,
			arrival_iata, total_price, status, created_at, display_ref
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	bookingMap := make(map[string]*domain.Booking)
	var bookingIDs []string

	for rows.Next() {
		var booking domain.Booking
		var displayRef int64
		if err := rows.Scan(&booking.ID, &booking.UserID, &booking.FlightID,
			&booking.Flight.FlightNumber, &booking.Flight.Airline,
			&booking.Flight.Departure, &booking.Flight.Arrival,
			&booking.TotalPrice, &booking.Status, &booking.CreatedAt, &displayRef); err != nil {
			return nil, err
		}
		booking.DisplayRef = formatDisplayRef(displayRef)
		booking.Passengers = []domain.Passenger{}
		bookingMap[booking.ID] = &booking
		bookingIDs = append(bookingIDs, booking.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(bookingIDs) == 0 {
		return []domain.Booking{}, nil
	}

	passengers, err := r.passengersFor(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}
	for id, list := range passengers {
		bookingMap[id].Passengers = list
	}

	bookings := make([]domain.Booking, 0, len(bookingIDs))
	for _, id := range bookingIDs {
		bookings = append(bookings, *bookingMap[id])
	}

	return bookings, nil
}

// CountForUser reports how many bookings a user has; used by tests to assert
// atomicity of failed creations.
func (r *Repository) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *Repository) passengersFor(ctx context.Context, bookingIDs []string) (map[string][]domain.Passenger, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, booking_id, full_name, email, COALESCE(phone, ''), COALESCE(passport_number, '')
		FROM passengers
		WHERE booking_id = ANY($1)
	`, pq.Array(bookingIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	passengers := make(map[string][]domain.Passenger)
	for rows.Next() {
		var p domain.Passenger
		if err := rows.Scan(&p.ID, &p.BookingID, &p.FullName, &p.Email, &p.Phone, &p.PassportNumber); err != nil {
			return nil, err
		}
		passengers[p.BookingID] = append(passengers[p.BookingID], p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return passengers, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatDisplayRef(ref int64) string {
	return fmt.Sprintf("BK%06d", ref)
}
