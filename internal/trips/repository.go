package trips

import (
	"context"
	"database/sql"
	"encoding/json"
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

// PNRRecord is one row of the mock PNR lookup table standing in for the
// airlines' reservation systems.
type PNRRecord struct {
	AirlineName string
	Segments    []domain.TripSegment
}

// FindPNR looks the PNR up against the given airline name. A nil record
// without error means the PNR is unknown.
func (r *Repository) FindPNR(ctx context.Context, pnr, airline string) (*PNRRecord, error) {
	var record PNRRecord
	var flightData []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT airline_name, flight_data
		FROM mock_pnrs
		WHERE pnr = UPPER($1) AND airline_name ILIKE '%' || $2 || '%'
	`, pnr, airline).Scan(&record.AirlineName, &flightData)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var payload struct {
		Segments []domain.TripSegment `json:"segments"`
	}
	if err := json.Unmarshal(flightData, &payload); err != nil {
		return nil, fmt.Errorf("decode flight data for pnr %s: %w", pnr, err)
	}
	record.Segments = payload.Segments

	return &record, nil
}

// Create persists the trip and all of its segments in one transaction.
func (r *Repository) Create(ctx context.Context, trip *domain.Trip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	trip.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trips (id, user_id, pnr, airline_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, trip.ID, trip.UserID, trip.PNR, trip.AirlineName, trip.CreatedAt)
	if err != nil {
		return err
	}

	for _, segment := range trip.Segments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trip_flight_segments (id, trip_id, flight_number,
				departure_airport_iata, arrival_airport_iata, departure_time,
				arrival_time, web_checkin_link)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), trip.ID, segment.FlightNumber,
			segment.DepartureAirportIATA, segment.ArrivalAirportIATA,
			segment.DepartureTime, segment.ArrivalTime, segment.WebCheckinLink)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Trip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, pnr, airline_name, created_at
		FROM trips
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tripMap := make(map[string]*domain.Trip)
	var tripIDs []string

	for rows.Next() {
		var trip domain.Trip
		if err := rows.Scan(&trip.ID, &trip.UserID, &trip.PNR, &trip.AirlineName, &trip.CreatedAt); err != nil {
			return nil, err
		}
		trip.Segments = []domain.TripSegment{}
		tripMap[trip.ID] = &trip
		tripIDs = append(tripIDs, trip.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(tripIDs) == 0 {
		return []domain.Trip{}, nil
	}

	segmentRows, err := r.db.QueryContext(ctx, `
		SELECT trip_id, flight_number, departure_airport_iata, arrival_airport_iata,
			departure_time, arrival_time, COALESCE(web_checkin_link, '')
		FROM trip_flight_segments
		WHERE trip_id = ANY($1)
	`, pq.Array(tripIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = segmentRows.Close() }()

	for segmentRows.Next() {
		var tripID string
		var segment domain.TripSegment
		if err := segmentRows.Scan(&tripID, &segment.FlightNumber,
			&segment.DepartureAirportIATA, &segment.ArrivalAirportIATA,
			&segment.DepartureTime, &segment.ArrivalTime, &segment.WebCheckinLink); err != nil {
			return nil, err
		}
		trip := tripMap[tripID]
		trip.Segments = append(trip.Segments, segment)
	}

	if err := segmentRows.Err(); err != nil {
		return nil, err
	}

	trips := make([]domain.Trip, 0, len(tripIDs))
	for _, id := range tripIDs {
		trips = append(trips, *tripMap[id])
	}

	return trips, nil
}
