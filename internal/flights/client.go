package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound reports that the flight id does not exist, as opposed to the
// flight service being unreachable.
var ErrNotFound = errors.New("flight not found")

type Flight struct {
	ID                   int64           `json:"id"`
	FlightNumber         string          `json:"flight_number"`
	AirlineName          string          `json:"airline_name"`
	DepartureAirportIATA string          `json:"departure_airport_iata"`
	ArrivalAirportIATA   string          `json:"arrival_airport_iata"`
	DepartureTime        time.Time       `json:"departure_time"`
	ArrivalTime          time.Time       `json:"arrival_time"`
	Price                decimal.Decimal `json:"price"`
}

// Client looks flights up in the flight service.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *Client) GetFlight(ctx context.Context, id int64) (*Flight, error) {
	url := fmt.Sprintf("%s/api/flights/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create flight request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flight service unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("flight %d: %w", id, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flight service returned status %d", resp.StatusCode)
	}

	var flight Flight
	if err := json.NewDecoder(resp.Body).Decode(&flight); err != nil {
		return nil, fmt.Errorf("decode flight response: %w", err)
	}

	return &flight, nil
}
