package domain

import "time"

type Trip struct {
	ID          string        `json:"tripId"`
	UserID      string        `json:"userId"`
	PNR         string        `json:"pnr"`
	AirlineName string        `json:"airlineName"`
	CreatedAt   time.Time     `json:"createdAt"`
	Segments    []TripSegment `json:"segments,omitempty"`
}

type TripSegment struct {
	FlightNumber         string `json:"flightNumber"`
	DepartureAirportIATA string `json:"departureAirportIata"`
	ArrivalAirportIATA   string `json:"arrivalAirportIata"`
	DepartureTime        string `json:"departureTime"`
	ArrivalTime          string `json:"arrivalTime"`
	WebCheckinLink       string `json:"webCheckinLink,omitempty"`
}
