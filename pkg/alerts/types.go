package alerts

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

// Deal is one fare in an alert batch.
type Deal struct {
	Fingerprint   string          `json:"fingerprint"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate string          `json:"departure_date"`
	ReturnDate    string          `json:"return_date,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
}

// Message is a rendered batch of deals, sent at most once per run.
type Message struct {
	RunID   string         `json:"run_id"`
	Trip    model.TripType `json:"trip_type"`
	Subject string         `json:"subject"`
	Text    string         `json:"-"`
	HTML    string         `json:"-"`
	Deals   []Deal         `json:"deals"`
}

// Notifier delivers alert messages to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a message.
	Send(ctx context.Context, msg Message) error
}
