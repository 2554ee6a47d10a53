package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the fare API and in fingerprints.
const DateLayout = "2006-01-02"

// TripType selects one-way or round-trip searches.
type TripType string

const (
	TripOneWay    TripType = "one-way"
	TripRoundTrip TripType = "round-trip"
)

// ParseTripType accepts the configured trip type, tolerating a few spellings.
func ParseTripType(s string) (TripType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "one-way", "oneway", "one_way":
		return TripOneWay, nil
	case "round-trip", "roundtrip", "round_trip", "return":
		return TripRoundTrip, nil
	default:
		return "", fmt.Errorf("unknown trip type %q", s)
	}
}

// RoundTrip reports whether a return date is expected.
func (t TripType) RoundTrip() bool { return t == TripRoundTrip }

// SearchQuery describes one candidate search against the fare source.
type SearchQuery struct {
	Origin    string          `json:"origin"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Trip      TripType        `json:"trip_type"`
}

// DateRange renders the window as "start,end" the way the search endpoint expects it.
func (q SearchQuery) DateRange() string {
	return q.StartDate.Format(DateLayout) + "," + q.EndDate.Format(DateLayout)
}

// Candidate is a single itinerary returned by the candidate search.
// ReturnDate is empty for one-way trips. LivePrice is filled in after the
// live-pricing lookup and stays invalid when no offer could be priced.
type Candidate struct {
	Origin          string              `json:"origin"`
	Destination     string              `json:"destination"`
	DepartureDate   string              `json:"departure_date"`
	ReturnDate      string              `json:"return_date,omitempty"`
	IndicativePrice decimal.NullDecimal `json:"indicative_price"`
	LivePrice       decimal.NullDecimal `json:"live_price"`
}

// Route returns "ORIGIN-DEST" for log lines.
func (c Candidate) Route() string {
	return c.Origin + "-" + c.Destination
}

// WithLivePrice returns a copy of c carrying the confirmed price.
func (c Candidate) WithLivePrice(price decimal.Decimal) Candidate {
	c.LivePrice = decimal.NullDecimal{Decimal: price, Valid: true}
	return c
}

// Fingerprint identifies a deal across runs. The price is truncated, not
// rounded, so cent-level movement keeps the same key.
func Fingerprint(origin, destination, departureDate, returnDate string, price decimal.Decimal) string {
	parts := []string{origin, destination, departureDate}
	if returnDate != "" {
		parts = append(parts, returnDate)
	}
	parts = append(parts, price.Truncate(0).String())
	return strings.Join(parts, "-")
}

// Fingerprint returns the deal key for c using its live price.
func (c Candidate) Fingerprint() string {
	return Fingerprint(c.Origin, c.Destination, c.DepartureDate, c.ReturnDate, c.LivePrice.Decimal)
}
