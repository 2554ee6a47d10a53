// Package engine decides which fare candidates are new, alert-worthy deals.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

// DefaultWindow is how long an alerted fingerprint stays suppressed.
const DefaultWindow = 48 * time.Hour

// SkipReason explains why a candidate produced no alert.
type SkipReason string

const (
	SkipIncomplete SkipReason = "incomplete" // Missing destination or dates
	SkipNoPrice    SkipReason = "no_price"   // Live lookup gave nothing usable
	SkipOverCap    SkipReason = "over_cap"   // Live price above the cap
	SkipSuppressed SkipReason = "suppressed" // Alerted within the window
)

// Policy holds the gating parameters for one evaluation.
type Policy struct {
	Cap    decimal.Decimal
	Window time.Duration
	Trip   model.TripType
}

// Alert is a candidate that passed every gate.
type Alert struct {
	Candidate   model.Candidate
	Fingerprint string
}

// Result is the outcome of Evaluate.
type Result struct {
	Alerts  []Alert
	Ledger  ledger.Ledger
	Skipped map[SkipReason]int
}

// Evaluate filters candidates down to new alerts, in input order, and returns
// the ledger with every alerted fingerprint stamped at now. The input ledger
// is not modified.
func Evaluate(candidates []model.Candidate, policy Policy, led ledger.Ledger, now time.Time) Result {
	window := policy.Window
	if window <= 0 {
		window = DefaultWindow
	}

	res := Result{
		Ledger:  led.Clone(),
		Skipped: make(map[SkipReason]int),
	}

	for _, c := range candidates {
		if reason, ok := gate(c, policy); !ok {
			res.Skipped[reason]++
			continue
		}

		fp := c.Fingerprint()
		if res.Ledger.Suppressed(fp, now, window) {
			res.Skipped[SkipSuppressed]++
			continue
		}

		res.Alerts = append(res.Alerts, Alert{Candidate: c, Fingerprint: fp})
		res.Ledger.Mark(fp, now)
	}

	return res
}

// gate applies the per-candidate checks that do not need the ledger.
func gate(c model.Candidate, policy Policy) (SkipReason, bool) {
	if c.Destination == "" || c.DepartureDate == "" {
		return SkipIncomplete, false
	}
	if policy.Trip.RoundTrip() && c.ReturnDate == "" {
		return SkipIncomplete, false
	}
	if !c.LivePrice.Valid {
		return SkipNoPrice, false
	}
	if c.LivePrice.Decimal.GreaterThan(policy.Cap) {
		return SkipOverCap, false
	}
	return "", true
}
