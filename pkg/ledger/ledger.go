// Package ledger persists the deal fingerprints that have already been alerted.
package ledger

import (
	"context"
	"sort"
	"time"
)

// Ledger maps a deal fingerprint to the Unix time (seconds) it was last alerted.
type Ledger map[string]int64

// New returns an empty ledger.
func New() Ledger { return make(Ledger) }

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// LastAlerted returns when fingerprint was last alerted.
func (l Ledger) LastAlerted(fingerprint string) (time.Time, bool) {
	ts, ok := l[fingerprint]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(ts, 0).UTC(), true
}

// Suppressed reports whether fingerprint was alerted less than window before now.
func (l Ledger) Suppressed(fingerprint string, now time.Time, window time.Duration) bool {
	ts, ok := l[fingerprint]
	if !ok {
		return false
	}
	return now.Unix()-ts < int64(window/time.Second)
}

// Mark records fingerprint as alerted at now.
func (l Ledger) Mark(fingerprint string, now time.Time) {
	l[fingerprint] = now.Unix()
}

// Compact drops entries older than maxAge and returns how many were removed.
// A non-positive maxAge keeps everything.
func (l Ledger) Compact(now time.Time, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-maxAge).Unix()
	removed := 0
	for k, ts := range l {
		if ts < cutoff {
			delete(l, k)
			removed++
		}
	}
	return removed
}

// Fingerprints returns the keys in sorted order.
func (l Ledger) Fingerprints() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store defines where a ledger lives between runs.
type Store interface {
	// Load returns the persisted ledger. A missing store yields an empty
	// ledger; an unreadable one returns an error alongside an empty ledger.
	Load(ctx context.Context) (Ledger, error)

	// Save replaces the persisted ledger.
	Save(ctx context.Context, l Ledger) error

	// Close releases resources.
	Close() error
}
