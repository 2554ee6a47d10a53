// Package watcher runs one fare-watch pass: search, price, decide, notify, persist.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zsolti91h/fare-watch/pkg/alerts"
	"github.com/zsolti91h/fare-watch/pkg/engine"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

// FareSource finds candidate fares and confirms their live price.
type FareSource interface {
	Authenticate(ctx context.Context) error
	SearchCandidates(ctx context.Context, q model.SearchQuery) ([]model.Candidate, error)
	LivePrice(ctx context.Context, c model.Candidate) (decimal.Decimal, error)
}

// Options configures a run.
type Options struct {
	Origin        string
	Cap           decimal.Decimal
	Currency      string
	DaysAhead     int
	Trip          model.TripType
	MaxCandidates int           // 0 checks every candidate
	Delay         time.Duration // between live-price lookups
	Window        time.Duration
	Retention     int // compaction keeps Retention × Window of history; 0 disables

	// SuppressOnFailure persists newly alerted fingerprints even when no
	// notifier delivered the message.
	SuppressOnFailure bool

	// DryRun evaluates without notifying or persisting.
	DryRun bool
}

// Report summarizes a run.
type Report struct {
	RunID      string
	Candidates int
	Checked    int
	Priced     int
	Alerts     []engine.Alert
	Skipped    map[engine.SkipReason]int
	Compacted  int
	Message    *alerts.Message
	Delivered  []string
	Failed     []string
	Persisted  bool
}

// Watcher wires the fare source, decision engine, notifiers and ledger store.
type Watcher struct {
	source    FareSource
	store     ledger.Store
	notifiers []alerts.Notifier
	opts      Options
	logger    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a watcher.
func New(source FareSource, store ledger.Store, notifiers []alerts.Notifier, opts Options, logger *slog.Logger) *Watcher {
	if opts.Window <= 0 {
		opts.Window = engine.DefaultWindow
	}
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	return &Watcher{
		source:    source,
		store:     store,
		notifiers: notifiers,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// SetClock replaces the time source and the delay function.
func (w *Watcher) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	if now != nil {
		w.now = now
	}
	if sleep != nil {
		w.sleep = sleep
	}
}

// Run executes a single pass. Only credential failures and context
// cancellation are returned as errors; everything else degrades to fewer
// alerts and is logged.
func (w *Watcher) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	logger := w.logger.With("run_id", report.RunID)

	if err := w.source.Authenticate(ctx); err != nil {
		return report, fmt.Errorf("authenticate: %w", err)
	}

	now := w.now().UTC()
	query := model.SearchQuery{
		Origin:    w.opts.Origin,
		MaxPrice:  w.opts.Cap,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, w.opts.DaysAhead),
		Trip:      w.opts.Trip,
	}

	logger.Info("searching fares",
		"origin", query.Origin,
		"trip_type", query.Trip,
		"max_price", query.MaxPrice.String(),
		"currency", w.opts.Currency,
		"window", query.DateRange(),
	)

	found, err := w.source.SearchCandidates(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		logger.Error("candidate search failed", "error", err)
		return report, nil
	}
	report.Candidates = len(found)

	candidates := found
	if w.opts.MaxCandidates > 0 && len(candidates) > w.opts.MaxCandidates {
		candidates = candidates[:w.opts.MaxCandidates]
	}
	logger.Info("candidates found", "total", len(found), "checking", len(candidates))

	priced, err := w.priceCandidates(ctx, logger, candidates)
	if err != nil {
		return report, err
	}
	report.Checked = len(candidates)
	for _, c := range priced {
		if c.LivePrice.Valid {
			report.Priced++
		}
	}

	led, err := w.store.Load(ctx)
	if err != nil {
		logger.Warn("ledger unreadable, starting with empty history", "error", err)
		led = ledger.New()
	}

	now = w.now().UTC()
	if w.opts.Retention > 0 {
		report.Compacted = led.Compact(now, time.Duration(w.opts.Retention)*w.opts.Window)
		if report.Compacted > 0 {
			logger.Debug("ledger compacted", "removed", report.Compacted)
		}
	}

	result := engine.Evaluate(priced, engine.Policy{
		Cap:    w.opts.Cap,
		Window: w.opts.Window,
		Trip:   w.opts.Trip,
	}, led, now)
	report.Alerts = result.Alerts
	report.Skipped = result.Skipped

	logger.Info("candidates evaluated",
		"alerts", len(result.Alerts),
		"incomplete", result.Skipped[engine.SkipIncomplete],
		"no_price", result.Skipped[engine.SkipNoPrice],
		"over_cap", result.Skipped[engine.SkipOverCap],
		"suppressed", result.Skipped[engine.SkipSuppressed],
	)

	if len(result.Alerts) == 0 {
		return report, nil
	}

	deals := w.deals(result.Alerts)
	msg, err := alerts.Render(report.RunID, w.opts.Trip, deals)
	if err != nil {
		logger.Error("render message", "error", err)
		return report, nil
	}
	report.Message = &msg

	if w.opts.DryRun {
		logger.Info("dry run, not notifying or persisting", "alerts", len(deals))
		return report, nil
	}

	w.notify(ctx, logger, msg, report)

	if len(report.Delivered) == 0 && !w.opts.SuppressOnFailure {
		logger.Warn("no notifier delivered, leaving deals unsuppressed", "alerts", len(deals))
		return report, nil
	}

	if err := w.store.Save(ctx, result.Ledger); err != nil {
		logger.Error("persist ledger", "error", err)
		return report, nil
	}
	report.Persisted = true

	if rec, ok := w.store.(ledger.HistoryRecorder); ok {
		if err := rec.RecordHistory(ctx, historyEntries(report.RunID, deals, now)); err != nil {
			logger.Error("record alert history", "error", err)
		}
	}

	return report, nil
}

// priceCandidates looks up the live price of each candidate in order, pausing
// between lookups. Lookup failures leave LivePrice invalid.
func (w *Watcher) priceCandidates(ctx context.Context, logger *slog.Logger, candidates []model.Candidate) ([]model.Candidate, error) {
	out := make([]model.Candidate, 0, len(candidates))
	lookups := 0
	for _, c := range candidates {
		if c.Destination == "" || c.DepartureDate == "" || (w.opts.Trip.RoundTrip() && c.ReturnDate == "") {
			logger.Debug("skipping incomplete candidate", "destination", c.Destination, "departure", c.DepartureDate)
			out = append(out, c)
			continue
		}

		if lookups > 0 && w.opts.Delay > 0 {
			if err := w.sleep(ctx, w.opts.Delay); err != nil {
				return nil, err
			}
		}
		lookups++

		price, err := w.source.LivePrice(ctx, c)
		switch {
		case err == nil:
			c = c.WithLivePrice(price)
			logger.Debug("live price", "route", c.Route(), "departure", c.DepartureDate, "price", price.String())
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			logger.Warn("live price unavailable", "route", c.Route(), "departure", c.DepartureDate, "error", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (w *Watcher) notify(ctx context.Context, logger *slog.Logger, msg alerts.Message, report *Report) {
	for _, n := range w.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			logger.Error("send alert failed", "notifier", n.Name(), "alerts", len(msg.Deals), "error", err)
			report.Failed = append(report.Failed, n.Name())
			continue
		}
		logger.Info("alert sent", "notifier", n.Name(), "alerts", len(msg.Deals))
		report.Delivered = append(report.Delivered, n.Name())
	}
}

func (w *Watcher) deals(found []engine.Alert) []alerts.Deal {
	deals := make([]alerts.Deal, 0, len(found))
	for _, a := range found {
		c := a.Candidate
		deals = append(deals, alerts.Deal{
			Fingerprint:   a.Fingerprint,
			Origin:        c.Origin,
			Destination:   c.Destination,
			DepartureDate: c.DepartureDate,
			ReturnDate:    c.ReturnDate,
			Price:         c.LivePrice.Decimal,
			Currency:      w.opts.Currency,
		})
	}
	return deals
}

func historyEntries(runID string, deals []alerts.Deal, at time.Time) []ledger.HistoryEntry {
	entries := make([]ledger.HistoryEntry, 0, len(deals))
	for _, d := range deals {
		entries = append(entries, ledger.HistoryEntry{
			RunID:         runID,
			Fingerprint:   d.Fingerprint,
			Origin:        d.Origin,
			Destination:   d.Destination,
			DepartureDate: d.DepartureDate,
			ReturnDate:    d.ReturnDate,
			Price:         d.Price,
			Currency:      d.Currency,
			AlertedAt:     at,
		})
	}
	return entries
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
