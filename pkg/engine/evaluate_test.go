package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsolti91h/fare-watch/pkg/engine"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

var t0 = time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)

func roundTripPolicy() engine.Policy {
	return engine.Policy{
		Cap:    decimal.NewFromInt(80),
		Window: 48 * time.Hour,
		Trip:   model.TripRoundTrip,
	}
}

func bcn(price string) model.Candidate {
	c := model.Candidate{
		Origin:        "BER",
		Destination:   "BCN",
		DepartureDate: "2025-09-01",
		ReturnDate:    "2025-09-08",
	}
	if price == "" {
		return c
	}
	return c.WithLivePrice(decimal.RequireFromString(price))
}

func TestEvaluate_Scenario(t *testing.T) {
	policy := roundTripPolicy()

	first := engine.Evaluate([]model.Candidate{bcn("79.40")}, policy, ledger.New(), t0)
	require.Len(t, first.Alerts, 1)
	assert.Equal(t, "BER-BCN-2025-09-01-2025-09-08-79", first.Alerts[0].Fingerprint)
	assert.Equal(t, t0.Unix(), first.Ledger["BER-BCN-2025-09-01-2025-09-08-79"])

	again := engine.Evaluate([]model.Candidate{bcn("79.40")}, policy, first.Ledger, t0.Add(10*time.Hour))
	assert.Empty(t, again.Alerts)
	assert.Equal(t, 1, again.Skipped[engine.SkipSuppressed])

	later := engine.Evaluate([]model.Candidate{bcn("79.40")}, policy, first.Ledger, t0.Add(49*time.Hour))
	require.Len(t, later.Alerts, 1)
	assert.Equal(t, "BER-BCN-2025-09-01-2025-09-08-79", later.Alerts[0].Fingerprint)
	assert.Equal(t, t0.Add(49*time.Hour).Unix(), later.Ledger["BER-BCN-2025-09-01-2025-09-08-79"])

	moved := engine.Evaluate([]model.Candidate{bcn("80.00")}, policy, first.Ledger, t0.Add(time.Hour))
	require.Len(t, moved.Alerts, 1)
	assert.Equal(t, "BER-BCN-2025-09-01-2025-09-08-80", moved.Alerts[0].Fingerprint)
}

func TestEvaluate_SuppressionExpiry(t *testing.T) {
	policy := roundTripPolicy()
	first := engine.Evaluate([]model.Candidate{bcn("50")}, policy, ledger.New(), t0)
	require.Len(t, first.Alerts, 1)

	res := engine.Evaluate([]model.Candidate{bcn("50")}, policy, first.Ledger, t0.Add(policy.Window+time.Second))
	assert.Len(t, res.Alerts, 1)
}

func TestEvaluate_CapBoundary(t *testing.T) {
	policy := roundTripPolicy()

	at := engine.Evaluate([]model.Candidate{bcn("80.00")}, policy, ledger.New(), t0)
	assert.Len(t, at.Alerts, 1)

	above := engine.Evaluate([]model.Candidate{bcn("80.01")}, policy, ledger.New(), t0)
	assert.Empty(t, above.Alerts)
	assert.Empty(t, above.Ledger)
	assert.Equal(t, 1, above.Skipped[engine.SkipOverCap])
}

func TestEvaluate_MissingFields(t *testing.T) {
	noDest := bcn("40")
	noDest.Destination = ""
	noDep := bcn("40")
	noDep.DepartureDate = ""
	noRet := bcn("40")
	noRet.ReturnDate = ""

	res := engine.Evaluate([]model.Candidate{noDest, noDep, noRet}, roundTripPolicy(), ledger.New(), t0)
	assert.Empty(t, res.Alerts)
	assert.Empty(t, res.Ledger)
	assert.Equal(t, 3, res.Skipped[engine.SkipIncomplete])
}

func TestEvaluate_OneWayIgnoresReturnDate(t *testing.T) {
	policy := roundTripPolicy()
	policy.Trip = model.TripOneWay

	c := bcn("40")
	c.ReturnDate = ""
	res := engine.Evaluate([]model.Candidate{c}, policy, ledger.New(), t0)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "BER-BCN-2025-09-01-40", res.Alerts[0].Fingerprint)
}

func TestEvaluate_NoLivePrice(t *testing.T) {
	res := engine.Evaluate([]model.Candidate{bcn("")}, roundTripPolicy(), ledger.New(), t0)
	assert.Empty(t, res.Alerts)
	assert.Empty(t, res.Ledger)
	assert.Equal(t, 1, res.Skipped[engine.SkipNoPrice])
}

func TestEvaluate_DuplicatesInBatch(t *testing.T) {
	res := engine.Evaluate(
		[]model.Candidate{bcn("79.40"), bcn("79.90"), bcn("60")},
		roundTripPolicy(), ledger.New(), t0,
	)
	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "BER-BCN-2025-09-01-2025-09-08-79", res.Alerts[0].Fingerprint)
	assert.Equal(t, "BER-BCN-2025-09-01-2025-09-08-60", res.Alerts[1].Fingerprint)
	assert.Equal(t, 1, res.Skipped[engine.SkipSuppressed])
}

func TestEvaluate_PreservesOrder(t *testing.T) {
	mk := func(dest, price string) model.Candidate {
		c := bcn(price)
		c.Destination = dest
		return c
	}
	in := []model.Candidate{mk("OPO", "30"), mk("NAP", "95"), mk("LIS", "45"), mk("ATH", "70")}

	res := engine.Evaluate(in, roundTripPolicy(), ledger.New(), t0)
	require.Len(t, res.Alerts, 3)
	assert.Equal(t, "OPO", res.Alerts[0].Candidate.Destination)
	assert.Equal(t, "LIS", res.Alerts[1].Candidate.Destination)
	assert.Equal(t, "ATH", res.Alerts[2].Candidate.Destination)
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	in := ledger.Ledger{"other": t0.Unix()}
	res := engine.Evaluate([]model.Candidate{bcn("10")}, roundTripPolicy(), in, t0)
	assert.Len(t, res.Alerts, 1)
	assert.Len(t, in, 1)
	assert.Len(t, res.Ledger, 2)
}

func TestEvaluate_DefaultWindow(t *testing.T) {
	policy := roundTripPolicy()
	policy.Window = 0

	first := engine.Evaluate([]model.Candidate{bcn("10")}, policy, ledger.New(), t0)
	res := engine.Evaluate([]model.Candidate{bcn("10")}, policy, first.Ledger, t0.Add(47*time.Hour))
	assert.Empty(t, res.Alerts)

	res = engine.Evaluate([]model.Candidate{bcn("10")}, policy, first.Ledger, t0.Add(engine.DefaultWindow))
	assert.Len(t, res.Alerts, 1)
}
