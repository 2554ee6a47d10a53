package ledger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
)

func TestLedger_Suppressed(t *testing.T) {
	t0 := time.Unix(1_750_000_000, 0)
	l := ledger.New()
	l.Mark("BER-BCN-2025-09-01-79", t0)

	window := 48 * time.Hour
	assert.True(t, l.Suppressed("BER-BCN-2025-09-01-79", t0, window))
	assert.True(t, l.Suppressed("BER-BCN-2025-09-01-79", t0.Add(10*time.Hour), window))
	assert.False(t, l.Suppressed("BER-BCN-2025-09-01-79", t0.Add(window), window))
	assert.False(t, l.Suppressed("BER-BCN-2025-09-01-79", t0.Add(window+time.Second), window))
	assert.False(t, l.Suppressed("BER-LIS-2025-09-01-79", t0, window))
}

func TestLedger_LastAlerted(t *testing.T) {
	t0 := time.Unix(1_750_000_000, 0)
	l := ledger.New()
	_, ok := l.LastAlerted("x")
	assert.False(t, ok)

	l.Mark("x", t0)
	got, ok := l.LastAlerted("x")
	require.True(t, ok)
	assert.True(t, got.Equal(t0))
}

func TestLedger_Clone(t *testing.T) {
	l := ledger.Ledger{"a": 1}
	c := l.Clone()
	c["b"] = 2
	assert.Len(t, l, 1)
	assert.Len(t, c, 2)
}

func TestLedger_Compact(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)
	l := ledger.Ledger{
		"old":    now.Add(-200 * time.Hour).Unix(),
		"recent": now.Add(-10 * time.Hour).Unix(),
	}

	assert.Equal(t, 0, l.Compact(now, 0))
	assert.Len(t, l, 2)

	removed := l.Compact(now, 192*time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"recent"}, l.Fingerprints())
}

func TestFileStore_MissingFile(t *testing.T) {
	s := ledger.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	l, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l, err := ledger.NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, l)
	assert.Empty(t, l)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := ledger.NewFileStore(path)
	ctx := context.Background()

	in := ledger.Ledger{"BER-BCN-2025-09-01-2025-09-08-79": 1_750_000_000}
	require.NoError(t, s.Save(ctx, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"alerts"`)

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileStore_FractionalTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data := `{"alerts": {"BER-OPO-2025-05-03-41": 1746000000.734}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	l, err := ledger.NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1746000000), l["BER-OPO-2025-05-03-41"])
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json.lock")

	first, err := ledger.AcquireLock(path)
	require.NoError(t, err)

	_, err = ledger.AcquireLock(path)
	assert.ErrorIs(t, err, ledger.ErrLocked)

	require.NoError(t, first.Release())

	again, err := ledger.AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireLock_CreatesDirectory(t *testing.T) {
	ledgerPath := filepath.Join(t.TempDir(), "data", "state.json")

	lock, err := ledger.AcquireLock(ledgerPath + ".lock")
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	store := ledger.NewFileStore(ledgerPath)
	require.NoError(t, store.Save(context.Background(), ledger.Ledger{"BER-BCN-2025-09-01-79": 1}))
	l, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, l, 1)
}
