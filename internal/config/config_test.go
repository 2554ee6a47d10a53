package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsolti91h/fare-watch/internal/config"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Amadeus.ClientID = "id"
	cfg.Amadeus.ClientSecret = "secret"
	cfg.Alerts.Email.Host = "smtp.example.com"
	cfg.Alerts.Email.Username = "bot@example.com"
	cfg.Alerts.Email.Password = "pw"
	cfg.Alerts.Email.Recipient = "me@example.com"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "BER", cfg.Search.Origin)
	assert.Equal(t, "80", cfg.Search.MaxPrice)
	assert.Equal(t, "EUR", cfg.Search.Currency)
	assert.Equal(t, 180, cfg.Search.DaysAhead)
	assert.Equal(t, "one-way", cfg.Search.TripType)
	assert.Equal(t, 8, cfg.Search.MaxCandidates)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Delay)
	assert.Equal(t, "https://api.amadeus.com", cfg.Amadeus.BaseURL)
	assert.Equal(t, 4, cfg.Amadeus.RetryCount)
	assert.Equal(t, 800*time.Millisecond, cfg.Amadeus.RetryWait)
	assert.Equal(t, "file", cfg.Ledger.Backend)
	assert.Equal(t, "state.json", cfg.Ledger.Path)
	assert.Equal(t, 48*time.Hour, cfg.Ledger.Window)
	assert.True(t, cfg.Ledger.Lock)
	assert.True(t, cfg.Alerts.Email.Enabled)
	assert.Equal(t, 587, cfg.Alerts.Email.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "farewatch.yaml")
	data := []byte(`
search:
  origin: MUC
  max_price: "49.99"
  trip_type: round-trip
  delay: 1s
ledger:
  backend: sqlite
  path: /tmp/state.db
  window: 24h
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "MUC", cfg.Search.Origin)
	assert.Equal(t, time.Second, cfg.Search.Delay)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.Window)
	assert.Equal(t, "debug", cfg.Logging.Level)

	price, err := cfg.MaxPrice()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("49.99").Equal(price))

	trip, err := cfg.Trip()
	require.NoError(t, err)
	assert.Equal(t, model.TripRoundTrip, trip)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FAREWATCH_LOGGING_LEVEL", "error")
	t.Setenv("FAREWATCH_SEARCH_ORIGIN", "HAM")
	t.Setenv("FAREWATCH_LEDGER_WINDOW", "12h")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "HAM", cfg.Search.Origin)
	assert.Equal(t, 12*time.Hour, cfg.Ledger.Window)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("ORIGIN", "VIE")
	t.Setenv("MAX_PRICE_EUR", "60")
	t.Setenv("MAX_CANDIDATES", "5")
	t.Setenv("SLEEP_BETWEEN_MS", "150")
	t.Setenv("AMADEUS_CLIENT_ID", "legacy-id")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("RECIPIENT_EMAIL", "me@example.com")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "VIE", cfg.Search.Origin)
	assert.Equal(t, "60", cfg.Search.MaxPrice)
	assert.Equal(t, 5, cfg.Search.MaxCandidates)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Delay)
	assert.Equal(t, "legacy-id", cfg.Amadeus.ClientID)
	assert.Equal(t, 2525, cfg.Alerts.Email.Port)
	assert.Equal(t, "me@example.com", cfg.Alerts.Email.Recipient)
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("ORIGIN", "VIE")
	t.Setenv("FAREWATCH_SEARCH_ORIGIN", "PRG")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "PRG", cfg.Search.Origin)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644))

	_, err := config.Load(cfgPath)
	assert.Error(t, err)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Amadeus.ClientSecret = ""
	cfg.Alerts.Email.Recipient = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissing)
	assert.Contains(t, err.Error(), "amadeus.client_secret")
	assert.Contains(t, err.Error(), "alerts.email.recipient")
}

func TestValidate_Malformed(t *testing.T) {
	cfg := validConfig(t)
	cfg.Search.MaxPrice = "cheap"
	cfg.Search.TripType = "multi-city"
	cfg.Ledger.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.max_price")
	assert.Contains(t, err.Error(), "search.trip_type")
	assert.Contains(t, err.Error(), "ledger.backend")
}

func TestValidate_NoNotifier(t *testing.T) {
	cfg := validConfig(t)
	cfg.Alerts.Email.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notifier enabled")

	cfg.Alerts.Webhook.Enabled = true
	cfg.Alerts.Webhook.URL = "https://example.com/hook"
	assert.NoError(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := validConfig(t)
	r := cfg.Redacted()
	assert.Equal(t, "********", r.Amadeus.ClientSecret)
	assert.Equal(t, "********", r.Alerts.Email.Password)
	assert.Equal(t, "", r.Alerts.Webhook.Secret)
	assert.Equal(t, "secret", cfg.Amadeus.ClientSecret)
}
