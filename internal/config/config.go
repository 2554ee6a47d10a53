package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/zsolti91h/fare-watch/pkg/model"
)

// ErrMissing is wrapped for every required key that has no value.
var ErrMissing = errors.New("missing required configuration")

// Config holds all fare-watch configuration.
type Config struct {
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Amadeus AmadeusConfig `mapstructure:"amadeus" yaml:"amadeus"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Alerts  AlertsConfig  `mapstructure:"alerts" yaml:"alerts"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SearchConfig defines what to look for.
type SearchConfig struct {
	Origin          string        `mapstructure:"origin" yaml:"origin"`
	MaxPrice        string        `mapstructure:"max_price" yaml:"max_price"`
	Currency        string        `mapstructure:"currency" yaml:"currency"`
	DaysAhead       int           `mapstructure:"days_ahead" yaml:"days_ahead"`
	TripType        string        `mapstructure:"trip_type" yaml:"trip_type"`
	MaxCandidates   int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	Delay           time.Duration `mapstructure:"delay" yaml:"delay"`
	OffersPerLookup int           `mapstructure:"offers_per_lookup" yaml:"offers_per_lookup"`
}

// AmadeusConfig defines the fare API connection.
type AmadeusConfig struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	ClientID     string        `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string        `mapstructure:"client_secret" yaml:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryCount   int           `mapstructure:"retry_count" yaml:"retry_count"`
	RetryWait    time.Duration `mapstructure:"retry_wait" yaml:"retry_wait"`
}

// LedgerConfig defines where alert history is kept and for how long.
type LedgerConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend"`
	Path              string        `mapstructure:"path" yaml:"path"`
	Window            time.Duration `mapstructure:"window" yaml:"window"`
	Retention         int           `mapstructure:"retention" yaml:"retention"`
	SuppressOnFailure bool          `mapstructure:"suppress_on_failure" yaml:"suppress_on_failure"`
	Lock              bool          `mapstructure:"lock" yaml:"lock"`
}

// AlertsConfig defines notification channels.
type AlertsConfig struct {
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// EmailConfig defines SMTP submission settings.
type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	From      string `mapstructure:"from" yaml:"from"`
	Recipient string `mapstructure:"recipient" yaml:"recipient"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// legacyEnv maps config keys to the plain environment names the bot has
// always accepted. FAREWATCH_* names take precedence.
var legacyEnv = map[string]string{
	"search.origin":          "ORIGIN",
	"search.max_price":       "MAX_PRICE_EUR",
	"search.days_ahead":      "DAYS_AHEAD",
	"search.max_candidates":  "MAX_CANDIDATES",
	"amadeus.base_url":       "AMADEUS_BASE",
	"amadeus.client_id":      "AMADEUS_CLIENT_ID",
	"amadeus.client_secret":  "AMADEUS_CLIENT_SECRET",
	"alerts.email.host":      "SMTP_HOST",
	"alerts.email.port":      "SMTP_PORT",
	"alerts.email.username":  "SMTP_USER",
	"alerts.email.password":  "SMTP_PASS",
	"alerts.email.recipient": "RECIPIENT_EMAIL",
}

// Load reads configuration from an optional file, a .env file in the working
// directory and environment variables.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is normal; variables already set win over the file.
	_ = godotenv.Load()

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("farewatch")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("search.origin", "BER")
	v.SetDefault("search.max_price", "80")
	v.SetDefault("search.currency", "EUR")
	v.SetDefault("search.days_ahead", 180)
	v.SetDefault("search.trip_type", string(model.TripOneWay))
	v.SetDefault("search.max_candidates", 8)
	v.SetDefault("search.delay", "300ms")
	v.SetDefault("search.offers_per_lookup", 3)
	v.SetDefault("amadeus.base_url", "https://api.amadeus.com")
	v.SetDefault("amadeus.client_id", "")
	v.SetDefault("amadeus.client_secret", "")
	v.SetDefault("amadeus.timeout", "60s")
	v.SetDefault("amadeus.retry_count", 4)
	v.SetDefault("amadeus.retry_wait", "800ms")
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "state.json")
	v.SetDefault("ledger.window", "48h")
	v.SetDefault("ledger.retention", 4)
	v.SetDefault("ledger.suppress_on_failure", false)
	v.SetDefault("ledger.lock", true)
	v.SetDefault("alerts.email.enabled", true)
	v.SetDefault("alerts.email.host", "")
	v.SetDefault("alerts.email.port", 587)
	v.SetDefault("alerts.email.username", "")
	v.SetDefault("alerts.email.password", "")
	v.SetDefault("alerts.email.from", "")
	v.SetDefault("alerts.email.recipient", "")
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#fares")
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("FAREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "FAREWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// SLEEP_BETWEEN_MS is a bare millisecond count, unlike search.delay.
	if ms := os.Getenv("SLEEP_BETWEEN_MS"); ms != "" && os.Getenv("FAREWATCH_SEARCH_DELAY") == "" && !v.InConfig("search.delay") {
		n, err := parseMillis(ms)
		if err != nil {
			return nil, fmt.Errorf("SLEEP_BETWEEN_MS: %w", err)
		}
		cfg.Search.Delay = n
	}

	return &cfg, nil
}

func parseMillis(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s) + "ms")
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %s", s)
	}
	return d, nil
}

// MaxPrice parses the configured price cap.
func (c *Config) MaxPrice() (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(c.Search.MaxPrice))
	if err != nil {
		return decimal.Zero, fmt.Errorf("search.max_price %q: %w", c.Search.MaxPrice, err)
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("search.max_price %q: must not be negative", c.Search.MaxPrice)
	}
	return p, nil
}

// Trip parses the configured trip type.
func (c *Config) Trip() (model.TripType, error) {
	t, err := model.ParseTripType(c.Search.TripType)
	if err != nil {
		return "", fmt.Errorf("search.trip_type: %w", err)
	}
	return t, nil
}

// Validate reports every missing or malformed setting that would stop a run.
// It runs before any network call.
func (c *Config) Validate() error {
	var errs []error

	missing := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, key))
		}
	}

	missing("search.origin", c.Search.Origin)
	missing("amadeus.base_url", c.Amadeus.BaseURL)
	missing("amadeus.client_id", c.Amadeus.ClientID)
	missing("amadeus.client_secret", c.Amadeus.ClientSecret)

	if _, err := c.MaxPrice(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Trip(); err != nil {
		errs = append(errs, err)
	}
	if c.Search.DaysAhead <= 0 {
		errs = append(errs, fmt.Errorf("search.days_ahead must be positive, got %d", c.Search.DaysAhead))
	}
	if c.Search.MaxCandidates < 0 {
		errs = append(errs, fmt.Errorf("search.max_candidates must not be negative, got %d", c.Search.MaxCandidates))
	}
	if c.Ledger.Window <= 0 {
		errs = append(errs, fmt.Errorf("ledger.window must be positive, got %s", c.Ledger.Window))
	}
	switch c.Ledger.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend must be file or sqlite, got %q", c.Ledger.Backend))
	}
	missing("ledger.path", c.Ledger.Path)

	email := c.Alerts.Email
	if email.Enabled {
		missing("alerts.email.host", email.Host)
		missing("alerts.email.username", email.Username)
		missing("alerts.email.password", email.Password)
		missing("alerts.email.recipient", email.Recipient)
		if email.Port <= 0 {
			errs = append(errs, fmt.Errorf("%w: alerts.email.port", ErrMissing))
		}
	}
	if c.Alerts.Slack.Enabled {
		missing("alerts.slack.webhook_url", c.Alerts.Slack.WebhookURL)
	}
	if c.Alerts.Webhook.Enabled {
		missing("alerts.webhook.url", c.Alerts.Webhook.URL)
	}
	if !email.Enabled && !c.Alerts.Slack.Enabled && !c.Alerts.Webhook.Enabled {
		errs = append(errs, errors.New("no notifier enabled: enable alerts.email, alerts.slack or alerts.webhook"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Amadeus.ClientSecret = mask(out.Amadeus.ClientSecret)
	out.Alerts.Email.Password = mask(out.Alerts.Email.Password)
	out.Alerts.Webhook.Secret = mask(out.Alerts.Webhook.Secret)
	out.Alerts.Slack.WebhookURL = mask(out.Alerts.Slack.WebhookURL)
	return out
}
