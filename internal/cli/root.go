package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zsolti91h/fare-watch/internal/config"
	"github.com/zsolti91h/fare-watch/pkg/alerts"
	"github.com/zsolti91h/fare-watch/pkg/amadeus"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "farewatch",
	Short: "Fare Watch - cheap flight alerts without the repeats",
	Long: `Fare Watch searches for flights under a price cap, confirms the live price
of each candidate and emails the new deals. A deal that was already alerted
is not sent again until the suppression window has passed.

Run it from a scheduler (cron, CI) a few times a day.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./farewatch.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStore opens the ledger backend named in config.
func initStore(cfg *config.Config, logger *slog.Logger) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		store, err := ledger.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		if moved := store.Quarantined(); moved != "" {
			logger.Warn("ledger database unreadable, starting with empty history",
				"path", cfg.Ledger.Path, "moved_to", moved)
		}
		return store, nil
	case "file", "":
		return ledger.NewFileStore(cfg.Ledger.Path), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if email := cfg.Alerts.Email; email.Enabled {
		notifiers = append(notifiers, alerts.NewEmailNotifier(alerts.EmailConfig{
			Host:      email.Host,
			Port:      email.Port,
			Username:  email.Username,
			Password:  email.Password,
			From:      email.From,
			Recipient: email.Recipient,
		}))
	}

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initSource creates the fare API client.
func initSource(cfg *config.Config, logger *slog.Logger) *amadeus.Client {
	return amadeus.NewClient(amadeus.Config{
		BaseURL:      cfg.Amadeus.BaseURL,
		ClientID:     cfg.Amadeus.ClientID,
		ClientSecret: cfg.Amadeus.ClientSecret,
		Currency:     cfg.Search.Currency,
		MaxOffers:    cfg.Search.OffersPerLookup,
		Timeout:      cfg.Amadeus.Timeout,
		RetryCount:   cfg.Amadeus.RetryCount,
		RetryWait:    cfg.Amadeus.RetryWait,
	}, logger)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
