package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zsolti91h/fare-watch/pkg/alerts"
	"github.com/zsolti91h/fare-watch/pkg/engine"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
	"github.com/zsolti91h/fare-watch/pkg/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search fares once and alert new deals",
	Long: `Run one pass: search candidates under the price cap, confirm live prices,
drop deals alerted within the suppression window, notify and record the rest.

Deals are recorded as alerted only when at least one notifier delivered them,
so a failed email is retried on the next run. Set ledger.suppress_on_failure
(FAREWATCH_LEDGER_SUPPRESS_ON_FAILURE=true) to record them even when every
notifier failed, which never sends the same deal twice within the window.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Evaluate and print alerts without notifying or saving the ledger")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	logger := newLogger(cfg)

	if cfg.Ledger.Lock && !dryRun {
		lock, err := ledger.AcquireLock(cfg.Ledger.Path + ".lock")
		if err != nil {
			if errors.Is(err, ledger.ErrLocked) {
				logger.Warn("another run holds the ledger lock", "path", cfg.Ledger.Path)
			}
			return err
		}
		defer lock.Release()
	}

	store, err := initStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	maxPrice, _ := cfg.MaxPrice()
	trip, _ := cfg.Trip()

	w := watcher.New(initSource(cfg, logger), store, initNotifiers(cfg), watcher.Options{
		Origin:            cfg.Search.Origin,
		Cap:               maxPrice,
		Currency:          cfg.Search.Currency,
		DaysAhead:         cfg.Search.DaysAhead,
		Trip:              trip,
		MaxCandidates:     cfg.Search.MaxCandidates,
		Delay:             cfg.Search.Delay,
		Window:            cfg.Ledger.Window,
		Retention:         cfg.Ledger.Retention,
		SuppressOnFailure: cfg.Ledger.SuppressOnFailure,
		DryRun:            dryRun,
	}, logger)

	report, err := w.Run(cmd.Context())
	if err != nil {
		return err
	}

	printReport(report, dryRun)
	return nil
}

func printReport(r *watcher.Report, dryRun bool) {
	fmt.Printf("Run %s\n", r.RunID)
	fmt.Printf("  Candidates:  %d (checked %d, priced %d)\n", r.Candidates, r.Checked, r.Priced)
	fmt.Printf("  New deals:   %d\n", len(r.Alerts))
	fmt.Printf("  Suppressed:  %d\n", r.Skipped[engine.SkipSuppressed])
	fmt.Printf("  Over cap:    %d\n", r.Skipped[engine.SkipOverCap])
	if r.Compacted > 0 {
		fmt.Printf("  Compacted:   %d\n", r.Compacted)
	}

	if r.Message != nil && len(r.Message.Deals) > 0 {
		fmt.Printf("\n%s\n", r.Message.Subject)
		for _, d := range r.Message.Deals {
			fmt.Printf("  %s\n", alerts.DealLine(d))
		}
	}

	switch {
	case dryRun:
		fmt.Printf("\nDry run: nothing sent, ledger unchanged.\n")
	case len(r.Alerts) == 0:
	case len(r.Delivered) > 0:
		fmt.Printf("\nSent via: %s\n", strings.Join(r.Delivered, ", "))
	case r.Persisted:
		fmt.Printf("\nDelivery failed (%s); deals suppressed anyway.\n", strings.Join(r.Failed, ", "))
	default:
		fmt.Printf("\nDelivery failed (%s); deals stay eligible for the next run.\n", strings.Join(r.Failed, ", "))
	}
}
