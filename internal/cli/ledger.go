package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zsolti91h/fare-watch/pkg/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and maintain the alert ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerted deals and whether they are still suppressed",
	RunE:  runLedgerList,
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop entries older than the retention period",
	RunE:  runLedgerPrune,
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show sent alerts (sqlite backend only)",
	RunE:  runLedgerHistory,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerPruneCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)

	ledgerPruneCmd.Flags().Duration("older-than", 0, "Prune entries older than this (default: retention x window)")
	ledgerHistoryCmd.Flags().IntP("limit", "n", 20, "Number of alerts to show (0 for all)")
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	l, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	if len(l) == 0 {
		fmt.Println("Ledger is empty.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FINGERPRINT\tLAST ALERTED\tSUPPRESSING\n")
	for _, fp := range l.Fingerprints() {
		at, _ := l.LastAlerted(fp)
		suppressing := "no"
		if l.Suppressed(fp, now, cfg.Ledger.Window) {
			suppressing = "yes, until " + formatTime(at.Add(cfg.Ledger.Window))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", fp, formatTime(at), suppressing)
	}
	return w.Flush()
}

func runLedgerPrune(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	maxAge, _ := cmd.Flags().GetDuration("older-than")
	if maxAge <= 0 {
		if cfg.Ledger.Retention <= 0 {
			return errors.New("ledger.retention is 0 and no --older-than given; nothing to prune")
		}
		maxAge = time.Duration(cfg.Ledger.Retention) * cfg.Ledger.Window
	}
	if maxAge < cfg.Ledger.Window {
		return fmt.Errorf("--older-than %s is shorter than the suppression window %s", maxAge, cfg.Ledger.Window)
	}

	if cfg.Ledger.Lock {
		lock, err := ledger.AcquireLock(cfg.Ledger.Path + ".lock")
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	store, err := initStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	l, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	removed := l.Compact(time.Now(), maxAge)
	if removed == 0 {
		fmt.Printf("Nothing older than %s; %d entries kept.\n", maxAge, len(l))
		return nil
	}

	if err := store.Save(cmd.Context(), l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	fmt.Printf("Pruned %d entries older than %s; %d kept.\n", removed, maxAge, len(l))
	return nil
}

func runLedgerHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	rec, ok := store.(ledger.HistoryRecorder)
	if !ok {
		return fmt.Errorf("ledger backend %q keeps no alert history; use sqlite", cfg.Ledger.Backend)
	}

	entries, err := rec.History(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No alerts sent yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ALERTED\tROUTE\tDEPART\tRETURN\tPRICE\tRUN\n")
	for _, e := range entries {
		ret := e.ReturnDate
		if ret == "" {
			ret = "-"
		}
		fmt.Fprintf(w, "%s\t%s-%s\t%s\t%s\t%s %s\t%s\n",
			formatTime(e.AlertedAt),
			e.Origin, e.Destination,
			e.DepartureDate, ret,
			e.Price.StringFixed(2), e.Currency,
			e.RunID,
		)
	}
	return w.Flush()
}
