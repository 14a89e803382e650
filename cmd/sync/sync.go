// Package sync implements the sync subcommand.
package sync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dlev/finsync/cmd/root"
	"dlev/finsync/internal/category"
	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/models"
	"dlev/finsync/internal/source"
	"dlev/finsync/internal/syncer"
)

var (
	institution string
	selector    string
	days        int
)

// Cmd represents the sync command.
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch and record data from configured institutions",
	Long: `Sync authenticates against each configured institution, fetches balances
and transactions for the requested window, and records them in the ledger.
Accounts are synced strictly in sequence; a failed account is reported and
does not abort the ones after it.`,
	RunE: runSync,
}

func init() {
	Cmd.Flags().StringVarP(&institution, "institution", "I", "", "Sync only this institution")
	Cmd.Flags().StringVarP(&selector, "account", "a", "", "Credential set selector: label or zero-based index")
	Cmd.Flags().IntVarP(&days, "days", "d", 0, "Fetch window in days (default from config)")
}

func runSync(cmd *cobra.Command, args []string) error {
	if selector != "" && institution == "" {
		return fmt.Errorf("--account requires --institution")
	}

	store, err := root.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	window := models.LastDays(root.Cfg.Sync.DefaultDays)
	if days > 0 {
		window = models.LastDays(days)
	}

	sourceFor := func(inst models.Institution) (source.Source, error) {
		ic, ok := root.Cfg.Institution(inst)
		if !ok {
			return nil, fmt.Errorf("institution %s is not configured", inst)
		}
		return source.ForInstitution(inst, ic.Source, root.Log)
	}
	orch := syncer.NewOrchestrator(store, sourceFor, syncer.RetryPolicy{
		MaxAttempts:  root.Cfg.Retry.MaxAttempts,
		InitialDelay: time.Duration(root.Cfg.Retry.InitialDelayMS) * time.Millisecond,
	}, root.Log)
	coord := syncer.NewCoordinator(orch, root.Cfg, creds.NewProvider(root.Cfg), root.Log)

	var report *syncer.Report
	if institution != "" {
		report, err = coord.SyncOne(cmd.Context(), models.Institution(institution), selector, window)
	} else {
		report, err = coord.SyncAll(cmd.Context(), "", window)
	}
	if err != nil {
		return err
	}

	printReport(report)

	// Fill the derived category tier for whatever the run brought in.
	mappings, err := category.LoadMappings(root.Cfg.Mappings.File)
	if err != nil {
		root.Log.WithError(err).Warn("Could not load category mappings, skipping mapping pass")
	} else if _, err := category.Apply(cmd.Context(), store, mappings, root.Log); err != nil {
		root.Log.WithError(err).Warn("Category mapping pass failed")
	}

	if report.ExitCode() != 0 {
		return fmt.Errorf("sync failed for every selected account")
	}
	return nil
}

func printReport(report *syncer.Report) {
	for _, res := range report.Results {
		log := root.Log.WithField("institution", res.Institution)
		if res.Label != "" {
			log = log.WithField("label", res.Label)
		}
		if res.Success {
			log.Infof("OK: %d accounts, %d added, %d updated, %d skipped",
				res.AccountsSynced, res.RecordsAdded, res.RecordsUpdated, res.RecordsSkipped)
		} else {
			log.Warnf("FAILED: %s", res.ErrorMessage)
		}
	}
	root.Log.Infof("Sync %s: %d succeeded, %d failed, %d added, %d updated",
		report.Outcome(), report.TotalSucceeded, report.TotalFailed, report.TotalAdded, report.TotalUpdated)
}
