package syncer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/creds"
	"dlev/finsync/internal/models"
)

// Report aggregates the results of one coordinated sync request.
type Report struct {
	Results        []Result
	TotalSucceeded int
	TotalFailed    int
	TotalAdded     int
	TotalUpdated   int
}

// Outcome summarizes the report: success when every selected account
// succeeded, failed when all failed, partial otherwise.
func (r *Report) Outcome() string {
	switch {
	case len(r.Results) == 0 || r.TotalFailed == 0:
		return "success"
	case r.TotalSucceeded == 0:
		return "failed"
	default:
		return "partial"
	}
}

// ExitCode maps the outcome to a process exit status: all-failed is the only
// hard failure; partial and full success exit zero.
func (r *Report) ExitCode() int {
	if len(r.Results) > 0 && r.TotalSucceeded == 0 {
		return 1
	}
	return 0
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Success {
		r.TotalSucceeded++
	} else {
		r.TotalFailed++
	}
	r.TotalAdded += res.RecordsAdded
	r.TotalUpdated += res.RecordsUpdated
}

// Coordinator fans the orchestrator out across every configured credential
// set of an institution, strictly in sequence. Sources are stateful
// interactive sessions and institutions dislike concurrent logins, so there
// is deliberately no parallelism here.
type Coordinator struct {
	orch  *Orchestrator
	cfg   *config.Config
	creds *creds.Provider
	log   *logrus.Logger
}

// NewCoordinator wires a coordinator over the given orchestrator and config.
func NewCoordinator(orch *Orchestrator, cfg *config.Config, provider *creds.Provider, log *logrus.Logger) *Coordinator {
	return &Coordinator{orch: orch, cfg: cfg, creds: provider, log: log}
}

// SyncInstitution runs every credential set of one institution (or the one
// matching selector), appending into report. A failed set does not abort the
// ones after it; only a store-level error stops the loop.
func (c *Coordinator) SyncInstitution(ctx context.Context, report *Report, institution models.Institution, selector string, window models.DateRange) error {
	ic, ok := c.cfg.Institution(institution)
	if !ok {
		return fmt.Errorf("institution %s is not configured", institution)
	}
	sets, err := c.creds.ForInstitution(institution)
	if err != nil {
		return err
	}
	sets, err = creds.Select(sets, selector)
	if err != nil {
		return err
	}

	syncType := models.SyncType(ic.Type)
	for _, set := range sets {
		res, err := c.orch.Run(ctx, syncType, institution, set, window)
		if err != nil {
			// Store-level failure: record what we have and abort the run.
			res.Success = false
			if res.ErrorMessage == "" {
				res.ErrorMessage = err.Error()
			}
			report.add(res)
			return err
		}
		report.add(res)
	}
	return nil
}

// SyncAll runs every configured institution in configuration order.
func (c *Coordinator) SyncAll(ctx context.Context, selector string, window models.DateRange) (*Report, error) {
	report := &Report{}
	for _, ic := range c.cfg.Institutions {
		inst := models.Institution(ic.Name)
		if err := c.SyncInstitution(ctx, report, inst, selector, window); err != nil {
			return report, err
		}
	}
	return report, nil
}

// SyncOne runs a single institution and returns its report.
func (c *Coordinator) SyncOne(ctx context.Context, institution models.Institution, selector string, window models.DateRange) (*Report, error) {
	report := &Report{}
	err := c.SyncInstitution(ctx, report, institution, selector, window)
	return report, err
}
