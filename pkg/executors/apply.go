package executors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yurifrl/planillas/pkg/plan"
	"github.com/yurifrl/planillas/pkg/service"
)

// Apply reconciles every run of the manifest, writes its archive and records
// it in the history. Runs whose date is already recorded are skipped unless
// forced. The first failing run stops the manifest.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan) (*Report, error) {
	e.logger.Debug("applying manifest", "runs", len(p.Runs))
	report := &Report{}

	for _, run := range p.Runs {
		entry := Entry{Name: run.Name, Output: run.Output}
		proc, err := e.processor(run)
		if err != nil {
			return report, err
		}
		if run.Output != "" {
			if err := os.MkdirAll(filepath.Dir(run.Output), 0o755); err != nil {
				return report, fmt.Errorf("run %s: %w", run.Name, err)
			}
		}

		out, err := proc.Reconcile(ctx, service.InputFromPaths(run.Ledger, run.Details), service.Options{
			Months:     run.MonthsOr(e.config.Cruce.Months),
			Persist:    true,
			Force:      run.Force,
			OutputPath: run.Output,
		})
		if out != nil {
			entry.AsOf, entry.Stats = out.AsOf, out.Stats
		}
		if errors.Is(err, service.ErrAlreadyProcessed) {
			e.logger.Warn("skipping recorded run", "run", run.Name, "as_of", entry.AsOf)
			entry.Status = Recorded
			report.Items = append(report.Items, entry)
			continue
		}
		if err != nil {
			entry.Status, entry.Err = Failed, err
			report.Items = append(report.Items, entry)
			return report, fmt.Errorf("run %s: %w", run.Name, err)
		}

		e.logger.Info("applied run", "run", run.Name, "as_of", entry.AsOf, "output", run.Output, "matches", entry.Stats.MatchesFound)
		report.Items = append(report.Items, entry)
	}
	return report, nil
}
