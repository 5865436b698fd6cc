package executors

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/yurifrl/planillas/pkg/plan"
	"github.com/yurifrl/planillas/pkg/service"
)

// Plan reconciles every run of the manifest in memory and reports what
// Apply would do. Nothing is written or recorded.
func (e *Executor) Plan(ctx context.Context, p *plan.Plan) (*Report, error) {
	report := &Report{}
	for _, run := range p.Runs {
		e.logger.Debug("planning run", "run", run.Name, "ledger", run.Ledger)
		entry := Entry{Name: run.Name, Output: run.Output}

		proc, err := e.processor(run)
		if err != nil {
			entry.Status, entry.Err = Failed, err
			report.Items = append(report.Items, entry)
			continue
		}

		in := service.InputFromPaths(run.Ledger, run.Details)
		entry.AsOf = proc.AsOf(in)
		if e.history != nil && entry.AsOf != "" && !run.Force {
			exists, err := e.history.Exists(ctx, entry.AsOf)
			if err != nil {
				return nil, err
			}
			if exists {
				entry.Status = Recorded
			}
		}

		out, err := proc.Reconcile(ctx, in, service.Options{Months: run.MonthsOr(e.config.Cruce.Months)})
		if out != nil {
			entry.Stats = out.Stats
		}
		if err != nil {
			entry.Status, entry.Err = Failed, err
		}
		report.Items = append(report.Items, entry)
	}
	return report, nil
}

// Print renders a coloured preview of report.
func Print(w io.Writer, report *Report) {
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	recordedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray
	failedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))   // red

	for _, it := range report.Items {
		s := it.Stats
		line := fmt.Sprintf("%-20s | %-10s | matches %5d | CA %5d | CP %5d | IA %5d | IP %5d | errores %4d",
			it.Name, it.AsOf, s.MatchesFound, s.CapitalCurrent, s.CapitalPrior, s.InterestCurrent, s.InterestPrior, s.ErrorCount)
		switch it.Status {
		case Recorded:
			fmt.Fprintln(w, recordedStyle.Render("= "+line))
		case Failed:
			fmt.Fprintln(w, failedStyle.Render(fmt.Sprintf("! %-20s | %v", it.Name, it.Err)))
		default:
			fmt.Fprintln(w, pendingStyle.Render("+ "+line))
		}
	}

	if report.PendingCount() == 0 {
		fmt.Fprintf(w, "\nPlan: nothing to apply (%d already recorded, %d failed)\n", report.RecordedCount(), report.FailedCount())
		return
	}
	fmt.Fprintf(w, "\nPlan: %d run(s) will be applied, %d already recorded, %d failed\n",
		report.PendingCount(), report.RecordedCount(), report.FailedCount())
}
