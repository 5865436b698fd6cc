package executors

import (
	"github.com/yurifrl/planillas/pkg/models"
)

// Status is what applying a run would do.
type Status int

const (
	// Pending runs will be reconciled and recorded.
	Pending Status = iota
	// Recorded runs already have a reconciliation for their date and are
	// skipped unless forced.
	Recorded
	// Failed runs cannot be reconciled as configured.
	Failed
)

func (s Status) String() string {
	switch s {
	case Recorded:
		return "recorded"
	case Failed:
		return "failed"
	}
	return "pending"
}

// Entry is the preview of one manifest run.
type Entry struct {
	Name   string
	AsOf   string
	Output string
	Stats  models.Statistics
	Status Status
	Err    error
}

type Report struct {
	Items []Entry
}

func (r *Report) count(s Status) int {
	n := 0
	for _, e := range r.Items {
		if e.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) PendingCount() int {
	return r.count(Pending)
}

func (r *Report) RecordedCount() int {
	return r.count(Recorded)
}

func (r *Report) FailedCount() int {
	return r.count(Failed)
}

// Totals adds up the statistics of every run that would be applied.
func (r *Report) Totals() models.Statistics {
	var t models.Statistics
	for _, e := range r.Items {
		if e.Status != Pending {
			continue
		}
		t.MatchesFound += e.Stats.MatchesFound
		for _, b := range models.Buckets {
			t.SetCount(b, t.Count(b)+e.Stats.Count(b))
		}
		t.TotalDetailFiles += e.Stats.TotalDetailFiles
		t.ErrorCount += e.Stats.ErrorCount
	}
	return t
}
