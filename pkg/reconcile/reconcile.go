// Package reconcile cross-matches a bank settlement ledger (LOG) against
// the type I detail files of a contribution batch. Matched ledger lines are
// rewritten with the authoritative capital and interest amounts and routed
// into four buckets by amount kind and recency. Each non-empty bucket gets
// trailer lines with its row count and amount sum.
//
// A run is self-contained: the index, buckets and diagnostics live only
// for the duration of Run, so concurrent runs share nothing.
package reconcile

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/parser"
)

var (
	ErrLedgerNotFound    = errors.New("ledger file not found")
	ErrDetailDirNotFound = errors.New("detail directory not found")
)

// DefaultMonthDays is the length of a month when computing the cutoff.
const DefaultMonthDays = 30

// Cutoff returns the first calendar day counted as current: the date of
// now minus months periods of monthDays days.
func Cutoff(now time.Time, months, monthDays int) time.Time {
	if monthDays <= 0 {
		monthDays = DefaultMonthDays
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -months*monthDays)
}

// Result is everything a run produces.
type Result struct {
	Buckets     [4][]string
	Controls    [4][]string
	Diagnostics models.Diagnostics
	Stats       models.Statistics
	EOL         string
	Cutoff      time.Time
	// DetailFiles lists the base names of every indexed detail file.
	DetailFiles []string
}

// Lines returns the rewritten lines of bucket b.
func (r *Result) Lines(b models.Bucket) []string {
	return r.Buckets[b]
}

// Empty reports whether no bucket received a line.
func (r *Result) Empty() bool {
	for _, b := range r.Buckets {
		if len(b) > 0 {
			return false
		}
	}
	return true
}

// Engine runs reconciliations with one layout preset.
type Engine struct {
	logger     *log.Logger
	preset     layout.Preset
	parser     *parser.Parser
	classifier *Classifier
	control    *ControlGenerator
}

func New(logger *log.Logger, preset layout.Preset) (*Engine, error) {
	if err := preset.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout %q: %w", preset.Name, err)
	}
	p, err := parser.New(logger, preset)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:     logger,
		preset:     preset,
		parser:     p,
		classifier: NewClassifier(logger, preset.Ledger),
		control:    NewControlGenerator(preset.Control, preset.Ledger.Amount),
	}, nil
}

// Preset returns the layout of the engine.
func (e *Engine) Preset() layout.Preset {
	return e.preset
}

// Control returns the trailer generator of the engine.
func (e *Engine) Control() *ControlGenerator {
	return e.control
}

// Selects reports whether name is a detail file for the engine's layout.
func (e *Engine) Selects(name string) bool {
	return e.parser.Selects(name)
}

// Index builds the detail index of root with the engine's layout.
func (e *Engine) Index(root string) (*Index, error) {
	return BuildIndex(e.logger, e.parser, root)
}

// Run reconciles ledgerPath against the detail files under detailRoot.
//
// A missing detail directory or ledger file ends the run early with an
// empty result whose statistics still carry the file and error counts; the
// matching sentinel error is returned alongside it.
func (e *Engine) Run(ledgerPath, detailRoot string, cutoff time.Time) (*Result, error) {
	res := &Result{EOL: "\n", Cutoff: cutoff}

	ix, err := e.Index(detailRoot)
	if err != nil {
		res.Diagnostics = append(ix.Errors, models.Diagnostic{Kind: models.KindFatal, Detail: err.Error()})
		res.Stats = models.Statistics{TotalDetailFiles: ix.FilesScanned, ErrorCount: len(res.Diagnostics)}
		e.logger.Error("reconciliation aborted", "error", err)
		return res, err
	}
	for _, rec := range ix.Records() {
		res.DetailFiles = append(res.DetailFiles, rec.SourceFile)
	}

	f, err := os.Open(ledgerPath)
	if err != nil {
		err = fmt.Errorf("%s: %w", ledgerPath, ErrLedgerNotFound)
		res.Diagnostics = append(ix.Errors, models.Diagnostic{Kind: models.KindFatal, Detail: err.Error()})
		res.Stats = models.Statistics{TotalDetailFiles: ix.FilesScanned, ErrorCount: len(res.Diagnostics)}
		e.logger.Error("reconciliation aborted", "error", err)
		return res, err
	}
	defer f.Close()

	cls, err := e.classifier.ClassifyReader(f, ix, cutoff)
	if err != nil {
		// a ledger that cannot be read in full produces nothing
		res.Diagnostics = append(ix.Errors, models.Diagnostic{Kind: models.KindFatal, Detail: err.Error()})
		res.Stats = models.Statistics{TotalDetailFiles: ix.FilesScanned, ErrorCount: len(res.Diagnostics)}
		return res, err
	}

	res.Buckets = cls.Buckets
	res.EOL = cls.EOL
	res.Diagnostics = append(cls.Diagnostics, ix.Errors...)
	for _, b := range models.Buckets {
		res.Controls[b] = e.control.Generate(res.Buckets[b])
		res.Stats.SetCount(b, len(res.Buckets[b]))
	}
	res.Stats.MatchesFound = cls.Matches
	res.Stats.TotalDetailFiles = ix.FilesScanned
	res.Stats.ErrorCount = len(res.Diagnostics)

	e.logger.Info("reconciliation finished",
		"ledger", ledgerPath,
		"matches", res.Stats.MatchesFound,
		"capital_actual", res.Stats.CapitalCurrent,
		"capital_anterior", res.Stats.CapitalPrior,
		"interes_actual", res.Stats.InterestCurrent,
		"interes_anterior", res.Stats.InterestPrior,
		"errors", res.Stats.ErrorCount,
	)
	return res, nil
}
