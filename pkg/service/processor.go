// Package service runs one reconciliation or planilla extraction end to
// end over files already staged on disk.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/archive"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/importer"
	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/planilla"
	"github.com/yurifrl/planillas/pkg/reconcile"
)

var (
	ErrAlreadyProcessed = errors.New("ya existe un cruce para la fecha")
	ErrNoCruce          = errors.New("no se encontró cruce LOG bancario para la fecha")
)

// Input names the files of one run.
type Input struct {
	LedgerPath  string
	LedgerName  string
	LedgerSize  int64
	DetailDir   string
	DetailFiles []string
}

// InputFromRun describes a staged importer run.
func InputFromRun(run *importer.Run) Input {
	return Input{
		LedgerPath:  run.LedgerPath,
		LedgerName:  run.LedgerName,
		LedgerSize:  run.LedgerSize,
		DetailDir:   run.DetailDir(),
		DetailFiles: run.Files,
	}
}

// InputFromPaths describes files already on disk. A missing ledger or
// directory is left for the engine to report.
func InputFromPaths(ledgerPath, detailDir string) Input {
	in := Input{LedgerPath: ledgerPath, LedgerName: filepath.Base(ledgerPath), DetailDir: detailDir}
	if fi, err := os.Stat(ledgerPath); err == nil {
		in.LedgerSize = fi.Size()
	}
	_ = filepath.WalkDir(detailDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			in.DetailFiles = append(in.DetailFiles, d.Name())
		}
		return nil
	})
	return in
}

// Options controls one reconciliation.
type Options struct {
	Months int
	// Persist records the run in the history store.
	Persist bool
	// Force reconciles a date that was already recorded.
	Force bool
	// OutputPath, when set, receives the archive.
	OutputPath string
	Now        time.Time
}

// Outcome is a finished reconciliation.
type Outcome struct {
	Result  *reconcile.Result
	Archive []byte
	Stats   models.Statistics
	AsOf    string
	RunID   uint64
	Saved   bool
}

type Processor struct {
	logger    *log.Logger
	engine    *reconcile.Engine
	packager  *archive.Packager
	extractor *planilla.Extractor
	history   history.Store
	monthDays int
}

// NewProcessor wires a processor. store may be nil, which disables every
// history check and write.
func NewProcessor(logger *log.Logger, engine *reconcile.Engine, packager *archive.Packager, extractor *planilla.Extractor, store history.Store, monthDays int) *Processor {
	return &Processor{
		logger:    logger,
		engine:    engine,
		packager:  packager,
		extractor: extractor,
		history:   store,
		monthDays: monthDays,
	}
}

func (p *Processor) Engine() *reconcile.Engine {
	return p.engine
}

func (p *Processor) Extractor() *planilla.Extractor {
	return p.extractor
}

// AsOf returns the date carried by the detail files of in.
func (p *Processor) AsOf(in Input) string {
	d, _ := history.AsOfDate(in.DetailFiles)
	return d
}

// Reconcile runs the engine over in, packages the result and optionally
// records it. A fatal engine error still returns the outcome with the
// statistics the engine gathered.
func (p *Processor) Reconcile(ctx context.Context, in Input, opts Options) (*Outcome, error) {
	out := &Outcome{AsOf: p.AsOf(in)}

	if p.history != nil && opts.Persist && !opts.Force && out.AsOf != "" {
		exists, err := p.history.Exists(ctx, out.AsOf)
		if err != nil {
			return nil, fmt.Errorf("failed to check history: %w", err)
		}
		if exists {
			return out, fmt.Errorf("%w %s", ErrAlreadyProcessed, out.AsOf)
		}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := reconcile.Cutoff(now, opts.Months, p.monthDays)
	p.logger.Info("reconciling", "ledger", in.LedgerName, "details", in.DetailDir, "as_of", out.AsOf, "cutoff", cutoff.Format("2006-01-02"))

	res, runErr := p.engine.Run(in.LedgerPath, in.DetailDir, cutoff)
	out.Result = res
	if res != nil {
		out.Stats = res.Stats
	}
	if runErr != nil {
		return out, runErr
	}

	data, stats, err := p.packager.Package(res)
	if err != nil {
		return out, fmt.Errorf("failed to package result: %w", err)
	}
	out.Archive, out.Stats = data, stats

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, data, 0o644); err != nil {
			return out, fmt.Errorf("failed to write %s: %w", opts.OutputPath, err)
		}
	}

	if p.history != nil && opts.Persist {
		id, err := p.history.Save(ctx, &history.Run{
			AsOf:        out.AsOf,
			LedgerName:  in.LedgerName,
			LedgerSize:  in.LedgerSize,
			Months:      opts.Months,
			Preset:      p.engine.Preset().Name,
			Stats:       stats,
			ArchivePath: opts.OutputPath,
		})
		if err != nil {
			p.logger.Error("failed to record run", "as_of", out.AsOf, "err", err)
		} else {
			out.RunID, out.Saved = id, true
		}
	}
	return out, nil
}

// LedgerCheck describes the uploaded ledger before a run.
type LedgerCheck struct {
	Name  string `json:"nombre"`
	Size  int64  `json:"tamano"`
	Lines int    `json:"lineas_estimadas"`
	Valid bool   `json:"valido"`
}

// DetailCheck describes the uploaded detail files before a run.
type DetailCheck struct {
	Total   int      `json:"total"`
	TypeI   int      `json:"archivos_tipo_i"`
	Valid   []string `json:"archivos_validos"`
	Invalid []string `json:"archivos_invalidos"`
}

// Validation is the answer of Validate.
type Validation struct {
	Ledger           LedgerCheck `json:"archivo_log"`
	Details          DetailCheck `json:"archivos_txt"`
	AsOf             string      `json:"fecha_archivos,omitempty"`
	AlreadyProcessed bool        `json:"ya_procesado"`
}

// Validate inspects in without reconciling it. A ledger is plausible when
// it has more lines than the layout's header.
func (p *Processor) Validate(ctx context.Context, in Input) (*Validation, error) {
	v := &Validation{AsOf: p.AsOf(in)}
	v.Ledger = LedgerCheck{Name: in.LedgerName, Size: in.LedgerSize}
	if data, err := os.ReadFile(in.LedgerPath); err == nil {
		text, _ := fixedwidth.Latin1.Decode(data)
		v.Ledger.Lines = len(fixedwidth.SplitLines(text))
		v.Ledger.Valid = v.Ledger.Lines > p.engine.Preset().Ledger.HeaderLines
	}

	v.Details = DetailCheck{Total: len(in.DetailFiles), Valid: []string{}, Invalid: []string{}}
	for _, name := range in.DetailFiles {
		if p.engine.Selects(name) {
			v.Details.TypeI++
			v.Details.Valid = append(v.Details.Valid, name)
		} else {
			v.Details.Invalid = append(v.Details.Invalid, name+" (no es tipo I o formato incorrecto)")
		}
	}

	if p.history != nil && v.AsOf != "" {
		exists, err := p.history.Exists(ctx, v.AsOf)
		if err != nil {
			return nil, fmt.Errorf("failed to check history: %w", err)
		}
		v.AlreadyProcessed = exists
	}
	return v, nil
}

// Extraction is a finished planilla extraction.
type Extraction struct {
	Records  []models.Planilla
	Failures []planilla.Failure
	AsOf     string
	HasCruce bool
}

// Extract reads the planilla headers of the type I files under dir. Unless
// confirmed, it refuses dates that were never reconciled, since their
// amounts were not checked against the bank.
func (p *Processor) Extract(ctx context.Context, dir string, names []string, confirmed bool) (*Extraction, error) {
	var typeI []string
	for _, n := range names {
		if p.engine.Selects(n) {
			typeI = append(typeI, n)
		}
	}
	out := &Extraction{}
	out.AsOf, _ = history.AsOfDate(typeI)

	if p.history != nil && out.AsOf != "" {
		exists, err := p.history.Exists(ctx, out.AsOf)
		if err != nil {
			return nil, fmt.Errorf("failed to check history: %w", err)
		}
		out.HasCruce = exists
	}
	if !out.HasCruce && !confirmed {
		date := out.AsOf
		if date == "" {
			date = "No identificada"
		}
		return out, fmt.Errorf("%w %s", ErrNoCruce, date)
	}

	records, failures, err := p.extractor.ExtractDir(dir, p.engine.Selects)
	if err != nil {
		return nil, err
	}
	out.Records, out.Failures = records, failures
	return out, nil
}

// RecordExtraction stores a finished extraction in the history.
func (p *Processor) RecordExtraction(ctx context.Context, ex *Extraction, files int, outputPath string) {
	if p.history == nil {
		return
	}
	_, err := p.history.SaveExtraction(ctx, &history.Extraction{
		AsOf:       ex.AsOf,
		Files:      files,
		Records:    len(ex.Records),
		HasCruce:   ex.HasCruce,
		OutputPath: outputPath,
	})
	if err != nil {
		p.logger.Error("failed to record extraction", "as_of", ex.AsOf, "err", err)
	}
}

// History lists recorded runs, newest first.
func (p *Processor) History(ctx context.Context, limit int) ([]history.Run, error) {
	if p.history == nil {
		return []history.Run{}, nil
	}
	return p.history.List(ctx, limit)
}

// Verify returns the latest run recorded for date.
func (p *Processor) Verify(ctx context.Context, date string) (*history.Run, error) {
	if p.history == nil {
		return nil, history.ErrNotFound
	}
	return p.history.Latest(ctx, strings.TrimSpace(date))
}
