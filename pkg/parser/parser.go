package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/compare"
	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
)

type FileType string

const (
	TypeI   FileType = "I"
	TypeA   FileType = "A"
	Unknown FileType = ""
)

var (
	ErrTooFewLines = errors.New("too few lines")
	ErrBadAmount   = errors.New("bad amount")
)

// DetailError explains why a detail file was left out of the index.
type DetailError struct {
	Kind   models.DiagnosticKind
	Detail string
	Err    error
}

func (e *DetailError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *DetailError) Unwrap() error {
	return e.Err
}

// Parser reads type I detail files with one layout preset.
type Parser struct {
	logger  *log.Logger
	preset  layout.Preset
	keys    KeyExtractor
	charset fixedwidth.Charset
}

func New(logger *log.Logger, preset layout.Preset) (*Parser, error) {
	keys, err := NewKeyExtractor(preset.Key)
	if err != nil {
		return nil, err
	}
	return &Parser{
		logger:  logger,
		preset:  preset,
		keys:    keys,
		charset: fixedwidth.Latin1,
	}, nil
}

// Preset returns the layout the parser was built with.
func (p *Parser) Preset() layout.Preset {
	return p.preset
}

// DetectType tells type I and type A planilla files apart by name.
func DetectType(filename string) FileType {
	name := strings.ToUpper(filepath.Base(filename))
	switch {
	case strings.Contains(name, "_I_"):
		return TypeI
	case strings.Contains(name, "_A_"):
		return TypeA
	}
	return Unknown
}

// Selects reports whether filename is a detail file for this layout: it
// carries the type marker and an allowed extension, compared case-insensitively.
func (p *Parser) Selects(filename string) bool {
	name := filepath.Base(filename)
	if !strings.Contains(name, p.preset.Detail.TypeMarker) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return slices.ContainsFunc(p.preset.Detail.Extensions, func(allowed string) bool {
		return strings.ToLower(allowed) == ext
	})
}

// ParseDetail reads the amounts of one detail file. Warnings are returned
// for records that are still usable; a *DetailError rejects the file.
func (p *Parser) ParseDetail(data []byte, filename string) (*models.AmountRecord, models.Diagnostics, error) {
	name := filepath.Base(filename)

	text, err := p.charset.Decode(data)
	if err != nil {
		return nil, nil, &DetailError{Kind: models.KindReadError, Detail: err.Error(), Err: err}
	}
	lines := fixedwidth.SplitLines(text)
	if len(lines) < p.preset.Detail.MinLines {
		return nil, nil, &DetailError{Kind: models.KindTooFewLines, Detail: strconv.Itoa(len(lines)), Err: ErrTooFewLines}
	}

	key, err := p.keys.Extract(name)
	if err != nil {
		return nil, nil, &DetailError{Kind: models.KindKeyNotFound, Err: err}
	}

	rec := &models.AmountRecord{Key: key, SourceFile: name}
	switch p.preset.Detail.Mode {
	case layout.AmountDigits:
		err = p.digitAmounts(lines, rec)
	default:
		err = p.windowAmounts(lines, rec)
	}
	if err != nil {
		return nil, nil, &DetailError{Kind: models.KindBadAmount, Detail: err.Error(), Err: ErrBadAmount}
	}

	p.logger.Debug("parsed detail file", "file", name, "key", key, "capital", rec.Capital, "interest", rec.Interest)

	var warnings models.Diagnostics
	if !compare.Totals(rec) {
		warnings = append(warnings, models.Diagnostic{
			Kind:   models.KindTotalMismatch,
			Key:    key,
			File:   name,
			Detail: compare.TotalsDetail(rec),
		})
	}
	return rec, warnings, nil
}

func lineOf(lines []string, w layout.Window) string {
	return w.Extract(lines[w.Line-1])
}

// digitAmounts takes capital from the tail of an all-digit capital line
// (10 digits, or 5 on short lines) and interest from an all-digit interest
// line of at least 3 digits, however long. Anything else counts as zero.
func (p *Parser) digitAmounts(lines []string, rec *models.AmountRecord) error {
	capLine := lineOf(lines, p.preset.Detail.Capital)
	if fixedwidth.IsDigits(capLine) && len(capLine) >= 5 {
		tail := capLine[len(capLine)-5:]
		if len(capLine) >= 10 {
			tail = capLine[len(capLine)-10:]
		}
		v, err := fixedwidth.ParseAmount(tail)
		if err != nil {
			return fmt.Errorf("capital: %w", err)
		}
		rec.Capital = v
	}

	intLine := lineOf(lines, p.preset.Detail.Interest)
	if fixedwidth.IsDigits(intLine) && len(intLine) >= 3 {
		v, err := fixedwidth.ParseAmountTail(intLine)
		if err != nil {
			return fmt.Errorf("interés: %w", err)
		}
		if v > 0 {
			rec.Interest = v
		}
	}
	return nil
}

func (p *Parser) windowAmounts(lines []string, rec *models.AmountRecord) error {
	var err error
	if rec.Capital, err = fixedwidth.ParseAmount(lineOf(lines, p.preset.Detail.Capital)); err != nil {
		return fmt.Errorf("capital: %w", err)
	}
	if rec.Interest, err = fixedwidth.ParseAmount(lineOf(lines, p.preset.Detail.Interest)); err != nil {
		return fmt.Errorf("interés: %w", err)
	}
	if t := p.preset.Detail.Total; t != nil {
		if rec.Total, err = fixedwidth.ParseAmount(lineOf(lines, *t)); err != nil {
			return fmt.Errorf("total: %w", err)
		}
		rec.HasTotal = true
	}
	return nil
}
