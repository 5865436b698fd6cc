// Package planilla extracts the header data of type I contribution returns
// and exports it as a spreadsheet.
package planilla

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
)

var ErrTooFewLines = errors.New("too few lines")

// Failure is a file that could not be extracted.
type Failure struct {
	File string `json:"archivo"`
	Err  error  `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.File, f.Err)
}

type Extractor struct {
	logger   *log.Logger
	layout   layout.Planilla
	repairer *fixedwidth.Repairer
}

// New returns an Extractor. A nil Repairer leaves the text as decoded.
func New(logger *log.Logger, l layout.Planilla, r *fixedwidth.Repairer) *Extractor {
	return &Extractor{logger: logger, layout: l, repairer: r}
}

// Columns lists the output columns: the source file, then every field.
func (e *Extractor) Columns() []string {
	return append([]string{models.FileColumn}, e.layout.Columns()...)
}

// Lines decodes and repairs a planilla file and keeps the lines that carry
// data. Long files interleave detail lines with the header, aporte, mora
// and total lines; those are moved to the front. Field offsets apply to the
// repaired text.
func (e *Extractor) Lines(data []byte) []string {
	text, _ := fixedwidth.DecodeAuto(data)
	text = e.repairer.Repair(text)
	lines := fixedwidth.SplitLines(text)
	if e.layout.ReorderFrom > 0 && len(lines) >= e.layout.ReorderFrom {
		picked := make([]string, 0, len(lines))
		for _, i := range e.layout.Reorder {
			picked = append(picked, lines[i])
		}
		lines = append(picked, lines[e.layout.ReorderFrom:]...)
	}
	return lines
}

// Extract decodes the header fields of one planilla file.
func (e *Extractor) Extract(data []byte, filename string) (*models.Planilla, error) {
	lines := e.Lines(data)
	schemas := e.layout.Schemas()
	need := e.layout.MinLines
	if need < len(schemas) {
		need = len(schemas)
	}
	if len(lines) < need {
		return nil, fmt.Errorf("%s has %d lines: %w", filename, len(lines), ErrTooFewLines)
	}

	p := &models.Planilla{File: filepath.Base(filename)}
	for i, schema := range schemas {
		line := strings.TrimSpace(lines[i])
		p.Fields = append(p.Fields, fixedwidth.Decode(line, schema)...)
	}
	return p, nil
}

// ExtractDir extracts every file under root accepted by selects, in name
// order. Files that fail are reported and skipped.
func (e *Extractor) ExtractDir(root string, selects func(name string) bool) ([]models.Planilla, []Failure, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (selects == nil || selects(d.Name())) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Slice(paths, func(i, j int) bool { return filepath.Base(paths[i]) < filepath.Base(paths[j]) })

	var records []models.Planilla
	var failures []Failure
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err == nil {
			var p *models.Planilla
			if p, err = e.Extract(data, path); err == nil {
				records = append(records, *p)
				continue
			}
		}
		e.logger.Warn("skipping planilla", "file", filepath.Base(path), "err", err)
		failures = append(failures, Failure{File: filepath.Base(path), Err: err})
	}
	e.logger.Info("extracted planillas", "root", root, "records", len(records), "failed", len(failures))
	return records, failures, nil
}
