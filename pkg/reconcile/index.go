package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/parser"
)

// Lookup resolves a ledger key to its detail amounts.
type Lookup interface {
	Lookup(key string) (*models.AmountRecord, bool)
}

// Index maps keys to the amounts of the detail file that carries them.
// It is built once per run and read-only afterwards.
type Index struct {
	records      map[string]*models.AmountRecord
	FilesScanned int
	Errors       models.Diagnostics
}

func (ix *Index) Lookup(key string) (*models.AmountRecord, bool) {
	r, ok := ix.records[key]
	return r, ok
}

func (ix *Index) Len() int {
	return len(ix.records)
}

// Keys returns the indexed keys in ascending order.
func (ix *Index) Keys() []string {
	keys := make([]string, 0, len(ix.records))
	for k := range ix.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Records returns every indexed record ordered by key.
func (ix *Index) Records() []*models.AmountRecord {
	out := make([]*models.AmountRecord, 0, len(ix.records))
	for _, k := range ix.Keys() {
		out = append(out, ix.records[k])
	}
	return out
}

// BuildIndex walks root recursively and indexes every detail file p selects.
// Files that cannot be used are recorded in Errors and skipped; every
// selected file counts towards FilesScanned. A later file with the same key
// replaces the earlier one.
func BuildIndex(logger *log.Logger, p *parser.Parser, root string) (*Index, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return &Index{records: map[string]*models.AmountRecord{}}, fmt.Errorf("%s: %w", root, ErrDetailDirNotFound)
	}

	ix := &Index{records: make(map[string]*models.AmountRecord)}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			ix.Errors = append(ix.Errors, models.Diagnostic{Kind: models.KindReadError, File: path, Detail: walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !p.Selects(d.Name()) {
			return nil
		}

		ix.FilesScanned++
		data, err := os.ReadFile(path)
		if err != nil {
			ix.Errors = append(ix.Errors, models.Diagnostic{Kind: models.KindReadError, File: d.Name(), Detail: err.Error()})
			return nil
		}

		rec, warnings, err := p.ParseDetail(data, d.Name())
		ix.Errors = append(ix.Errors, warnings...)
		if err != nil {
			var derr *parser.DetailError
			if errors.As(err, &derr) {
				ix.Errors = append(ix.Errors, models.Diagnostic{Kind: derr.Kind, File: d.Name(), Detail: derr.Detail})
			} else {
				ix.Errors = append(ix.Errors, models.Diagnostic{Kind: models.KindReadError, File: d.Name(), Detail: err.Error()})
			}
			logger.Debug("skipped detail file", "file", d.Name(), "error", err)
			return nil
		}

		if prev, ok := ix.records[rec.Key]; ok {
			logger.Warn("duplicate detail key", "key", rec.Key, "file", rec.SourceFile, "replaces", prev.SourceFile)
			ix.Errors = append(ix.Errors, models.Diagnostic{
				Kind:   models.KindDuplicateKey,
				Key:    rec.Key,
				File:   rec.SourceFile,
				Detail: prev.SourceFile,
			})
		}
		ix.records[rec.Key] = rec
		return nil
	})
	if err != nil {
		return ix, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	logger.Info("indexed detail files", "root", root, "scanned", ix.FilesScanned, "indexed", ix.Len(), "errors", len(ix.Errors))
	return ix, nil
}
