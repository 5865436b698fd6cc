// Package history records finished reconciliation and extraction runs so a
// batch date is not reconciled twice by accident.
package history

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"time"

	"github.com/yurifrl/planillas/pkg/models"
)

var ErrNotFound = errors.New("run not found")

type Status string

const StatusCompleted Status = "COMPLETADO"

// DefaultLimit is the page size of List when the caller passes zero.
const DefaultLimit = 50

// Run is one recorded reconciliation.
type Run struct {
	ID          uint64            `json:"id" yaml:"id"`
	AsOf        string            `json:"fecha_archivos" yaml:"fecha_archivos"`
	ProcessedAt time.Time         `json:"fecha_procesamiento" yaml:"fecha_procesamiento"`
	LedgerName  string            `json:"archivo_log_nombre" yaml:"archivo_log_nombre"`
	LedgerSize  int64             `json:"archivo_log_tamano" yaml:"archivo_log_tamano"`
	Months      int               `json:"meses_referencia" yaml:"meses_referencia"`
	Preset      string            `json:"preset" yaml:"preset"`
	Stats       models.Statistics `json:"estadisticas" yaml:"estadisticas"`
	ArchivePath string            `json:"archivo_resultado_zip" yaml:"archivo_resultado_zip"`
	Status      Status            `json:"estado" yaml:"estado"`
}

// Extraction is one recorded planilla header extraction.
type Extraction struct {
	ID          uint64    `json:"id" yaml:"id"`
	AsOf        string    `json:"fecha_archivos" yaml:"fecha_archivos"`
	ProcessedAt time.Time `json:"fecha_procesamiento" yaml:"fecha_procesamiento"`
	Files       int       `json:"archivos" yaml:"archivos"`
	Records     int       `json:"registros" yaml:"registros"`
	HasCruce    bool      `json:"tiene_cruce_log" yaml:"tiene_cruce_log"`
	OutputPath  string    `json:"archivo_resultado" yaml:"archivo_resultado"`
}

// Store persists runs keyed by the as-of date of their files.
type Store interface {
	Exists(ctx context.Context, asOf string) (bool, error)
	Latest(ctx context.Context, asOf string) (*Run, error)
	Save(ctx context.Context, run *Run) (uint64, error)
	List(ctx context.Context, limit int) ([]Run, error)
	SaveExtraction(ctx context.Context, e *Extraction) (uint64, error)
	Close() error
}

var datePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

// DateFromName returns the YYYY-MM-DD date a file name starts with.
func DateFromName(name string) (string, bool) {
	m := datePrefix.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", m[1]); err != nil {
		return "", false
	}
	return m[1], true
}

// AsOfDate returns the latest date carried by the given file names.
func AsOfDate(names []string) (string, bool) {
	latest := ""
	for _, n := range names {
		if d, ok := DateFromName(n); ok && d > latest {
			latest = d
		}
	}
	return latest, latest != ""
}
