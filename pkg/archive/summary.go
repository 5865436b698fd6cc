package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/reconcile"
)

// EntrySummary describes one bucket file of an archive.
type EntrySummary struct {
	Name       string          `json:"name" yaml:"name"`
	Lines      int             `json:"lines" yaml:"lines"`
	Records    int64           `json:"records" yaml:"records"`
	Value      decimal.Decimal `json:"value" yaml:"value"`
	HasControl bool            `json:"has_control" yaml:"has_control"`
}

// Summary is what can be recovered from a result archive alone.
type Summary struct {
	Entries []EntrySummary `json:"entries" yaml:"entries"`
	Errors  int            `json:"errores" yaml:"errores"`
}

// Statistics maps the summary back onto run statistics. Matches and the
// detail file count are not recorded in an archive and stay zero.
func (s *Summary) Statistics() models.Statistics {
	var st models.Statistics
	for _, e := range s.Entries {
		for _, b := range models.Buckets {
			if e.Name == b.FileName() {
				st.SetCount(b, int(e.Records))
			}
		}
	}
	st.ErrorCount = s.Errors
	return st
}

// ReadStatistics opens a result archive and reads the trailer record of
// every bucket file and the number of entries in the diagnostics file.
func ReadStatistics(data []byte, control layout.Control, charset fixedwidth.Charset) (*Summary, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	s := &Summary{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		text, err := charset.Decode(raw)
		if err != nil {
			return nil, err
		}
		lines := fixedwidth.SplitLines(text)

		if f.Name == models.DiagnosticsName+".txt" {
			for _, l := range lines {
				l = strings.TrimSpace(l)
				if l != "" && !strings.HasPrefix(l, "===") {
					s.Errors++
				}
			}
			continue
		}

		e := EntrySummary{Name: f.Name}
		for _, l := range lines {
			if len(control.Records) > 0 && !e.HasControl {
				if count, sum, ok := reconcile.ParseControl(l, control.Records[0]); ok {
					e.Records, e.Value, e.HasControl = count, sum, true
					continue
				}
			}
			if !isControl(l, control) {
				e.Lines++
			}
		}
		s.Entries = append(s.Entries, e)
	}
	return s, nil
}

func isControl(line string, control layout.Control) bool {
	for _, r := range control.Records {
		if _, _, ok := reconcile.ParseControl(line, r); ok {
			return true
		}
	}
	return false
}
