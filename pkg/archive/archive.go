// Package archive bundles the outputs of a reconciliation run into a zip
// file and reads the statistics back from such a file.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zip"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/reconcile"
)

// Entry is one named text blob of the archive.
type Entry struct {
	Name string
	Data []byte
}

// Packager writes result archives.
type Packager struct {
	logger  *log.Logger
	charset fixedwidth.Charset
	now     func() time.Time
}

func New(logger *log.Logger, charset fixedwidth.Charset) *Packager {
	return &Packager{logger: logger, charset: charset, now: time.Now}
}

func joinLines(lines []string, eol string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(eol)
	}
	return b.String()
}

// Entries materialises the non-empty buckets, each followed by its trailer
// lines, and the diagnostics blob when there is anything to report.
func (p *Packager) Entries(res *reconcile.Result) ([]Entry, error) {
	eol := res.EOL
	if eol == "" {
		eol = "\n"
	}

	var entries []Entry
	for _, b := range models.Buckets {
		lines := res.Lines(b)
		if len(lines) == 0 {
			continue
		}
		text := joinLines(lines, eol) + joinLines(res.Controls[b], eol)
		data, err := p.charset.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", b, err)
		}
		entries = append(entries, Entry{Name: b.FileName(), Data: data})
	}

	if len(res.Diagnostics) > 0 {
		text := res.Diagnostics.Render()
		if eol != "\n" {
			text = strings.ReplaceAll(text, "\n", eol)
		}
		data, err := p.charset.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		entries = append(entries, Entry{Name: models.DiagnosticsName + ".txt", Data: data})
	}
	return entries, nil
}

// Write streams the archive of res to w and returns the run statistics.
func (p *Packager) Write(w io.Writer, res *reconcile.Result) (models.Statistics, error) {
	entries, err := p.Entries(res)
	if err != nil {
		return res.Stats, err
	}

	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: p.now(),
		})
		if err != nil {
			return res.Stats, fmt.Errorf("failed to add %s: %w", e.Name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return res.Stats, fmt.Errorf("failed to write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return res.Stats, fmt.Errorf("failed to finish archive: %w", err)
	}

	p.logger.Debug("packaged result", "entries", len(entries))
	return res.Stats, nil
}

// Package returns the archive of res in memory.
func (p *Packager) Package(res *reconcile.Result) ([]byte, models.Statistics, error) {
	var buf bytes.Buffer
	stats, err := p.Write(&buf, res)
	if err != nil {
		return nil, stats, err
	}
	return buf.Bytes(), stats, nil
}
