// Package importer stages uploaded files into a private working directory
// per run, expanding zip bundles on the way.
package importer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
)

const (
	ledgerDir = "log"
	detailDir = "archivos"
)

// Importer creates runs under workDir. It is shared by the CLI and the HTTP
// server; nothing in it knows about either.
type Importer struct {
	workDir string
	logger  *log.Logger
}

func New(workDir string, logger *log.Logger) *Importer {
	return &Importer{workDir: workDir, logger: logger}
}

// Run is the working directory of one reconciliation or extraction.
type Run struct {
	ID         string
	Dir        string
	LedgerPath string
	LedgerName string
	LedgerSize int64
	// Files lists the staged detail file names in upload order.
	Files []string

	logger *log.Logger
}

// NewRun creates an empty working directory named after a fresh uuid.
func (i *Importer) NewRun() (*Run, error) {
	id := uuid.NewString()
	dir := filepath.Join(i.workDir, id)
	for _, d := range []string{ledgerDir, detailDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	i.logger.Debug("created run", "id", id, "dir", dir)
	return &Run{ID: id, Dir: dir, logger: i.logger}, nil
}

// DetailDir is where detail files are staged.
func (r *Run) DetailDir() string {
	return filepath.Join(r.Dir, detailDir)
}

// Path returns a path inside the run directory.
func (r *Run) Path(name string) string {
	return filepath.Join(r.Dir, filepath.Base(name))
}

// safeName drops any directory part so uploads cannot escape the run.
func safeName(name string) (string, bool) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", false
	}
	return name, true
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// AddLedger stages the settlement ledger.
func (r *Run) AddLedger(name string, src io.Reader) error {
	base, ok := safeName(name)
	if !ok {
		return fmt.Errorf("invalid ledger name %q", name)
	}
	path := filepath.Join(r.Dir, ledgerDir, base)
	n, err := writeFile(path, src)
	if err != nil {
		return fmt.Errorf("failed to stage ledger: %w", err)
	}
	r.LedgerPath, r.LedgerName, r.LedgerSize = path, base, n
	return nil
}

// AddDetail stages one detail upload. Zip bundles are expanded and every
// file they hold is staged flat into the detail directory. It returns the
// staged names.
func (r *Run) AddDetail(name string, src io.Reader) ([]string, error) {
	base, ok := safeName(name)
	if !ok {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	if strings.EqualFold(filepath.Ext(base), ".zip") {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", base, err)
		}
		return r.expand(base, data)
	}
	if _, err := writeFile(filepath.Join(r.DetailDir(), base), src); err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", base, err)
	}
	r.Files = append(r.Files, base)
	return []string{base}, nil
}

func (r *Run) expand(bundle string, data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%s no es un archivo ZIP válido: %w", bundle, err)
	}

	var staged []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		base, ok := safeName(f.Name)
		if !ok || strings.HasPrefix(base, "._") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return staged, fmt.Errorf("failed to open %s in %s: %w", f.Name, bundle, err)
		}
		_, err = writeFile(filepath.Join(r.DetailDir(), base), rc)
		rc.Close()
		if err != nil {
			return staged, fmt.Errorf("failed to stage %s: %w", base, err)
		}
		staged = append(staged, base)
	}
	r.Files = append(r.Files, staged...)
	r.logger.Debug("expanded bundle", "bundle", bundle, "files", len(staged))
	return staged, nil
}

// Cleanup removes the run directory.
func (r *Run) Cleanup() error {
	return os.RemoveAll(r.Dir)
}
