package plan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults apply to every run that leaves the field unset.
type Defaults struct {
	Months    int    `yaml:"months"`
	Preset    string `yaml:"preset"`
	OutputDir string `yaml:"output_dir"`
}

type Plan struct {
	Defaults Defaults `yaml:"defaults"`
	Runs     []Run    `yaml:"runs"`
}

// Run is one reconciliation of a ledger against a directory of detail files.
type Run struct {
	Name    string `yaml:"name"`
	Ledger  string `yaml:"ledger"`
	Details string `yaml:"details"`
	Months  *int   `yaml:"months,omitempty"`
	Preset  string `yaml:"preset,omitempty"`
	Output  string `yaml:"output,omitempty"`
	Force   bool   `yaml:"force,omitempty"`
}

// Load reads a manifest. Relative paths are resolved against the manifest's
// directory and defaults are applied to every run.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	p, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a manifest whose relative paths are relative to base.
func Parse(data []byte, base string) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if len(p.Runs) == 0 {
		return nil, fmt.Errorf("plan has no runs")
	}

	resolve := func(s string) string {
		if s == "" || filepath.IsAbs(s) {
			return s
		}
		return filepath.Join(base, s)
	}
	outDir := resolve(p.Defaults.OutputDir)

	seen := map[string]bool{}
	for i := range p.Runs {
		r := &p.Runs[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("run-%d", i+1)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("run %q declared twice", r.Name)
		}
		seen[r.Name] = true
		if r.Ledger == "" || r.Details == "" {
			return nil, fmt.Errorf("run %q needs ledger and details", r.Name)
		}
		r.Ledger, r.Details = resolve(r.Ledger), resolve(r.Details)
		if r.Months == nil {
			m := p.Defaults.Months
			r.Months = &m
		}
		if r.Preset == "" {
			r.Preset = p.Defaults.Preset
		}
		switch {
		case r.Output == "" && outDir != "":
			r.Output = filepath.Join(outDir, r.Name+".zip")
		case r.Output != "" && !filepath.IsAbs(r.Output):
			if outDir != "" {
				r.Output = filepath.Join(outDir, r.Output)
			} else {
				r.Output = resolve(r.Output)
			}
		}
	}
	return &p, nil
}

// MonthsOr returns the run's months, or fallback when unset.
func (r Run) MonthsOr(fallback int) int {
	if r.Months == nil {
		return fallback
	}
	return *r.Months
}

func (p *Plan) Print(w io.Writer) {
	for i, r := range p.Runs {
		fmt.Fprintf(w, "[%d] %s ledger=%s details=%s months=%d preset=%s output=%s\n",
			i+1, r.Name, r.Ledger, r.Details, r.MonthsOr(0), r.Preset, r.Output)
	}
}
