// Package layout holds the positional contracts of every file the system
// reads or writes, as named presets that can be overridden from YAML.
package layout

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
)

const (
	RegexDigits  = "regex-digits"
	TokenWindows = "token-windows"
)

type KeyStrategy string

const (
	KeyRegexPair KeyStrategy = "regex_pair"
	KeyToken     KeyStrategy = "token"
)

// Key configures how a detail file name yields its matching key.
type Key struct {
	Strategy  KeyStrategy `yaml:"strategy"`
	Pattern   string      `yaml:"pattern,omitempty"`
	Group     int         `yaml:"group,omitempty"`
	Delimiter string      `yaml:"delimiter,omitempty"`
	Token     int         `yaml:"token,omitempty"`
}

type AmountMode string

const (
	// AmountDigits reads capital from the tail of an all-digit line 2 and
	// interest from the whole of line 3.
	AmountDigits AmountMode = "digits"
	// AmountWindows reads zero-padded windows on lines 2, 3 and 4.
	AmountWindows AmountMode = "windows"
)

// Window is a field on a given 1-based line of a detail file.
type Window struct {
	Line                 int `yaml:"line"`
	fixedwidth.FieldSpec `yaml:",inline"`
}

// Detail configures type I file selection and amount extraction.
type Detail struct {
	TypeMarker string     `yaml:"type_marker"`
	Extensions []string   `yaml:"extensions"`
	MinLines   int        `yaml:"min_lines"`
	Mode       AmountMode `yaml:"mode"`
	Capital    Window     `yaml:"capital"`
	Interest   Window     `yaml:"interest"`
	Total      *Window    `yaml:"total,omitempty"`
}

// Ledger configures the LOG file columns.
type Ledger struct {
	HeaderLines int                  `yaml:"header_lines"`
	Key         fixedwidth.FieldSpec `yaml:"key"`
	Date        fixedwidth.FieldSpec `yaml:"date"`
	DateFormat  string               `yaml:"date_format"`
	Amount      fixedwidth.FieldSpec `yaml:"amount"`
}

// MinWidth is the shortest line that still carries a key and a date.
func (l Ledger) MinWidth() int {
	return max(l.Key.End, l.Date.End)
}

// ControlRecord is one synthesized trailer line.
type ControlRecord struct {
	Marker      string               `yaml:"marker"`
	MarkerField fixedwidth.FieldSpec `yaml:"marker_field"`
	Count       fixedwidth.FieldSpec `yaml:"count"`
	Sum         fixedwidth.FieldSpec `yaml:"sum"`
}

// Control configures the trailer lines appended to each bucket.
type Control struct {
	Width   int             `yaml:"width"`
	Records []ControlRecord `yaml:"records"`
}

// Preset bundles every layout a reconciliation run needs.
type Preset struct {
	Name    string  `yaml:"name"`
	Key     Key     `yaml:"key"`
	Detail  Detail  `yaml:"detail"`
	Ledger  Ledger  `yaml:"ledger"`
	Control Control `yaml:"control"`
}

func ledger() Ledger {
	return Ledger{
		HeaderLines: 2,
		Key:         fixedwidth.FieldSpec{Name: "numero", Start: 41, End: 51, Trim: true},
		Date:        fixedwidth.FieldSpec{Name: "fecha", Start: 56, End: 64},
		DateFormat:  "20060102",
		Amount:      fixedwidth.FieldSpec{Name: "valor", Start: 73, End: 88},
	}
}

func lotControl() ControlRecord {
	return ControlRecord{
		Marker:      "8",
		MarkerField: fixedwidth.FieldSpec{Name: "tipo", Start: 0, End: 1},
		Count:       fixedwidth.FieldSpec{Name: "registros", Start: 4, End: 12},
		Sum:         fixedwidth.FieldSpec{Name: "valor_total", Start: 19, End: 34},
	}
}

// FileControl is the optional second trailer record.
func FileControl() ControlRecord {
	r := lotControl()
	r.Marker = "9"
	return r
}

func control() Control {
	return Control{Width: 162, Records: []ControlRecord{lotControl()}}
}

func newRegexDigits() Preset {
	return Preset{
		Name: RegexDigits,
		Key:  Key{Strategy: KeyRegexPair, Pattern: `_(\d+)_(\d+)_`, Group: 2},
		Detail: Detail{
			TypeMarker: "_I_",
			Extensions: []string{".txt"},
			MinLines:   4,
			Mode:       AmountDigits,
			Capital:    Window{Line: 2, FieldSpec: fixedwidth.FieldSpec{Name: "capital", Start: 0, End: 4096, Trim: true}},
			Interest:   Window{Line: 3, FieldSpec: fixedwidth.FieldSpec{Name: "interes", Start: 0, End: 4096, Trim: true}},
		},
		Ledger:  ledger(),
		Control: control(),
	}
}

func newTokenWindows() Preset {
	return Preset{
		Name: TokenWindows,
		Key:  Key{Strategy: KeyToken, Delimiter: "_", Token: 2},
		Detail: Detail{
			TypeMarker: "_I_",
			Extensions: []string{".txt"},
			MinLines:   4,
			Mode:       AmountWindows,
			Capital:    Window{Line: 2, FieldSpec: fixedwidth.FieldSpec{Name: "aporte_obligatorio", Start: 19, End: 33, ZeroStrip: true}},
			Interest:   Window{Line: 3, FieldSpec: fixedwidth.FieldSpec{Name: "mora_aportes", Start: 14, End: 23, ZeroStrip: true}},
			Total:      &Window{Line: 4, FieldSpec: fixedwidth.FieldSpec{Name: "total_aportes", Start: 6, End: 20, ZeroStrip: true}},
		},
		Ledger:  ledger(),
		Control: control(),
	}
}

// Names lists the built-in presets.
func Names() []string {
	return []string{RegexDigits, TokenWindows}
}

// Get returns a fresh copy of a built-in preset.
func Get(name string) (Preset, error) {
	switch strings.ToLower(name) {
	case "", RegexDigits:
		return newRegexDigits(), nil
	case TokenWindows:
		return newTokenWindows(), nil
	}
	return Preset{}, fmt.Errorf("unknown layout preset %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Load reads a YAML layout file. The file may name a built-in preset in
// `base`; the fields it sets override that preset.
func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read layout file: %w", err)
	}
	return Parse(data)
}

// Parse is Load over an in-memory document.
func Parse(data []byte) (Preset, error) {
	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Preset{}, fmt.Errorf("failed to parse layout: %w", err)
	}
	p, err := Get(head.Base)
	if err != nil {
		return Preset{}, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func (p Preset) Validate() error {
	switch p.Key.Strategy {
	case KeyRegexPair:
		re, err := regexp.Compile(p.Key.Pattern)
		if err != nil {
			return fmt.Errorf("key pattern: %w", err)
		}
		if p.Key.Group < 1 || p.Key.Group > re.NumSubexp() {
			return fmt.Errorf("key group %d out of range for %q", p.Key.Group, p.Key.Pattern)
		}
	case KeyToken:
		if p.Key.Delimiter == "" || p.Key.Token < 0 {
			return fmt.Errorf("token key needs a delimiter and a non-negative token index")
		}
	default:
		return fmt.Errorf("unknown key strategy %q", p.Key.Strategy)
	}

	if p.Detail.TypeMarker == "" {
		return fmt.Errorf("detail type marker is empty")
	}
	if p.Detail.MinLines < 1 {
		return fmt.Errorf("detail min_lines must be positive")
	}
	windows := []Window{p.Detail.Capital, p.Detail.Interest}
	if p.Detail.Total != nil {
		windows = append(windows, *p.Detail.Total)
	}
	for _, w := range windows {
		if w.Line < 1 || w.Line > p.Detail.MinLines {
			return fmt.Errorf("detail window %q on line %d outside the first %d lines", w.Name, w.Line, p.Detail.MinLines)
		}
		if err := w.Validate(); err != nil {
			return err
		}
	}
	switch p.Detail.Mode {
	case AmountDigits, AmountWindows:
	default:
		return fmt.Errorf("unknown detail mode %q", p.Detail.Mode)
	}

	if p.Ledger.HeaderLines < 0 {
		return fmt.Errorf("ledger header_lines must not be negative")
	}
	for _, f := range []fixedwidth.FieldSpec{p.Ledger.Key, p.Ledger.Date, p.Ledger.Amount} {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	if p.Ledger.DateFormat == "" {
		return fmt.Errorf("ledger date_format is empty")
	}

	for _, r := range p.Control.Records {
		for _, f := range []fixedwidth.FieldSpec{r.MarkerField, r.Count, r.Sum} {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("control record %q: %w", r.Marker, err)
			}
		}
	}
	return nil
}
