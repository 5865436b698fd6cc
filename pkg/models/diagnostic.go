package models

import (
	"fmt"
	"strings"
)

// DiagnosticKind classifies why a ledger line or detail file was skipped
// or flagged.
type DiagnosticKind string

const (
	// ledger lines
	KindTooShort         DiagnosticKind = "too_short"
	KindUnmatched        DiagnosticKind = "unmatched"
	KindBadDate          DiagnosticKind = "bad_date"
	KindZeroAmounts      DiagnosticKind = "zero_amounts"
	KindAmountFieldShort DiagnosticKind = "amount_field_short"
	KindLedgerMismatch   DiagnosticKind = "ledger_amount_mismatch"

	// detail files
	KindTooFewLines   DiagnosticKind = "too_few_lines"
	KindKeyNotFound   DiagnosticKind = "key_not_found"
	KindReadError     DiagnosticKind = "read_error"
	KindBadAmount     DiagnosticKind = "bad_amount"
	KindDuplicateKey  DiagnosticKind = "duplicate_key"
	KindTotalMismatch DiagnosticKind = "total_mismatch"

	KindFatal DiagnosticKind = "fatal"
)

// Section groups diagnostics in the rendered Errores blob.
type Section int

const (
	SectionLines Section = iota
	SectionUnmatched
	SectionFiles
)

const (
	UnmatchedBanner = "=== NÚMEROS NO ENCONTRADOS EN ARCHIVOS TIPO I ==="
	FilesBanner     = "=== ERRORES EN ARCHIVOS TIPO I ==="
)

// Diagnostic is one recoverable problem found during a run. Line is the
// 1-based ledger line number and is zero for file level entries.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind" yaml:"kind"`
	Line   int            `json:"line,omitempty" yaml:"line,omitempty"`
	Key    string         `json:"key,omitempty" yaml:"key,omitempty"`
	File   string         `json:"file,omitempty" yaml:"file,omitempty"`
	Detail string         `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (d Diagnostic) Section() Section {
	switch d.Kind {
	case KindUnmatched:
		return SectionUnmatched
	case KindTooFewLines, KindKeyNotFound, KindReadError, KindBadAmount, KindDuplicateKey, KindTotalMismatch:
		return SectionFiles
	}
	return SectionLines
}

// Warning reports whether the entry flags a line or file that was still used.
func (d Diagnostic) Warning() bool {
	return d.Kind == KindTotalMismatch || d.Kind == KindLedgerMismatch || d.Kind == KindDuplicateKey
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case KindTooShort:
		return fmt.Sprintf("Línea %d: Línea muy corta (menos de %s caracteres)", d.Line, d.Detail)
	case KindUnmatched:
		return fmt.Sprintf("Línea %d: '%s' no encontrado", d.Line, d.Key)
	case KindBadDate:
		return fmt.Sprintf("Línea %d: %s - Error en fecha '%s'", d.Line, d.Key, d.Detail)
	case KindZeroAmounts:
		return fmt.Sprintf("Línea %d: %s - Capital y interés son 0", d.Line, d.Key)
	case KindAmountFieldShort:
		return fmt.Sprintf("Línea %d: %s - Línea muy corta para el campo de valor (menos de %s caracteres)", d.Line, d.Key, d.Detail)
	case KindLedgerMismatch:
		return fmt.Sprintf("Línea %d: %s - Valor en LOG difiere del total del archivo tipo I (%s)", d.Line, d.Key, d.Detail)
	case KindTooFewLines:
		return fmt.Sprintf("%s (pocas líneas: %s)", d.File, d.Detail)
	case KindKeyNotFound:
		return fmt.Sprintf("%s (patrón no encontrado)", d.File)
	case KindReadError:
		return fmt.Sprintf("%s (error de lectura: %s)", d.File, d.Detail)
	case KindBadAmount:
		return fmt.Sprintf("%s (valor no numérico: %s)", d.File, d.Detail)
	case KindDuplicateKey:
		return fmt.Sprintf("%s (número %s duplicado, reemplaza a %s)", d.File, d.Key, d.Detail)
	case KindTotalMismatch:
		return fmt.Sprintf("%s (capital + interés difiere del total: %s)", d.File, d.Detail)
	}
	return d.Detail
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []Diagnostic

// Count returns how many entries are of kind k.
func (ds Diagnostics) Count(k DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Render writes line diagnostics first, then the unmatched keys and the
// detail file errors under their banners. Empty sections are left out.
func (ds Diagnostics) Render() string {
	var lines, unmatched, files []string
	for _, d := range ds {
		switch d.Section() {
		case SectionUnmatched:
			unmatched = append(unmatched, d.String())
		case SectionFiles:
			files = append(files, d.String())
		default:
			lines = append(lines, d.String())
		}
	}

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	section := func(banner string, entries []string) {
		if len(entries) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(banner)
		b.WriteString("\n")
		for _, e := range entries {
			b.WriteString(e)
			b.WriteString("\n")
		}
	}
	section(UnmatchedBanner, unmatched)
	section(FilesBanner, files)
	return b.String()
}
