// Package fixedwidth decodes and rewrites positional text records.
//
// Offsets are character offsets into a decoded line, not byte offsets, so a
// latin-1 file decoded to UTF-8 keeps the column contract of the original.
package fixedwidth

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldSpec describes one fixed-width field. End is exclusive.
type FieldSpec struct {
	Name      string `yaml:"name" json:"name"`
	Start     int    `yaml:"start" json:"start"`
	End       int    `yaml:"end" json:"end"`
	Trim      bool   `yaml:"trim,omitempty" json:"trim,omitempty"`
	ZeroStrip bool   `yaml:"zero_strip,omitempty" json:"zero_strip,omitempty"`
}

// Width returns the number of columns covered by the field.
func (f FieldSpec) Width() int {
	return f.End - f.Start
}

func (f FieldSpec) Validate() error {
	if f.Start < 0 || f.End <= f.Start {
		return fmt.Errorf("field %q: invalid window [%d:%d]", f.Name, f.Start, f.End)
	}
	return nil
}

// Extract slices the field out of line and applies the trim and zero-strip
// policies, in that order. It never fails: short lines give short or empty
// values.
func (f FieldSpec) Extract(line string) string {
	v := Slice(line, f.Start, f.End)
	if f.Trim {
		v = strings.TrimSpace(v)
	}
	if f.ZeroStrip {
		v = StripZeros(v)
	}
	return v
}

// Schema is an ordered set of fields for one record type.
type Schema []FieldSpec

func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Field is one decoded name/value pair.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Record holds decoded fields in schema order.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Map returns the record as a name to value map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Decode extracts every field of schema from line.
func Decode(line string, schema Schema) Record {
	rec := make(Record, 0, len(schema))
	for _, f := range schema {
		rec = append(rec, Field{Name: f.Name, Value: f.Extract(line)})
	}
	return rec
}

// Slice returns line[start:end] counted in characters. A start past the end
// of the line yields "" and an end past the end of the line is clamped.
func Slice(line string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if isASCII(line) {
		if start >= len(line) || end <= start {
			return ""
		}
		if end > len(line) {
			end = len(line)
		}
		return line[start:end]
	}
	r := []rune(line)
	if start >= len(r) || end <= start {
		return ""
	}
	if end > len(r) {
		end = len(r)
	}
	return string(r[start:end])
}

// Len returns the length of line in characters.
func Len(line string) int {
	if isASCII(line) {
		return len(line)
	}
	return utf8.RuneCountInString(line)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
