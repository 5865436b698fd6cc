package models

import "github.com/yurifrl/planillas/pkg/fixedwidth"

// FileColumn names the column that carries the source file of a planilla.
const FileColumn = "Archivo"

// Planilla is the header data extracted from one contribution return.
type Planilla struct {
	File   string           `json:"archivo" yaml:"archivo"`
	Fields fixedwidth.Record `json:"campos" yaml:"campos"`
}

// Values returns the file name followed by every field value in order.
func (p Planilla) Values() []string {
	out := make([]string, 0, len(p.Fields)+1)
	out = append(out, p.File)
	for _, f := range p.Fields {
		out = append(out, f.Value)
	}
	return out
}

// Get returns one field by name, including FileColumn.
func (p Planilla) Get(name string) string {
	if name == FileColumn {
		return p.File
	}
	v, _ := p.Fields.Get(name)
	return v
}
