package models

// AmountRecord carries the authoritative amounts of one type I detail file.
type AmountRecord struct {
	Key        string `json:"key" yaml:"key"`
	Capital    int64  `json:"capital" yaml:"capital"`
	Interest   int64  `json:"interest" yaml:"interest"`
	Total      int64  `json:"total,omitempty" yaml:"total,omitempty"`
	HasTotal   bool   `json:"has_total,omitempty" yaml:"has_total,omitempty"`
	SourceFile string `json:"source_file" yaml:"source_file"`
}

// Empty reports whether neither capital nor interest can be routed.
func (r *AmountRecord) Empty() bool {
	return r.Capital <= 0 && r.Interest <= 0
}
