package models

// Statistics summarises one reconciliation run.
type Statistics struct {
	MatchesFound     int `json:"matches_encontrados" yaml:"matches_encontrados"`
	CapitalCurrent   int `json:"capital_actual" yaml:"capital_actual"`
	CapitalPrior     int `json:"capital_anterior" yaml:"capital_anterior"`
	InterestCurrent  int `json:"interes_actual" yaml:"interes_actual"`
	InterestPrior    int `json:"interes_anterior" yaml:"interes_anterior"`
	TotalDetailFiles int `json:"total_archivos_i" yaml:"total_archivos_i"`
	ErrorCount       int `json:"errores" yaml:"errores"`
}

// SetCount stores the line count of bucket b.
func (s *Statistics) SetCount(b Bucket, n int) {
	switch b {
	case CapitalCurrent:
		s.CapitalCurrent = n
	case CapitalPrior:
		s.CapitalPrior = n
	case InterestCurrent:
		s.InterestCurrent = n
	case InterestPrior:
		s.InterestPrior = n
	}
}

// Count returns the line count of bucket b.
func (s Statistics) Count(b Bucket) int {
	switch b {
	case CapitalCurrent:
		return s.CapitalCurrent
	case CapitalPrior:
		return s.CapitalPrior
	case InterestCurrent:
		return s.InterestCurrent
	case InterestPrior:
		return s.InterestPrior
	}
	return 0
}
