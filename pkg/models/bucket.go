package models

// Bucket is one of the four output groups of a reconciliation run.
type Bucket int

const (
	CapitalCurrent Bucket = iota
	CapitalPrior
	InterestCurrent
	InterestPrior
)

// Buckets lists every bucket in archive order.
var Buckets = []Bucket{CapitalCurrent, CapitalPrior, InterestCurrent, InterestPrior}

// DiagnosticsName is the archive name of the diagnostics blob.
const DiagnosticsName = "Errores"

func (b Bucket) String() string {
	switch b {
	case CapitalCurrent:
		return "Capital_Actual"
	case CapitalPrior:
		return "Capital_Anterior"
	case InterestCurrent:
		return "Interes_Actual"
	case InterestPrior:
		return "Interes_Anterior"
	}
	return "Desconocido"
}

// FileName is the archive entry name for the bucket.
func (b Bucket) FileName() string {
	return b.String() + ".txt"
}

// BucketFor picks the bucket of an amount kind and recency.
func BucketFor(interest, current bool) Bucket {
	switch {
	case !interest && current:
		return CapitalCurrent
	case !interest:
		return CapitalPrior
	case current:
		return InterestCurrent
	}
	return InterestPrior
}
