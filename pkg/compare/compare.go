// Package compare holds the consistency checks between the amounts of a
// detail file and the figures they are cross-checked against. A failed
// check is a warning: callers keep using the detail file amounts.
package compare

import (
	"fmt"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/models"
)

// Totals reports whether capital plus interest equals the declared total.
// Records without a total always match.
func Totals(r *models.AmountRecord) bool {
	if r == nil || !r.HasTotal {
		return true
	}
	return r.Capital+r.Interest == r.Total
}

// TotalsDetail describes a Totals mismatch for diagnostics.
func TotalsDetail(r *models.AmountRecord) string {
	return fmt.Sprintf("%d + %d = %d, total %d", r.Capital, r.Interest, r.Capital+r.Interest, r.Total)
}

// LedgerAmount compares the amount already present in a ledger line with
// the total of the detail file. It reports true when there is nothing to
// compare: no total, or a window that does not parse.
func LedgerAmount(window string, r *models.AmountRecord) (int64, bool) {
	if r == nil || !r.HasTotal {
		return 0, true
	}
	v, err := fixedwidth.ParseAmount(window)
	if err != nil {
		return 0, true
	}
	return v, v == r.Total
}
