package reconcile

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
)

// ControlGenerator builds the trailer lines of an output bucket.
type ControlGenerator struct {
	control layout.Control
	amount  fixedwidth.FieldSpec
}

func NewControlGenerator(control layout.Control, amount fixedwidth.FieldSpec) *ControlGenerator {
	return &ControlGenerator{control: control, amount: amount}
}

// Sum adds the amount windows of lines. Windows that are not digits
// count as zero.
func (g *ControlGenerator) Sum(lines []string) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		v := strings.TrimSpace(fixedwidth.Slice(l, g.amount.Start, g.amount.End))
		if !fixedwidth.IsDigits(v) {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			continue
		}
		sum = sum.Add(d)
	}
	return sum
}

// Generate returns one trailer line per configured control record, or
// nothing for an empty bucket. Count and sum are zero-padded to their
// windows; a sum wider than its window keeps its last digits.
func (g *ControlGenerator) Generate(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	count := strconv.Itoa(len(lines))
	sum := g.Sum(lines).String()

	out := make([]string, 0, len(g.control.Records))
	for _, rec := range g.control.Records {
		buf := fixedwidth.NewBuffer(g.control.Width)
		buf.Put(rec.MarkerField, rec.Marker)
		buf.PutDigits(rec.Count, count)
		buf.PutDigits(rec.Sum, sum)
		out = append(out, buf.String())
	}
	return out
}

// ParseControl reads count and sum back from a trailer line written with rec.
func ParseControl(line string, rec layout.ControlRecord) (int64, decimal.Decimal, bool) {
	if rec.MarkerField.Extract(line) != rec.Marker {
		return 0, decimal.Zero, false
	}
	count, err := fixedwidth.ParseAmount(rec.Count.Extract(line))
	if err != nil {
		return 0, decimal.Zero, false
	}
	raw := fixedwidth.StripZeros(strings.TrimSpace(rec.Sum.Extract(line)))
	if raw == "" {
		return count, decimal.Zero, true
	}
	if !fixedwidth.IsDigits(raw) {
		return 0, decimal.Zero, false
	}
	sum, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, decimal.Zero, false
	}
	return count, sum, true
}
