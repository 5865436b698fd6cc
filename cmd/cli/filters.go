package main

import (
	"strings"

	"github.com/yurifrl/planillas/pkg/csv"
	"github.com/yurifrl/planillas/pkg/models"
	"github.com/yurifrl/planillas/pkg/planilla"
)

type filters struct {
	nit  string
	file string
}

func (f *filters) toFilterFunc() csv.FilterFunc[models.Planilla] {
	byNIT := planilla.ByNIT(f.nit)
	return func(p models.Planilla) bool {
		if f.nit != "" && !byNIT(p) {
			return false
		}
		if f.file != "" && !strings.Contains(strings.ToLower(p.File), strings.ToLower(f.file)) {
			return false
		}
		return true
	}
}

// apply keeps the records the filters accept.
func (f *filters) apply(records []models.Planilla) []models.Planilla {
	keep := f.toFilterFunc()
	out := records[:0]
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
