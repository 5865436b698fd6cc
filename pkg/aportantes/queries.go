package aportantes

import (
	"sort"
	"strings"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
)

// GeoFilters lists the distinct departments and municipalities.
type GeoFilters struct {
	Departamentos []string `json:"departamentos"`
	Municipios    []string `json:"municipios"`
}

// GeoStats counts distinct NITs per department and per
// "department - municipality".
type GeoStats struct {
	PorDepartamento map[string]int `json:"por_departamento,omitempty"`
	PorMunicipio    map[string]int `json:"por_municipio,omitempty"`
}

// lessValue orders digit strings numerically and everything else as text.
func lessValue(a, b string) bool {
	if fixedwidth.IsDigits(a) && fixedwidth.IsDigits(b) {
		a, b = fixedwidth.StripZeros(a), fixedwidth.StripZeros(b)
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func sortedUnique(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return lessValue(out[i], out[j]) })
	return out
}

func (t *Table) distinct(col int, keep func(row []string) bool) []string {
	if col < 0 {
		return []string{}
	}
	set := map[string]bool{}
	for _, r := range t.Rows {
		if r[col] != "" && (keep == nil || keep(r)) {
			set[r[col]] = true
		}
	}
	return sortedUnique(set)
}

// NITs returns the distinct NITs in ascending order.
func (t *Table) NITs() []string {
	return t.distinct(t.nit, nil)
}

// DetailByNIT returns every row of nit.
func (t *Table) DetailByNIT(nit string) []map[string]string {
	nit = strings.TrimSpace(nit)
	out := []map[string]string{}
	for i, r := range t.Rows {
		if r[t.nit] == nit {
			out = append(out, t.Record(i))
		}
	}
	return out
}

func (t *Table) GeoFilters() GeoFilters {
	return GeoFilters{
		Departamentos: t.distinct(t.dept, nil),
		Municipios:    t.distinct(t.mun, nil),
	}
}

// MunicipiosByDepartamento returns the municipalities of one department.
// Both columns must be resolved for any result.
func (t *Table) MunicipiosByDepartamento(departamento string) []string {
	if t.dept < 0 || t.mun < 0 {
		return []string{}
	}
	return t.distinct(t.mun, func(r []string) bool { return r[t.dept] == departamento })
}

// FilterNITs returns the NITs located in departamento and municipio. Empty
// criteria, or criteria on a column that could not be resolved, match
// everything.
func (t *Table) FilterNITs(departamento, municipio string) []string {
	return t.distinct(t.nit, func(r []string) bool {
		if departamento != "" && t.dept >= 0 && r[t.dept] != departamento {
			return false
		}
		if municipio != "" && t.mun >= 0 && r[t.mun] != municipio {
			return false
		}
		return true
	})
}

func (t *Table) GeoStats() GeoStats {
	var s GeoStats
	if t.dept < 0 {
		return s
	}
	count := func(key func(r []string) string) map[string]int {
		seen := map[string]map[string]bool{}
		for _, r := range t.Rows {
			k := key(r)
			if k == "" || r[t.nit] == "" {
				continue
			}
			if seen[k] == nil {
				seen[k] = map[string]bool{}
			}
			seen[k][r[t.nit]] = true
		}
		out := make(map[string]int, len(seen))
		for k, nits := range seen {
			out[k] = len(nits)
		}
		return out
	}

	s.PorDepartamento = count(func(r []string) string { return r[t.dept] })
	if t.mun >= 0 {
		s.PorMunicipio = count(func(r []string) string {
			if r[t.dept] == "" || r[t.mun] == "" {
				return ""
			}
			return r[t.dept] + " - " + r[t.mun]
		})
	}
	return s
}
