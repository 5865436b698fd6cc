package aportantes

import (
	"strings"
	"unicode"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type columnSpec struct {
	exact   []string
	keyword string
}

var (
	departamentoColumn = columnSpec{
		exact:   []string{"DEPARTAMENTO", "Departamento", "departamento"},
		keyword: "DEPARTAMENTO",
	}
	municipioColumn = columnSpec{
		exact: []string{
			"MUNICIPIO / ISLA", "MUNICIPIO /ISLA", "MUNICIPIO/ ISLA", "MUNICIPIO/ISLA",
			"MUNICIPIO", "Municipio", "municipio",
		},
		keyword: "MUNICIPIO",
	}
)

// fold upper-cases s and drops its accents.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// resolve finds the column for spec among the columns holding data: an
// exact name first, then a header containing the keyword once accents and
// case are ignored, then the closest header sharing the keyword's stem.
func (t *Table) resolve(spec columnSpec) int {
	usable := func(i int) bool {
		return i != t.nit && i != t.dept && i != t.mun && t.hasValues(i)
	}

	for _, name := range spec.exact {
		for i, c := range t.Columns {
			if c == name && usable(i) {
				return i
			}
		}
	}

	for i, c := range t.Columns {
		if strings.Contains(fold(c), spec.keyword) && usable(i) {
			return i
		}
	}

	byFolded := map[string]int{}
	var candidates []string
	for i, c := range t.Columns {
		f := fold(c)
		if f == "" || !usable(i) {
			continue
		}
		if _, ok := byFolded[f]; !ok {
			byFolded[f] = i
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	// closestmatch lowercases the candidates but not the query.
	cm := closestmatch.New(candidates, []int{3, 4})
	match := cm.Closest(strings.ToLower(spec.keyword))
	if match == "" || !strings.Contains(match, spec.keyword[:4]) {
		return -1
	}
	return byFolded[match]
}
