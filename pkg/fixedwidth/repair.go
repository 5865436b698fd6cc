package fixedwidth

import "strings"

// Replacement is one substring substitution applied by a Repairer.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Repairer fixes text that was encoded as UTF-8 and decoded as a single-byte
// charset somewhere upstream. Replacements run one after the other over the
// whole line, so longer patterns must come before their prefixes.
type Repairer struct {
	replacements []Replacement
}

// NewRepairer returns a Repairer applying replacements in the given order.
func NewRepairer(replacements []Replacement) *Repairer {
	return &Repairer{replacements: append([]Replacement(nil), replacements...)}
}

// MojibakeReplacements covers the accented capitals and vowels seen in
// contributor names and addresses, plus stray acute/grave accents used as
// apostrophes.
var MojibakeReplacements = []Replacement{
	{From: "ï¿½", To: "Ñ"},
	{From: "Ã‘", To: "Ñ"},
	{From: "Ã'", To: "Ñ"},
	{From: "Ã\u0091", To: "Ñ"},
	{From: "Ã¡", To: "á"},
	{From: "Ã©", To: "é"},
	{From: "Ã\u00ad", To: "í"},
	{From: "Ã³", To: "ó"},
	{From: "Ãº", To: "ú"},
	{From: "Ã‰", To: "É"},
	{From: "Ã“", To: "Ó"},
	{From: "Ã\"", To: "Ó"},
	{From: "Ã\u0093", To: "Ó"},
	{From: "Ãš", To: "Ú"},
	{From: "Ã¼", To: "ü"},
	{From: "Ã ", To: "Ñ"},
	// a lone Ã is what is left of an Ó whose second byte was lost
	{From: "Ã", To: "Ó"},
	{From: "´", To: "'"},
	{From: "`", To: "'"},
}

// DefaultRepairer applies MojibakeReplacements.
var DefaultRepairer = NewRepairer(MojibakeReplacements)

// Repair applies every replacement to line, in order.
func (r *Repairer) Repair(line string) string {
	if r == nil {
		return line
	}
	for _, rep := range r.replacements {
		if rep.From == "" {
			continue
		}
		line = strings.ReplaceAll(line, rep.From, rep.To)
	}
	return line
}
