// Package schema standardizes column names of heterogeneous raw tables and
// resolves declared alias lists into a fixed set of canonical columns.
package schema

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/KaramelBytes/crimeloom/internal/table"
	"github.com/KaramelBytes/crimeloom/internal/textnorm"
)

// DefaultSynonyms maps normalized spellings of the municipality code to the
// canonical column name.
var DefaultSynonyms = map[string]string{
	"cod_mun":               "codigo_municipio",
	"cod_mpio":              "codigo_municipio",
	"cod_municipio":         "codigo_municipio",
	"codigo_dane_municipio": "codigo_municipio",
	"mpio_ccnct":            "codigo_municipio",
	"codigo_entidad":        "codigo_municipio",
}

// NormalizeName lower-cases, folds accents and collapses every run of
// whitespace or punctuation into a single underscore.
func NormalizeName(s string) string {
	s = strings.ToLower(textnorm.Fold(s))
	var b strings.Builder
	sep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

// Normalizer renames columns to their normalized form and remaps synonyms.
type Normalizer struct {
	Synonyms map[string]string
}

// NewNormalizer returns a normalizer over the given synonym table; nil uses
// DefaultSynonyms.
func NewNormalizer(synonyms map[string]string) Normalizer {
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	return Normalizer{Synonyms: synonyms}
}

// Canonical returns the canonical name for one raw column name.
func (n Normalizer) Canonical(raw string) string {
	name := NormalizeName(raw)
	if to, ok := n.Synonyms[name]; ok {
		return to
	}
	return name
}

// Apply returns a copy of t with canonical column names. Unknown columns pass
// through normalized. When two columns land on the same name, the first keeps
// it and later ones get a numeric suffix.
func (n Normalizer) Apply(t *table.Table) *table.Table {
	used := make(map[string]int, t.NumCols())
	rename := make(map[string]string, t.NumCols())
	for _, raw := range t.Names() {
		name := n.Canonical(raw)
		if name == "" {
			name = "col"
		}
		if k, taken := used[name]; taken {
			k++
			for used[name+"_"+strconv.Itoa(k)] > 0 {
				k++
			}
			used[name] = k
			name = name + "_" + strconv.Itoa(k)
		}
		used[name] = max(used[name], 1)
		rename[raw] = name
	}
	out, err := t.Rename(rename)
	if err != nil {
		// Unreachable: every target name above is unique.
		return t
	}
	return out
}
