// Package geokey derives canonical DANE municipality codes from the raw
// identifiers each source carries.
package geokey

import (
	"strings"

	"github.com/KaramelBytes/crimeloom/internal/table"
)

// DefaultStripDigits is the width of the settlement segment at the end of
// the police combined code (DDMMMSSS).
const DefaultStripDigits = 3

// Resolver maps raw identifiers to municipality codes.
type Resolver struct {
	// StripDigits is how many trailing characters of a combined
	// department+municipality+settlement code are removed.
	StripDigits int
}

// NewResolver returns a resolver; a negative width falls back to the default.
func NewResolver(strip int) Resolver {
	if strip < 0 {
		strip = DefaultStripDigits
	}
	return Resolver{StripDigits: strip}
}

// FromCombined strips the settlement segment of a combined code, removes
// every non-digit and parses the rest. Values that are too short keep all
// their characters; anything unparseable resolves to null.
func (r Resolver) FromCombined(raw string) table.NullInt {
	s := strings.TrimSpace(raw)
	if len(s) > r.StripDigits {
		s = s[:len(s)-r.StripDigits]
	}
	return table.ParseInt(digitsOnly(s))
}

// FromNumeric parses a plain municipality code such as "68001" or "68001.0".
func (r Resolver) FromNumeric(raw string) table.NullInt {
	return table.ParseInt(strings.TrimSpace(raw))
}

// Column resolves every cell of c with fn into a new int64 column.
func Column(name string, c *table.Column, fn func(string) table.NullInt) *table.Column {
	out := table.NewColumn(name, table.Int64, c.Len())
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			out.AppendNull()
			continue
		}
		if c.Kind == table.Int64 {
			out.AppendInt(c.Int(i))
			continue
		}
		out.AppendInt(fn(c.Text(i)))
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
