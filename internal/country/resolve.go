// Package country resolves the country identifiers collectors emit
// (ISO alpha-2, ISO alpha-3, English or French names, common aliases)
// to the canonical alpha-2 code used throughout the engine.
package country

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/readiness-cli/internal/model"
)

// Resolver maps free-form country identifiers to known countries.
type Resolver struct {
	byKey  map[string]*model.Country
	byCode map[string]*model.Country
	codes  []string
}

// NewResolver indexes countries by code, ISO3, name and aliases.
func NewResolver(countries []model.Country) *Resolver {
	r := &Resolver{
		byKey:  make(map[string]*model.Country, len(countries)*4),
		byCode: make(map[string]*model.Country, len(countries)),
	}
	for i := range countries {
		c := &countries[i]
		r.byCode[c.Code] = c
		r.codes = append(r.codes, c.Code)
		for _, k := range append([]string{c.Code, c.ISO3, c.Name}, c.Aliases...) {
			if key := Key(k); key != "" {
				r.byKey[key] = c
			}
		}
	}
	return r
}

// Resolve returns the country matching id, or false.
func (r *Resolver) Resolve(id string) (*model.Country, bool) {
	c, ok := r.byKey[Key(id)]
	return c, ok
}

// Get returns the country with the canonical alpha-2 code.
func (r *Resolver) Get(code string) (*model.Country, bool) {
	c, ok := r.byCode[code]
	return c, ok
}

// Codes lists the canonical codes in registry order.
func (r *Resolver) Codes() []string {
	return append([]string(nil), r.codes...)
}

// Len returns the number of known countries.
func (r *Resolver) Len() int { return len(r.codes) }

// Key folds an identifier to its matching key: accents stripped, case
// folded, punctuation and spacing collapsed. "Côte d’Ivoire" and
// "cote d'ivoire" share a key.
func Key(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(s))
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
