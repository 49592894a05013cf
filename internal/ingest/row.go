// Package ingest reads collector hand-off files (CSV, XLSX, JSON) into
// typed IndicatorRecords. Rows that cannot be parsed are reported, never
// guessed at.
package ingest

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Row is one collector row before typing. Every field is kept as text so
// a bad cell rejects its row instead of aborting the whole file.
type Row struct {
	Line                 int  `csv:"-" json:"-"`
	ID                   Cell `csv:"id" json:"id"`
	Country              Cell `csv:"country_code" json:"country_code"`
	Indicator            Cell `csv:"indicator_code" json:"indicator_code"`
	ValueKind            Cell `csv:"value_kind" json:"value_kind"`
	Value                Cell `csv:"value" json:"value"`
	Period               Cell `csv:"period" json:"period"`
	Source               Cell `csv:"source" json:"source"`
	SourceType           Cell `csv:"source_type" json:"source_type"`
	Confidence           Cell `csv:"confidence" json:"confidence"`
	Coverage             Cell `csv:"coverage" json:"coverage"`
	IsProxy              Cell `csv:"is_proxy" json:"is_proxy"`
	ProxySourceIndicator Cell `csv:"proxy_source_indicator" json:"proxy_source_indicator"`
}

// Cell is a text cell. In JSON it also accepts bare numbers and booleans,
// which collectors emit for value, confidence and is_proxy.
type Cell string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Cell(s)
		return nil
	}
	*c = Cell(data)
	return nil
}

func (c Cell) String() string { return strings.TrimSpace(string(c)) }

// headerAliases maps alternate column names to the canonical ones.
var headerAliases = map[string]string{
	"country":     "country_code",
	"iso2":        "country_code",
	"indicator":   "indicator_code",
	"kind":        "value_kind",
	"year":        "period",
	"source_name": "source",
	"proxy":       "is_proxy",
	"proxy_of":    "proxy_source_indicator",
}

// normalizeHeader lowercases header cells, turns spaces and dashes into
// underscores and applies aliases.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		out[i] = h
	}
	return out
}
