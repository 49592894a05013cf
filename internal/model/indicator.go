package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SourceType classifies where an indicator value came from. Each type
// carries a configurable reliability prior used during reconciliation.
type SourceType string

const (
	SourceOfficialStatistical SourceType = "official_statistical"
	SourcePeerReviewed        SourceType = "peer_reviewed"
	SourcePolicyDocument      SourceType = "policy_document"
	SourceEcosystemScan       SourceType = "ecosystem_scan"
	SourceNews                SourceType = "news"
)

// SourceTypes lists source types from most to least reliable.
var SourceTypes = []SourceType{
	SourceOfficialStatistical,
	SourcePeerReviewed,
	SourcePolicyDocument,
	SourceEcosystemScan,
	SourceNews,
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	for _, st := range SourceTypes {
		if s == st {
			return true
		}
	}
	return false
}

// FallbackKind names a gap-filling strategy.
type FallbackKind string

const (
	FallbackProxyIndicator   FallbackKind = "proxy_indicator"
	FallbackRegionalAverage  FallbackKind = "regional_average"
	FallbackInsufficientData FallbackKind = "insufficient_data"
)

// Fallback is one step of an indicator's ordered gap-filling chain.
type Fallback struct {
	Strategy  FallbackKind `yaml:"strategy" json:"strategy"`
	Indicator string       `yaml:"indicator,omitempty" json:"indicator,omitempty"`
}

// IndicatorDefinition is the static metadata for one indicator.
type IndicatorDefinition struct {
	Code               string     `yaml:"code" json:"code"`
	Name               string     `yaml:"name" json:"name"`
	Pillar             Pillar     `yaml:"pillar" json:"pillar"`
	Kind               ValueKind  `yaml:"kind" json:"kind"`
	Unit               string     `yaml:"unit,omitempty" json:"unit,omitempty"`
	Min                float64    `yaml:"min" json:"min"`
	Max                float64    `yaml:"max" json:"max"`
	HigherIsBetter     bool       `yaml:"higher_is_better" json:"higher_is_better"`
	Weight             float64    `yaml:"weight" json:"weight"`
	FrameworkAlignment bool       `yaml:"framework_alignment,omitempty" json:"framework_alignment,omitempty"`
	Fallbacks          []Fallback `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"`
}

// IndicatorRecord is one observed or estimated value from one source.
// Records are immutable: later collection runs add new records rather
// than editing old ones.
type IndicatorRecord struct {
	ID                   string     `json:"id"`
	CountryCode          string     `json:"country_code"`
	IndicatorCode        string     `json:"indicator_code"`
	Value                Value      `json:"-"`
	Period               Period     `json:"period"`
	Source               string     `json:"source"`
	SourceType           SourceType `json:"source_type"`
	Confidence           float64    `json:"confidence"`
	Coverage             string     `json:"coverage,omitempty"`
	IsProxy              bool       `json:"is_proxy"`
	ProxySourceIndicator string     `json:"proxy_source_indicator,omitempty"`
	CollectedAt          time.Time  `json:"collected_at"`
}

type recordAlias IndicatorRecord

type recordJSON struct {
	recordAlias
	ValueKind ValueKind `json:"value_kind"`
	RawValue  *float64  `json:"value"`
}

// MarshalJSON encodes the typed value as value_kind plus its numeric code.
func (r IndicatorRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{recordAlias: recordAlias(r)}
	if r.Value != nil {
		code := r.Value.Code()
		out.ValueKind = r.Value.Kind()
		out.RawValue = &code
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes value_kind plus numeric code into a typed value.
func (r *IndicatorRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = IndicatorRecord(in.recordAlias)
	if in.RawValue == nil {
		return eris.Errorf("model: record %s has no value", in.ID)
	}
	v, err := DecodeValue(in.ValueKind, *in.RawValue)
	if err != nil {
		return eris.Wrapf(err, "model: record %s", in.ID)
	}
	r.Value = v
	return nil
}
