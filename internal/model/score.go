package model

// Contribution records one IndicatorRecord's part in a reconciled value.
type Contribution struct {
	RecordID        string     `json:"record_id"`
	Source          string     `json:"source"`
	SourceType      SourceType `json:"source_type"`
	Period          Period     `json:"period"`
	RawValue        float64    `json:"raw_value"`
	NormalizedValue float64    `json:"normalized_value"`
	Confidence      float64    `json:"confidence"`
	Weight          float64    `json:"weight"`
	OutOfRange      bool       `json:"out_of_range,omitempty"`
}

// ReconciledIndicator is the single value chosen for a (country,
// indicator, period) key after deduplication or proxy substitution.
type ReconciledIndicator struct {
	CountryCode   string         `json:"country_code"`
	IndicatorCode string         `json:"indicator_code"`
	Pillar        Pillar         `json:"pillar"`
	Period        Period         `json:"period"`
	Value         float64        `json:"value"`
	Confidence    float64        `json:"confidence"`
	Conflict      bool           `json:"conflict"`
	Spread        float64        `json:"spread,omitempty"`
	OutOfRange    bool           `json:"out_of_range,omitempty"`
	StaleYears    int            `json:"stale_years,omitempty"`
	IsProxy       bool           `json:"is_proxy"`
	ProxyStrategy FallbackKind   `json:"proxy_strategy,omitempty"`
	ProxySource   string         `json:"proxy_source,omitempty"`
	Contributions []Contribution `json:"contributions"`
	// Superseded lists accepted records for the indicator that lost to a
	// newer period or to direct measurements.
	Superseded    []string       `json:"superseded_record_ids,omitempty"`
}

// IndicatorStatus explains how an indicator fed (or failed to feed) its pillar.
type IndicatorStatus string

const (
	IndicatorPresent          IndicatorStatus = "present"
	IndicatorProxied          IndicatorStatus = "proxied"
	IndicatorMissing          IndicatorStatus = "missing"
	IndicatorInsufficientData IndicatorStatus = "insufficient_data"
)

// IndicatorContribution is one indicator's line in a pillar breakdown.
type IndicatorContribution struct {
	Code            string          `json:"code"`
	Status          IndicatorStatus `json:"status"`
	Weight          float64         `json:"weight"`
	EffectiveWeight float64         `json:"effective_weight"`
	Value           *float64        `json:"value,omitempty"`
	Confidence      float64         `json:"confidence"`
	Conflict        bool            `json:"conflict,omitempty"`
}

// PillarScore is one country's score for one pillar.
type PillarScore struct {
	Pillar        Pillar                  `json:"pillar"`
	Available     bool                    `json:"available"`
	Score         float64                 `json:"score"`
	Confidence    float64                 `json:"confidence"`
	Weight        float64                 `json:"weight"`
	ProxiedWeight float64                 `json:"proxied_weight"`
	Present       []string                `json:"present"`
	Proxied       []string                `json:"proxied"`
	Missing       []string                `json:"missing"`
	Conflicts     []string                `json:"conflicts,omitempty"`
	Indicators    []IndicatorContribution `json:"indicators"`

	// RegionalPercentile is set by the benchmarker; nil when the pillar
	// has no data.
	RegionalPercentile *float64 `json:"regional_percentile,omitempty"`
}

// Tier is the discrete readiness classification.
type Tier int

const (
	TierImplementationReady Tier = 1
	TierFoundationBuilding  Tier = 2
	TierDevelopment         Tier = 3
)

// Label returns the tier's display label.
func (t Tier) Label() string {
	switch t {
	case TierImplementationReady:
		return "Implementation Ready"
	case TierFoundationBuilding:
		return "Foundation Building"
	case TierDevelopment:
		return "Development"
	}
	return "Unclassified"
}

// Trajectory describes movement relative to the previous assessment run.
type Trajectory string

const (
	TrajectoryImproving Trajectory = "improving"
	TrajectoryStable    Trajectory = "stable"
	TrajectoryDeclining Trajectory = "declining"
)

// FocusArea is a pillar singled out as a strength or an improvement priority.
type FocusArea struct {
	Pillar Pillar  `json:"pillar"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Delta  float64 `json:"delta"`
}

// BenchmarkScope names the peer set a percentile is computed against.
type BenchmarkScope string

const (
	ScopeRegion      BenchmarkScope = "region"
	ScopeIncomeClass BenchmarkScope = "income_class"
	ScopeContinent   BenchmarkScope = "continent"
)

// Benchmark is a country's percentile rank within one peer set.
type Benchmark struct {
	Scope             BenchmarkScope     `json:"scope"`
	Group             string             `json:"group"`
	Peers             int                `json:"peers"`
	TotalPercentile   float64            `json:"total_percentile"`
	PillarPercentiles map[Pillar]float64 `json:"pillar_percentiles"`
}

// CountryScore is one country's complete assessment within a run.
type CountryScore struct {
	CountryCode           string                `json:"country_code"`
	CountryName           string                `json:"country_name"`
	Region                Region                `json:"region"`
	IncomeClass           IncomeClass           `json:"income_class"`
	BaseScore             float64               `json:"base_score"`
	FrameworkBonus        float64               `json:"framework_bonus"`
	TotalScore            float64               `json:"total_score"`
	OverallConfidence     float64               `json:"overall_confidence"`
	DataCompleteness      float64               `json:"data_completeness_percentage"`
	Tier                  Tier                  `json:"readiness_tier"`
	TierLabel             string                `json:"tier_label"`
	TierJustification     string                `json:"tier_justification"`
	LowConfidence         bool                  `json:"low_confidence"`
	Trajectory            Trajectory            `json:"development_trajectory"`
	PriorTotalScore       *float64              `json:"prior_total_score"`
	TrajectoryDelta       *float64              `json:"trajectory_delta,omitempty"`
	Pillars               []PillarScore         `json:"pillars"`
	KeyStrengths          []FocusArea           `json:"key_strengths"`
	PriorityImprovements  []FocusArea           `json:"priority_improvement_areas"`
	Benchmarks            []Benchmark           `json:"benchmarks"`
	ConflictCount         int                   `json:"conflict_count"`
	ProxyCount            int                   `json:"proxy_count"`
	ContributingRecordIDs []string              `json:"contributing_record_ids"`
	Reconciled            []ReconciledIndicator `json:"reconciled_indicators"`
}

// Pillar returns the pillar breakdown for p, or nil if absent.
func (c *CountryScore) Pillar(p Pillar) *PillarScore {
	for i := range c.Pillars {
		if c.Pillars[i].Pillar == p {
			return &c.Pillars[i]
		}
	}
	return nil
}
