package export

import (
	"math"
	"strings"

	"github.com/sells-group/readiness-cli/internal/model"
)

// ScoreRow is one country's line in the scores table.
type ScoreRow struct {
	CountryCode          string   `csv:"country_code"`
	CountryName          string   `csv:"country_name"`
	Region               string   `csv:"region"`
	IncomeClass          string   `csv:"income_class"`
	TotalScore           float64  `csv:"total_score"`
	BaseScore            float64  `csv:"base_score"`
	FrameworkBonus       float64  `csv:"framework_bonus"`
	Tier                 int      `csv:"readiness_tier"`
	TierLabel            string   `csv:"tier_label"`
	OverallConfidence    float64  `csv:"overall_confidence"`
	LowConfidence        bool     `csv:"low_confidence"`
	DataCompleteness     float64  `csv:"data_completeness_percentage"`
	Trajectory           string   `csv:"development_trajectory"`
	PriorTotalScore      *float64 `csv:"prior_total_score"`
	TrajectoryDelta      *float64 `csv:"trajectory_delta"`
	HumanCapital         *float64 `csv:"human_capital"`
	Physical             *float64 `csv:"physical_infrastructure"`
	Regulatory           *float64 `csv:"regulatory_framework"`
	Economic             *float64 `csv:"economic_market"`
	RegionPercentile     *float64 `csv:"region_percentile"`
	IncomePercentile     *float64 `csv:"income_class_percentile"`
	ContinentPercentile  *float64 `csv:"continent_percentile"`
	ConflictCount        int      `csv:"conflict_count"`
	ProxyCount           int      `csv:"proxy_count"`
	KeyStrengths         string   `csv:"key_strengths"`
	PriorityImprovements string   `csv:"priority_improvement_areas"`
}

// PillarRow is one (country, pillar) line.
type PillarRow struct {
	CountryCode        string   `csv:"country_code"`
	Pillar             string   `csv:"pillar"`
	Available          bool     `csv:"available"`
	Score              *float64 `csv:"score"`
	Confidence         float64  `csv:"confidence"`
	Weight             float64  `csv:"weight"`
	ProxiedWeight      float64  `csv:"proxied_weight"`
	Present            int      `csv:"present"`
	Proxied            int      `csv:"proxied"`
	Missing            int      `csv:"missing"`
	Conflicts          string   `csv:"conflicts"`
	RegionalPercentile *float64 `csv:"regional_percentile"`
}

// IndicatorRow is one indicator's line in a pillar breakdown.
type IndicatorRow struct {
	CountryCode     string   `csv:"country_code"`
	Pillar          string   `csv:"pillar"`
	Indicator       string   `csv:"indicator_code"`
	Status          string   `csv:"status"`
	Weight          float64  `csv:"weight"`
	EffectiveWeight float64  `csv:"effective_weight"`
	Value           *float64 `csv:"value"`
	Confidence      float64  `csv:"confidence"`
	Conflict        bool     `csv:"conflict"`
}

// RejectionRow is one audit entry for an excluded record.
type RejectionRow struct {
	RecordID  string `csv:"record_id"`
	Country   string `csv:"country_code"`
	Indicator string `csv:"indicator_code"`
	Reason    string `csv:"reason"`
	Detail    string `csv:"detail"`
}

// ScoreRows flattens run scores in run order.
func ScoreRows(run *model.AssessmentRun) []ScoreRow {
	rows := make([]ScoreRow, 0, len(run.Scores))
	for i := range run.Scores {
		cs := &run.Scores[i]
		row := ScoreRow{
			CountryCode:          cs.CountryCode,
			CountryName:          cs.CountryName,
			Region:               string(cs.Region),
			IncomeClass:          string(cs.IncomeClass),
			TotalScore:           cs.TotalScore,
			BaseScore:            cs.BaseScore,
			FrameworkBonus:       cs.FrameworkBonus,
			Tier:                 int(cs.Tier),
			TierLabel:            cs.TierLabel,
			OverallConfidence:    cs.OverallConfidence,
			LowConfidence:        cs.LowConfidence,
			DataCompleteness:     cs.DataCompleteness,
			Trajectory:           string(cs.Trajectory),
			PriorTotalScore:      cs.PriorTotalScore,
			TrajectoryDelta:      cs.TrajectoryDelta,
			HumanCapital:         pillarScore(cs, model.PillarHumanCapital),
			Physical:             pillarScore(cs, model.PillarPhysical),
			Regulatory:           pillarScore(cs, model.PillarRegulatory),
			Economic:             pillarScore(cs, model.PillarEconomic),
			ConflictCount:        cs.ConflictCount,
			ProxyCount:           cs.ProxyCount,
			KeyStrengths:         focusNames(cs.KeyStrengths),
			PriorityImprovements: focusNames(cs.PriorityImprovements),
		}
		for _, b := range cs.Benchmarks {
			p := b.TotalPercentile
			switch b.Scope {
			case model.ScopeRegion:
				row.RegionPercentile = &p
			case model.ScopeIncomeClass:
				row.IncomePercentile = &p
			case model.ScopeContinent:
				row.ContinentPercentile = &p
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// PillarRows flattens every pillar breakdown.
func PillarRows(run *model.AssessmentRun) []PillarRow {
	rows := make([]PillarRow, 0, len(run.Scores)*len(model.Pillars))
	for i := range run.Scores {
		cs := &run.Scores[i]
		for _, ps := range cs.Pillars {
			rows = append(rows, PillarRow{
				CountryCode:        cs.CountryCode,
				Pillar:             string(ps.Pillar),
				Available:          ps.Available,
				Score:              pillarScore(cs, ps.Pillar),
				Confidence:         ps.Confidence,
				Weight:             ps.Weight,
				ProxiedWeight:      ps.ProxiedWeight,
				Present:            len(ps.Present),
				Proxied:            len(ps.Proxied),
				Missing:            len(ps.Missing),
				Conflicts:          strings.Join(ps.Conflicts, ";"),
				RegionalPercentile: ps.RegionalPercentile,
			})
		}
	}
	return rows
}

// IndicatorRows flattens every indicator line of every pillar.
func IndicatorRows(run *model.AssessmentRun) []IndicatorRow {
	var rows []IndicatorRow
	for i := range run.Scores {
		cs := &run.Scores[i]
		for _, ps := range cs.Pillars {
			for _, ic := range ps.Indicators {
				rows = append(rows, IndicatorRow{
					CountryCode:     cs.CountryCode,
					Pillar:          string(ps.Pillar),
					Indicator:       ic.Code,
					Status:          string(ic.Status),
					Weight:          ic.Weight,
					EffectiveWeight: round(ic.EffectiveWeight, 6),
					Value:           ic.Value,
					Confidence:      ic.Confidence,
					Conflict:        ic.Conflict,
				})
			}
		}
	}
	return rows
}

// RejectionRows flattens the run's rejection audit.
func RejectionRows(run *model.AssessmentRun) []RejectionRow {
	rows := make([]RejectionRow, 0, len(run.Rejections))
	for _, r := range run.Rejections {
		rows = append(rows, RejectionRow{
			RecordID:  r.RecordID,
			Country:   r.CountryCode,
			Indicator: r.IndicatorCode,
			Reason:    string(r.Reason),
			Detail:    r.Detail,
		})
	}
	return rows
}

// pillarScore returns nil for a pillar without data so tables show a
// blank rather than a misleading zero.
func pillarScore(cs *model.CountryScore, p model.Pillar) *float64 {
	ps := cs.Pillar(p)
	if ps == nil || !ps.Available {
		return nil
	}
	v := ps.Score
	return &v
}

func focusNames(areas []model.FocusArea) string {
	names := make([]string, len(areas))
	for i, a := range areas {
		names[i] = string(a.Pillar)
	}
	return strings.Join(names, ";")
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
