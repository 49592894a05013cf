package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/readiness-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func sampleRun() *model.AssessmentRun {
	done := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.AssessmentRun{
		ID:                 "run-1",
		MethodologyVersion: "2.0",
		Status:             model.RunStatusComplete,
		ReferenceYear:      2024,
		Methodology:        model.MethodologySnapshot{Version: "2.0", Hash: "abc"},
		RecordCount:        3,
		Rejections: []model.RecordRejection{
			{RecordID: "bad-1", CountryCode: "XX", IndicatorCode: "emr_adoption_pct", Reason: model.RejectUnknownCountry, Detail: "unknown country XX"},
		},
		Scores: []model.CountryScore{
			{
				CountryCode:       "KE",
				CountryName:       "Kenya",
				Region:            model.RegionEastern,
				IncomeClass:       "lower_middle",
				BaseScore:         61.5,
				FrameworkBonus:    2.5,
				TotalScore:        64,
				OverallConfidence: 0.72,
				DataCompleteness:  85,
				Tier:              model.TierFoundationBuilding,
				TierLabel:         "Foundation Building",
				Trajectory:        model.TrajectoryImproving,
				PriorTotalScore:   ptr(58),
				TrajectoryDelta:   ptr(6),
				Pillars: []model.PillarScore{
					{
						Pillar: model.PillarHumanCapital, Available: true, Score: 55, Confidence: 0.8, Weight: 0.3,
						Present: []string{"physicians_per_10k"}, Missing: []string{"stem_graduates_pct"},
						Indicators: []model.IndicatorContribution{
							{Code: "physicians_per_10k", Status: model.IndicatorPresent, Weight: 0.5, EffectiveWeight: 1.0 / 3, Value: ptr(40), Confidence: 0.8},
							{Code: "stem_graduates_pct", Status: model.IndicatorMissing, Weight: 0.25},
						},
						RegionalPercentile: ptr(50),
					},
					{Pillar: model.PillarRegulatory, Available: false, Weight: 0.25},
				},
				KeyStrengths:         []model.FocusArea{{Pillar: model.PillarHumanCapital}},
				PriorityImprovements: []model.FocusArea{{Pillar: model.PillarRegulatory}, {Pillar: model.PillarEconomic}},
				Benchmarks: []model.Benchmark{
					{Scope: model.ScopeRegion, Group: "eastern_africa", Peers: 18, TotalPercentile: 75},
					{Scope: model.ScopeContinent, Group: "africa", Peers: 54, TotalPercentile: 80},
				},
				ConflictCount: 1,
			},
			{CountryCode: "NA", CountryName: "Namibia", Tier: model.TierDevelopment, Trajectory: model.TrajectoryStable},
		},
		StartedAt:   done.Add(-time.Minute),
		CompletedAt: &done,
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.FixedZone("EAT", 3*3600))
	require.NoError(t, WriteJSON(&buf, sampleRun(), now))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, Schema, doc["schema"])
	assert.Equal(t, "2025-03-01T21:00:00Z", doc["generated_at"])
	assert.Equal(t, "run-1", doc["assessment_id"])
	assert.Equal(t, "2.0", doc["methodology_version"])

	scores := doc["country_scores"].([]any)
	require.Len(t, scores, 2)
	na := scores[1].(map[string]any)
	assert.Nil(t, na["prior_total_score"], "first assessments keep a null prior")
}

func TestWriteJSON_Deterministic(t *testing.T) {
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	var a, b bytes.Buffer
	require.NoError(t, WriteJSON(&a, sampleRun(), now))
	require.NoError(t, WriteJSON(&b, sampleRun(), now))
	assert.Equal(t, a.String(), b.String())
}

func TestWriteJSON_NilRun(t *testing.T) {
	assert.Error(t, WriteJSON(&bytes.Buffer{}, nil, time.Now()))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRun()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("column %s missing", name)
		return -1
	}

	ke := records[1]
	assert.Equal(t, "KE", ke[col("country_code")])
	assert.Equal(t, "64", ke[col("total_score")])
	assert.Equal(t, "2", ke[col("readiness_tier")])
	assert.Equal(t, "improving", ke[col("development_trajectory")])
	assert.Equal(t, "58", ke[col("prior_total_score")])
	assert.Equal(t, "55", ke[col("human_capital")])
	assert.Equal(t, "", ke[col("regulatory_framework")], "unavailable pillars are blank")
	assert.Equal(t, "75", ke[col("region_percentile")])
	assert.Equal(t, "", ke[col("income_class_percentile")])
	assert.Equal(t, "80", ke[col("continent_percentile")])
	assert.Equal(t, "regulatory_framework;economic_market", ke[col("priority_improvement_areas")])

	na := records[2]
	assert.Equal(t, "NA", na[col("country_code")])
	assert.Equal(t, "", na[col("prior_total_score")])
}

func TestWriteCSV_EmptyRunWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, &model.AssessmentRun{ID: "empty"}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "country_code", records[0][0])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRun()))

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	for _, name := range []string{SheetScores, SheetPillars, SheetIndicators, SheetRejections} {
		_, ok := f.Sheet[name]
		assert.True(t, ok, "sheet %s", name)
	}

	scores := f.Sheet[SheetScores]
	require.Len(t, scores.Rows, 3)
	assert.Equal(t, "country_code", scores.Rows[0].Cells[0].String())
	assert.Equal(t, "KE", scores.Rows[1].Cells[0].String())
	assert.Equal(t, "NA", scores.Rows[2].Cells[0].String(), "country codes stay text")

	total, err := scores.Rows[1].Cells[4].Float()
	require.NoError(t, err)
	assert.InDelta(t, 64, total, 1e-9)

	assert.Len(t, f.Sheet[SheetPillars].Rows, 3)
	assert.Len(t, f.Sheet[SheetIndicators].Rows, 3)
	rej := f.Sheet[SheetRejections]
	require.Len(t, rej.Rows, 2)
	assert.Equal(t, "unknown_country", rej.Rows[1].Cells[3].String())
}

func TestIndicatorRows_RoundsEffectiveWeight(t *testing.T) {
	rows := IndicatorRows(sampleRun())
	require.Len(t, rows, 2)
	assert.Equal(t, 0.333333, rows[0].EffectiveWeight)
	assert.Equal(t, "human_capital", rows[0].Pillar)
	assert.Nil(t, rows[1].Value)
}

func TestPillarRows(t *testing.T) {
	rows := PillarRows(sampleRun())
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Present)
	assert.Equal(t, 1, rows[0].Missing)
	require.NotNil(t, rows[0].Score)
	assert.InDelta(t, 55, *rows[0].Score, 1e-9)
	assert.Nil(t, rows[1].Score)
	assert.InDelta(t, 50, *rows[0].RegionalPercentile, 1e-9)
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"42.5", true},
		{"-1", true},
		{"", false},
		{"NA", false},
		{"NaN", false},
		{"Inf", false},
		{"true", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := numeric(tt.in)
			assert.Equal(t, tt.want, ok)
		})
	}
}
