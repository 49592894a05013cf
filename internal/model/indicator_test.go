package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndicatorRecord_JSON(t *testing.T) {
	t.Parallel()

	rec := IndicatorRecord{
		ID:            "r-1",
		CountryCode:   "KE",
		IndicatorCode: "data_protection_law",
		Value:         PolicyValue(PolicyEnacted),
		Period:        Period{Year: 2023},
		Source:        "kenya-gazette",
		SourceType:    SourcePolicyDocument,
		Confidence:    0.9,
		CollectedAt:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value_kind":"policy"`)
	assert.Contains(t, string(data), `"value":2`)

	var got IndicatorRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
}

func TestIndicatorRecord_UnmarshalRejectsBadValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"missing value", `{"id":"a","value_kind":"numeric"}`},
		{"binary out of domain", `{"id":"b","value_kind":"binary","value":2}`},
		{"unknown kind", `{"id":"c","value_kind":"text","value":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r IndicatorRecord
			assert.Error(t, json.Unmarshal([]byte(tt.doc), &r))
		})
	}
}

func TestSourceType_Valid(t *testing.T) {
	t.Parallel()
	for _, st := range SourceTypes {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, SourceType("blog").Valid())
}

func TestPillar(t *testing.T) {
	t.Parallel()
	assert.Len(t, Pillars, 4)
	for _, p := range Pillars {
		assert.True(t, p.Valid())
		assert.NotEqual(t, string(p), p.DisplayName())
	}
	assert.False(t, Pillar("culture").Valid())
}

func TestTier_Label(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Implementation Ready", TierImplementationReady.Label())
	assert.Equal(t, "Foundation Building", TierFoundationBuilding.Label())
	assert.Equal(t, "Development", TierDevelopment.Label())
	assert.Equal(t, "Unclassified", Tier(0).Label())
}

func TestAssessmentRun_Score(t *testing.T) {
	t.Parallel()
	run := AssessmentRun{Scores: []CountryScore{
		{CountryCode: "GH", Pillars: []PillarScore{{Pillar: PillarEconomic, Score: 40}}},
		{CountryCode: "KE"},
	}}

	gh := run.Score("GH")
	require.NotNil(t, gh)
	require.NotNil(t, gh.Pillar(PillarEconomic))
	assert.InDelta(t, 40, gh.Pillar(PillarEconomic).Score, 1e-9)
	assert.Nil(t, gh.Pillar(PillarRegulatory))
	assert.Nil(t, run.Score("ZZ"))
}
