package store

import (
	"time"

	"github.com/sells-group/readiness-cli/internal/model"
)

func sampleRecords() []model.IndicatorRecord {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.IndicatorRecord{
		{
			ID: "rec-1", CountryCode: "KE", IndicatorCode: "emr_adoption_pct",
			Value: model.NumericValue(42.5), Period: model.Period{Year: 2023},
			Source: "who-gho", SourceType: model.SourceOfficialStatistical, Confidence: 0.9,
			Coverage: "national", CollectedAt: at,
		},
		{
			ID: "rec-2", CountryCode: "KE", IndicatorCode: "data_protection_law",
			Value: model.PolicyValue(model.PolicyEnacted), Period: model.Period{Year: 2022, Quarter: 3},
			Source: "policy-scan", SourceType: model.SourcePolicyDocument, Confidence: 0.8,
			CollectedAt: at,
		},
		{
			ID: "rec-3", CountryCode: "NG", IndicatorCode: "ai_strategy_published",
			Value: model.BinaryValue(true), Period: model.Period{Year: 2021},
			Source: "news", SourceType: model.SourceNews, Confidence: 0.4,
			IsProxy: true, ProxySourceIndicator: "digital_health_strategy", CollectedAt: at,
		},
	}
}

func sampleRun(id, version, prior string) *model.AssessmentRun {
	v := 55.5
	return &model.AssessmentRun{
		ID:                 id,
		MethodologyVersion: version,
		ReferenceYear:      2023,
		PriorRunID:         prior,
		Methodology: model.MethodologySnapshot{
			Version:       version,
			Hash:          "abc123",
			PillarWeights: map[model.Pillar]float64{model.PillarHumanCapital: 0.3},
			Tier1Min:      70,
			Tier2Min:      40,
			LowConfidence: 0.4,
			Indicators:    26,
		},
		RecordCount: 3,
		Rejections: []model.RecordRejection{
			{RecordID: "rec-9", CountryCode: "XX", Reason: model.RejectUnknownCountry, Detail: "unknown country XX"},
		},
		Scores: []model.CountryScore{
			{
				CountryCode: "KE", CountryName: "Kenya", Region: model.RegionEastern,
				TotalScore: 61.25, OverallConfidence: 0.72, Tier: model.TierFoundationBuilding,
				TierLabel: "Foundation Building", Trajectory: model.TrajectoryStable,
				Pillars: []model.PillarScore{{Pillar: model.PillarPhysical, Available: true, Score: 61.25}},
				Reconciled: []model.ReconciledIndicator{
					{CountryCode: "KE", IndicatorCode: "emr_adoption_pct", Pillar: model.PillarPhysical, Value: v, Confidence: 0.9,
						Contributions: []model.Contribution{{RecordID: "rec-1", NormalizedValue: v}}},
					{CountryCode: "KE", IndicatorCode: "data_protection_law", Pillar: model.PillarRegulatory, Value: 100, Confidence: 0.8},
				},
			},
			{
				CountryCode: "NG", CountryName: "Nigeria", Region: model.RegionWestern,
				TotalScore: 38.1, OverallConfidence: 0.3, Tier: model.TierDevelopment, LowConfidence: true,
				Reconciled: []model.ReconciledIndicator{},
			},
		},
		StartedAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}
