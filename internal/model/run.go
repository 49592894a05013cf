package model

import "time"

// RunStatus represents the lifecycle state of an assessment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RejectionReason classifies why a record was excluded from a run.
type RejectionReason string

const (
	RejectUnknownIndicator RejectionReason = "unknown_indicator"
	RejectUnknownCountry   RejectionReason = "unknown_country"
	RejectMissingCountry   RejectionReason = "missing_country"
	RejectBadConfidence    RejectionReason = "invalid_confidence"
	RejectBadPeriod        RejectionReason = "invalid_period"
	RejectBadValue         RejectionReason = "invalid_value"
	RejectKindMismatch     RejectionReason = "value_kind_mismatch"
	RejectStale            RejectionReason = "stale"
	RejectFuturePeriod     RejectionReason = "future_period"
	RejectDuplicate        RejectionReason = "duplicate_record"
)

// RecordRejection is the audit entry for an excluded record.
type RecordRejection struct {
	RecordID      string          `json:"record_id"`
	CountryCode   string          `json:"country_code,omitempty"`
	IndicatorCode string          `json:"indicator_code,omitempty"`
	Reason        RejectionReason `json:"reason"`
	Detail        string          `json:"detail"`
}

// MethodologySnapshot freezes the weights and thresholds a run used so
// its scores can be reproduced later.
type MethodologySnapshot struct {
	Version       string                 `json:"version"`
	Hash          string                 `json:"hash"`
	PillarWeights map[Pillar]float64     `json:"pillar_weights"`
	Priors        map[SourceType]float64 `json:"source_type_priors"`
	Tier1Min      float64                `json:"tier1_min_score"`
	Tier2Min      float64                `json:"tier2_min_score"`
	LowConfidence float64                `json:"low_confidence_threshold"`
	Indicators    int                    `json:"indicator_count"`
}

// AssessmentRun groups every CountryScore produced by one execution of
// the engine. Runs are append-only.
type AssessmentRun struct {
	ID                 string              `json:"assessment_id"`
	MethodologyVersion string              `json:"methodology_version"`
	Status             RunStatus           `json:"status"`
	ReferenceYear      int                 `json:"reference_year"`
	PriorRunID         string              `json:"prior_run_id,omitempty"`
	Methodology        MethodologySnapshot `json:"methodology"`
	RecordCount        int                 `json:"record_count"`
	Rejections         []RecordRejection   `json:"rejections"`
	Scores             []CountryScore      `json:"country_scores"`
	Error              string              `json:"error,omitempty"`
	StartedAt          time.Time           `json:"started_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
}

// Score returns the CountryScore for code, or nil.
func (r *AssessmentRun) Score(code string) *CountryScore {
	for i := range r.Scores {
		if r.Scores[i].CountryCode == code {
			return &r.Scores[i]
		}
	}
	return nil
}

// RunSummary is the metadata row listed for runs without their scores.
type RunSummary struct {
	ID                 string     `json:"assessment_id"`
	MethodologyVersion string     `json:"methodology_version"`
	Status             RunStatus  `json:"status"`
	ReferenceYear      int        `json:"reference_year"`
	PriorRunID         string     `json:"prior_run_id,omitempty"`
	CountryCount       int        `json:"country_count"`
	RecordCount        int        `json:"record_count"`
	RejectionCount     int        `json:"rejection_count"`
	Error              string     `json:"error,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}
