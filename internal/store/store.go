// Package store persists indicator records and assessment runs. Records
// are append-only; runs move running -> complete|failed exactly once and
// their derived rows are written in the same transaction that completes
// them.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-cli/internal/model"
)

var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrRunInProgress is returned by BeginRun when another run for the
	// same methodology version is still running.
	ErrRunInProgress = eris.New("store: run already in progress for methodology version")
	// ErrStaleBaseline is returned by CompleteRun when a different run
	// completed after this one read its prior run.
	ErrStaleBaseline = eris.New("store: prior run changed while assessment was running")
	// ErrRunNotActive is returned when completing or failing a run that is
	// no longer running.
	ErrRunNotActive = eris.New("store: run is not running")
)

// releasedReason is stored on runs marked failed by ReleaseRuns.
const releasedReason = "released: orphaned running run"

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	MethodologyVersion string          `json:"methodology_version,omitempty"`
	Status             model.RunStatus `json:"status,omitempty"`
	Limit              int             `json:"limit,omitempty"`
	Offset             int             `json:"offset,omitempty"`
}

// RecordFilter narrows ListRecords. Zero values match everything.
type RecordFilter struct {
	CountryCode   string
	IndicatorCode string
	FromYear      int
	ToYear        int
}

// Store defines the persistence interface for the readiness engine.
type Store interface {
	// Indicator records
	AppendRecords(ctx context.Context, records []model.IndicatorRecord) (int, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.IndicatorRecord, error)

	// Assessment runs
	BeginRun(ctx context.Context, run *model.AssessmentRun) error
	CompleteRun(ctx context.Context, run *model.AssessmentRun) error
	FailRun(ctx context.Context, runID, reason string) error
	GetRun(ctx context.Context, runID string) (*model.AssessmentRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunSummary, error)
	LatestCompletedRun(ctx context.Context, methodologyVersion string) (*model.AssessmentRun, error)
	ReleaseRuns(ctx context.Context, methodologyVersion string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// recordColumns is the indicator_records column order used by recordRow.
var recordColumns = []string{
	"id", "country_code", "indicator_code", "value_kind", "value",
	"period_year", "period_quarter", "source", "source_type", "confidence",
	"coverage", "is_proxy", "proxy_source_indicator", "collected_at",
}

func recordRow(r model.IndicatorRecord) ([]any, error) {
	if r.ID == "" {
		return nil, eris.New("store: record without id")
	}
	if r.Value == nil {
		return nil, eris.Errorf("store: record %s has no value", r.ID)
	}
	collected := r.CollectedAt
	if collected.IsZero() {
		collected = time.Now().UTC()
	}
	return []any{
		r.ID, r.CountryCode, r.IndicatorCode, string(r.Value.Kind()), r.Value.Code(),
		r.Period.Year, r.Period.Quarter, r.Source, string(r.SourceType), r.Confidence,
		r.Coverage, r.IsProxy, r.ProxySourceIndicator, collected.UTC(),
	}, nil
}

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (model.IndicatorRecord, error) {
	var (
		r    model.IndicatorRecord
		kind string
		code float64
		st   string
	)
	err := row.Scan(&r.ID, &r.CountryCode, &r.IndicatorCode, &kind, &code,
		&r.Period.Year, &r.Period.Quarter, &r.Source, &st, &r.Confidence,
		&r.Coverage, &r.IsProxy, &r.ProxySourceIndicator, &r.CollectedAt)
	if err != nil {
		return r, eris.Wrap(err, "store: scan record")
	}
	r.SourceType = model.SourceType(st)
	v, err := model.DecodeValue(model.ValueKind(kind), code)
	if err != nil {
		return r, eris.Wrapf(err, "store: decode record %s", r.ID)
	}
	r.Value = v
	return r, nil
}

// scoreDocument is the stored form of a CountryScore. Reconciled
// indicators live in their own table.
func scoreDocument(cs model.CountryScore) ([]byte, error) {
	cs.Reconciled = nil
	data, err := json.Marshal(cs)
	return data, eris.Wrapf(err, "store: marshal score %s", cs.CountryCode)
}

// attachReconciled distributes reconciled indicators onto their scores.
func attachReconciled(scores []model.CountryScore, recs []model.ReconciledIndicator) {
	byCountry := make(map[string][]model.ReconciledIndicator)
	for _, r := range recs {
		byCountry[r.CountryCode] = append(byCountry[r.CountryCode], r)
	}
	for i := range scores {
		list := byCountry[scores[i].CountryCode]
		sort.Slice(list, func(a, b int) bool { return list[a].IndicatorCode < list[b].IndicatorCode })
		if list == nil {
			list = []model.ReconciledIndicator{}
		}
		scores[i].Reconciled = list
	}
}

func marshalRunMeta(run *model.AssessmentRun) (methodology, rejections []byte, err error) {
	methodology, err = json.Marshal(run.Methodology)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal methodology")
	}
	rej := run.Rejections
	if rej == nil {
		rej = []model.RecordRejection{}
	}
	rejections, err = json.Marshal(rej)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal rejections")
	}
	return methodology, rejections, nil
}

func unmarshalRunMeta(run *model.AssessmentRun, methodology, rejections []byte) error {
	if len(methodology) > 0 {
		if err := json.Unmarshal(methodology, &run.Methodology); err != nil {
			return eris.Wrap(err, "store: unmarshal methodology")
		}
	}
	run.Rejections = []model.RecordRejection{}
	if len(rejections) > 0 {
		if err := json.Unmarshal(rejections, &run.Rejections); err != nil {
			return eris.Wrap(err, "store: unmarshal rejections")
		}
	}
	return nil
}

// checkBaseline compares the latest completed run id with the prior run
// the assessment was computed against.
func checkBaseline(run *model.AssessmentRun, latest string) error {
	if latest != run.PriorRunID {
		return eris.Wrapf(ErrStaleBaseline, "run %s read prior %q but latest is %q", run.ID, run.PriorRunID, latest)
	}
	return nil
}
