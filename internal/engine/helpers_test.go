package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return reg
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testRegistry(t), 4)
	require.NoError(t, err)
	return e
}

type recOpt func(*model.IndicatorRecord)

func withSource(st model.SourceType) recOpt {
	return func(r *model.IndicatorRecord) { r.SourceType = st }
}

func withConfidence(c float64) recOpt {
	return func(r *model.IndicatorRecord) { r.Confidence = c }
}

func withYear(y int) recOpt {
	return func(r *model.IndicatorRecord) { r.Period = model.Period{Year: y} }
}

func withID(id string) recOpt {
	return func(r *model.IndicatorRecord) { r.ID = id }
}

func asProxy(source string) recOpt {
	return func(r *model.IndicatorRecord) {
		r.IsProxy = true
		r.ProxySourceIndicator = source
	}
}

var recSeq int

func rec(countryCode, indicator string, v model.Value, opts ...recOpt) model.IndicatorRecord {
	recSeq++
	r := model.IndicatorRecord{
		ID:            fmt.Sprintf("rec-%05d", recSeq),
		CountryCode:   countryCode,
		IndicatorCode: indicator,
		Value:         v,
		Period:        model.Period{Year: 2023},
		Source:        "test",
		SourceType:    model.SourceOfficialStatistical,
		Confidence:    0.9,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

// midValue returns a value that normalizes to 50 for numeric indicators,
// and the top of the scale for binary and policy indicators.
func midValue(d model.IndicatorDefinition) model.Value {
	switch d.Kind {
	case model.ValueKindBinary:
		return model.BinaryValue(true)
	case model.ValueKindPolicy:
		return model.PolicyValue(model.PolicyEnacted)
	default:
		return model.NumericValue((d.Min + d.Max) / 2)
	}
}

// fullRecords returns one record per indicator for countryCode, skipping
// the listed pillars.
func fullRecords(reg *registry.Registry, countryCode string, skip ...model.Pillar) []model.IndicatorRecord {
	skipped := make(map[model.Pillar]bool)
	for _, p := range skip {
		skipped[p] = true
	}
	var out []model.IndicatorRecord
	for _, d := range reg.Indicators {
		if skipped[d.Pillar] {
			continue
		}
		out = append(out, rec(countryCode, d.Code, midValue(d)))
	}
	return out
}

func run(t *testing.T, e *Engine, in Input) *Result {
	t.Helper()
	res, err := e.Run(context.Background(), in)
	require.NoError(t, err)
	return res
}

func scoreFor(t *testing.T, res *Result, code string) *model.CountryScore {
	t.Helper()
	for i := range res.Scores {
		if res.Scores[i].CountryCode == code {
			return &res.Scores[i]
		}
	}
	t.Fatalf("no score for %s", code)
	return nil
}

func reconciledFor(cs *model.CountryScore, indicator string) *model.ReconciledIndicator {
	for i := range cs.Reconciled {
		if cs.Reconciled[i].IndicatorCode == indicator {
			return &cs.Reconciled[i]
		}
	}
	return nil
}
