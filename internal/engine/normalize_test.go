package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/readiness-cli/internal/model"
)

func TestNormalize(t *testing.T) {
	physicians := &model.IndicatorDefinition{Code: "physicians_per_10k", Kind: model.ValueKindNumeric, Min: 0, Max: 50, HigherIsBetter: true}
	cost := &model.IndicatorDefinition{Code: "broadband_cost_pct_gni", Kind: model.ValueKindNumeric, Min: 0, Max: 20}
	law := &model.IndicatorDefinition{Code: "data_protection_law", Kind: model.ValueKindPolicy, HigherIsBetter: true}
	who := &model.IndicatorDefinition{Code: "who_strategy_alignment", Kind: model.ValueKindBinary, HigherIsBetter: true}

	tests := []struct {
		name    string
		def     *model.IndicatorDefinition
		value   model.Value
		want    float64
		wantOOR bool
	}{
		{"numeric mid", physicians, model.NumericValue(25), 50, false},
		{"numeric at min", physicians, model.NumericValue(0), 0, false},
		{"numeric at max", physicians, model.NumericValue(50), 100, false},
		{"numeric above max clamps", physicians, model.NumericValue(80), 100, true},
		{"numeric below min clamps", physicians, model.NumericValue(-4), 0, true},
		{"lower is better inverts", cost, model.NumericValue(5), 75, false},
		{"lower is better clamps", cost, model.NumericValue(40), 0, true},
		{"policy absent", law, model.PolicyValue(model.PolicyAbsent), 0, false},
		{"policy partial", law, model.PolicyValue(model.PolicyPartial), 50, false},
		{"policy enacted", law, model.PolicyValue(model.PolicyEnacted), 100, false},
		{"binary true", who, model.BinaryValue(true), 100, false},
		{"binary false", who, model.BinaryValue(false), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.IndicatorRecord{ID: "r", IndicatorCode: tt.def.Code, Value: tt.value}
			got, err := Normalize(rec, tt.def)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.Value, 1e-9)
			assert.Equal(t, tt.wantOOR, got.OutOfRange)
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	numeric := &model.IndicatorDefinition{Code: "gdp_per_capita_usd", Kind: model.ValueKindNumeric, Min: 0, Max: 15000, HigherIsBetter: true}
	policy := &model.IndicatorDefinition{Code: "ai_strategy", Kind: model.ValueKindPolicy, HigherIsBetter: true}

	t.Run("unknown indicator", func(t *testing.T) {
		_, err := Normalize(model.IndicatorRecord{ID: "r", IndicatorCode: "ghost", Value: model.NumericValue(1)}, nil)
		var unknown *UnknownIndicatorError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Code)
	})

	tests := []struct {
		name   string
		def    *model.IndicatorDefinition
		value  model.Value
		reason model.RejectionReason
	}{
		{"nil value", numeric, nil, model.RejectBadValue},
		{"NaN", numeric, model.NumericValue(math.NaN()), model.RejectBadValue},
		{"Inf", numeric, model.NumericValue(math.Inf(1)), model.RejectBadValue},
		{"kind mismatch", numeric, model.PolicyValue(model.PolicyEnacted), model.RejectKindMismatch},
		{"policy out of domain", policy, model.PolicyValue(7), model.RejectBadValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(model.IndicatorRecord{ID: "r", IndicatorCode: tt.def.Code, Value: tt.value}, tt.def)
			var recErr *RecordError
			require.True(t, errors.As(err, &recErr))
			assert.Equal(t, tt.reason, recErr.Reason)
			assert.Equal(t, "r", recErr.RecordID)
		})
	}
}
