package engine

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-cli/internal/model"
)

// Normalized is a record's value on the common 0-100 scale.
type Normalized struct {
	Value      float64
	OutOfRange bool
}

// Normalize maps rec's raw value onto 0-100 using def's global bounds.
// Numeric values outside [Min, Max] are clamped and flagged. Binary
// values map to {0, 100} and policy values to {0, 50, 100}. The scale is
// inverted when def is lower-is-better.
func Normalize(rec model.IndicatorRecord, def *model.IndicatorDefinition) (Normalized, error) {
	if def == nil {
		return Normalized{}, &UnknownIndicatorError{Code: rec.IndicatorCode}
	}
	if rec.Value == nil {
		return Normalized{}, recordErr(rec, model.RejectBadValue, eris.New("no value"))
	}
	if rec.Value.Kind() != def.Kind {
		return Normalized{}, recordErr(rec, model.RejectKindMismatch,
			eris.Errorf("indicator %s expects %s, got %s", def.Code, def.Kind, rec.Value.Kind()))
	}

	var out Normalized
	switch v := rec.Value.(type) {
	case model.NumericValue:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Normalized{}, recordErr(rec, model.RejectBadValue, eris.New("non-finite numeric value"))
		}
		if f < def.Min {
			f, out.OutOfRange = def.Min, true
		} else if f > def.Max {
			f, out.OutOfRange = def.Max, true
		}
		out.Value = (f - def.Min) / (def.Max - def.Min) * 100
	case model.BinaryValue:
		if v {
			out.Value = 100
		}
	case model.PolicyValue:
		switch model.PolicyStatus(v) {
		case model.PolicyAbsent:
			out.Value = 0
		case model.PolicyPartial:
			out.Value = 50
		case model.PolicyEnacted:
			out.Value = 100
		default:
			return Normalized{}, recordErr(rec, model.RejectBadValue, eris.Errorf("policy code %d out of domain", int(v)))
		}
	default:
		return Normalized{}, recordErr(rec, model.RejectBadValue, eris.Errorf("unsupported value type %T", v))
	}

	if !def.HigherIsBetter {
		out.Value = 100 - out.Value
	}
	return out, nil
}
