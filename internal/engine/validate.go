package engine

import (
	"errors"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/readiness-cli/internal/country"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// accepted is a validated record with its canonical country code,
// definition and normalized value.
type accepted struct {
	rec     model.IndicatorRecord
	country string
	def     *model.IndicatorDefinition
	norm    Normalized
}

// validateRecord checks one record against the input contract and
// normalizes it. referenceYear bounds the period from above.
func validateRecord(rec model.IndicatorRecord, reg *registry.Registry, countries *country.Resolver, referenceYear int) (accepted, *RecordError) {
	if strings.TrimSpace(rec.CountryCode) == "" {
		return accepted{}, recordErr(rec, model.RejectMissingCountry, eris.New("empty country code"))
	}
	c, ok := countries.Resolve(rec.CountryCode)
	if !ok {
		return accepted{}, recordErr(rec, model.RejectUnknownCountry, eris.Errorf("unresolvable country %q", rec.CountryCode))
	}
	def, ok := reg.Indicator(rec.IndicatorCode)
	if !ok {
		return accepted{}, recordErr(rec, model.RejectUnknownIndicator, &UnknownIndicatorError{Code: rec.IndicatorCode})
	}
	if math.IsNaN(rec.Confidence) || rec.Confidence < 0 || rec.Confidence > 1 {
		return accepted{}, recordErr(rec, model.RejectBadConfidence, eris.Errorf("confidence %v outside [0, 1]", rec.Confidence))
	}
	if err := rec.Period.Validate(); err != nil {
		return accepted{}, recordErr(rec, model.RejectBadPeriod, err)
	}
	if referenceYear > 0 && rec.Period.Year > referenceYear {
		return accepted{}, recordErr(rec, model.RejectFuturePeriod,
			eris.Errorf("period %s is after reference year %d", rec.Period, referenceYear))
	}

	norm, err := Normalize(rec, def)
	if err != nil {
		var recErr *RecordError
		if errors.As(err, &recErr) {
			return accepted{}, recErr
		}
		return accepted{}, recordErr(rec, model.RejectBadValue, err)
	}
	return accepted{rec: rec, country: c.Code, def: def, norm: norm}, nil
}
