package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/country"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// RowError explains why a row was not converted.
type RowError struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return "ingest: line " + strconv.Itoa(e.Line) + ": " + e.Reason
}

// Result is the outcome of converting a batch of rows.
type Result struct {
	Records  []model.IndicatorRecord
	Rejected []RowError
}

// Converter types rows against a methodology. Country names resolve to
// alpha-2 codes; identifiers the resolver does not know pass through
// upper-cased so the engine records the rejection in the run audit.
type Converter struct {
	reg      *registry.Registry
	resolver *country.Resolver
	now      func() time.Time
	newID    func() string
}

// NewConverter returns a Converter bound to reg and its country list.
func NewConverter(reg *registry.Registry) *Converter {
	return &Converter{
		reg:      reg,
		resolver: country.NewResolver(reg.Countries),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Convert types every row. A row that fails is logged and reported in
// Result.Rejected; the rest still convert. Every record in one batch
// shares the same CollectedAt.
func (c *Converter) Convert(rows []Row) Result {
	collected := c.now()
	res := Result{Records: make([]model.IndicatorRecord, 0, len(rows))}
	for _, row := range rows {
		rec, err := c.convert(row, collected)
		if err != nil {
			re := RowError{Line: row.Line, ID: row.ID.String(), Reason: err.Error()}
			zap.L().Warn("ingest: row rejected",
				zap.Int("line", re.Line),
				zap.String("record_id", re.ID),
				zap.String("reason", re.Reason),
			)
			res.Rejected = append(res.Rejected, re)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func (c *Converter) convert(row Row, collected time.Time) (model.IndicatorRecord, error) {
	rec := model.IndicatorRecord{
		ID:                   row.ID.String(),
		IndicatorCode:        strings.ToLower(row.Indicator.String()),
		Source:               row.Source.String(),
		SourceType:           model.SourceType(strings.ToLower(row.SourceType.String())),
		Coverage:             row.Coverage.String(),
		ProxySourceIndicator: strings.ToLower(row.ProxySourceIndicator.String()),
		CollectedAt:          collected,
	}
	if rec.ID == "" {
		rec.ID = c.newID()
	}

	raw := row.Country.String()
	if raw == "" {
		return rec, eris.New("missing country")
	}
	if ct, ok := c.resolver.Resolve(raw); ok {
		rec.CountryCode = ct.Code
	} else {
		rec.CountryCode = strings.ToUpper(raw)
	}

	if rec.IndicatorCode == "" {
		return rec, eris.New("missing indicator_code")
	}

	kind, err := c.valueKind(row, rec.IndicatorCode)
	if err != nil {
		return rec, err
	}
	v, err := model.ParseValue(kind, row.Value.String())
	if err != nil {
		return rec, err
	}
	rec.Value = v

	p, err := model.ParsePeriod(row.Period.String())
	if err != nil {
		return rec, err
	}
	rec.Period = p

	if !rec.SourceType.Valid() {
		return rec, eris.Errorf("unknown source_type %q", rec.SourceType)
	}

	conf, err := strconv.ParseFloat(row.Confidence.String(), 64)
	if err != nil {
		return rec, eris.Errorf("parse confidence %q", row.Confidence.String())
	}
	rec.Confidence = conf

	if s := row.IsProxy.String(); s != "" {
		b, err := model.ParseValue(model.ValueKindBinary, s)
		if err != nil {
			return rec, eris.Errorf("parse is_proxy %q", s)
		}
		rec.IsProxy = bool(b.(model.BinaryValue))
	}
	return rec, nil
}

// valueKind prefers the registry's kind for the indicator. An explicit
// value_kind cell must agree with it. Unregistered indicators default to
// numeric so the value can still be stored and audited.
func (c *Converter) valueKind(row Row, code string) (model.ValueKind, error) {
	explicit := model.ValueKind(strings.ToLower(row.ValueKind.String()))
	if explicit != "" && !explicit.Valid() {
		return "", eris.Errorf("unknown value_kind %q", explicit)
	}
	def, ok := c.reg.Indicator(code)
	if !ok {
		if explicit == "" {
			return model.ValueKindNumeric, nil
		}
		return explicit, nil
	}
	if explicit != "" && explicit != def.Kind {
		return "", eris.Errorf("value_kind %s does not match %s (%s)", explicit, code, def.Kind)
	}
	return def.Kind, nil
}
