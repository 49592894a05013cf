// Package engine turns indicator records into auditable country scores.
//
// A run is a pure function of its records, the methodology and the
// totals of the preceding run. Countries are processed in parallel in two
// phases separated by barriers: reconciliation, then proxy resolution
// through classification. Regional averages are built between the phases
// and percentile benchmarks after the second.
package engine

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/readiness-cli/internal/country"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// DefaultWorkers bounds per-country parallelism when none is configured.
const DefaultWorkers = 8

// Input is everything one run scores.
type Input struct {
	Records []model.IndicatorRecord

	// ReferenceYear anchors staleness. Zero uses the latest year present
	// in Records, so results never depend on the wall clock.
	ReferenceYear int

	// Prior maps country code to total score in the preceding complete
	// run of the same methodology.
	Prior map[string]float64
}

// Result is the engine's output for one run.
type Result struct {
	ReferenceYear int
	RecordCount   int
	Accepted      int
	Rejections    []model.RecordRejection
	Scores        []model.CountryScore
}

// Engine scores every country the methodology lists.
type Engine struct {
	reg       *registry.Registry
	countries *country.Resolver
	workers   int
}

// New validates reg and returns an engine bound to it. A malformed
// methodology returns a *DefinitionError.
func New(reg *registry.Registry, workers int) (*Engine, error) {
	if reg == nil {
		return nil, eris.New("engine: nil registry")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Engine{
		reg:       reg,
		countries: country.NewResolver(reg.Countries),
		workers:   workers,
	}, nil
}

// Registry returns the methodology the engine scores with.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// countryState is one country's working set. Each state is touched by a
// single goroutine per phase.
type countryState struct {
	country      *model.Country
	records      []accepted
	reconciled   map[string]*model.ReconciledIndicator
	proxied      map[string]*model.ReconciledIndicator
	insufficient map[string]bool
	rejections   []model.RecordRejection
	score        model.CountryScore
}

// Run scores every country. Invalid records are rejected and reported in
// the result; they never fail the run.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	refYear := in.ReferenceYear
	if refYear == 0 {
		refYear = latestYear(in.Records)
	}

	codes := e.countries.Codes()
	sort.Strings(codes)
	states := make([]*countryState, len(codes))
	byCode := make(map[string]*countryState, len(codes))
	for i, code := range codes {
		c, _ := e.countries.Get(code)
		states[i] = &countryState{
			country:      c,
			reconciled:   make(map[string]*model.ReconciledIndicator),
			proxied:      make(map[string]*model.ReconciledIndicator),
			insufficient: make(map[string]bool),
		}
		byCode[code] = states[i]
	}

	res := &Result{ReferenceYear: refYear, RecordCount: len(in.Records)}
	seen := make(map[string]bool, len(in.Records))
	for _, rec := range in.Records {
		if rec.ID != "" && seen[rec.ID] {
			e.reject(res, rec, "", recordErr(rec, model.RejectDuplicate, eris.Errorf("record id %s repeated", rec.ID)))
			continue
		}
		seen[rec.ID] = true

		a, rerr := validateRecord(rec, e.reg, e.countries, refYear)
		if rerr != nil {
			e.reject(res, rec, "", rerr)
			continue
		}
		st := byCode[a.country]
		st.records = append(st.records, a)
		res.Accepted++
	}

	if err := e.forEach(ctx, states, func(st *countryState) {
		e.reconcileCountry(st, refYear)
	}); err != nil {
		return nil, eris.Wrap(err, "engine: reconcile")
	}

	idx := buildRegionalIndex(states, e.reg)

	if err := e.forEach(ctx, states, func(st *countryState) {
		resolveProxies(st, e.reg, idx)
		e.scoreCountry(st, in.Prior)
	}); err != nil {
		return nil, eris.Wrap(err, "engine: score")
	}

	res.Scores = make([]model.CountryScore, len(states))
	for i, st := range states {
		res.Scores[i] = st.score
		res.Rejections = append(res.Rejections, st.rejections...)
	}
	ApplyBenchmarks(res.Scores)
	sortRejections(res.Rejections)
	if res.Rejections == nil {
		res.Rejections = []model.RecordRejection{}
	}

	zap.L().Info("engine: run scored",
		zap.String("methodology", e.reg.Version),
		zap.Int("reference_year", refYear),
		zap.Int("records", res.RecordCount),
		zap.Int("accepted", res.Accepted),
		zap.Int("rejected", len(res.Rejections)),
		zap.Int("countries", len(res.Scores)),
	)
	return res, nil
}

// forEach runs fn over every state on a bounded worker pool and waits for
// all of them. It is the synchronization barrier between phases.
func (e *Engine) forEach(ctx context.Context, states []*countryState, fn func(*countryState)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, st := range states {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(st)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) reject(res *Result, rec model.IndicatorRecord, country string, rerr *RecordError) {
	rj := rejection(rec, country, rerr)
	res.Rejections = append(res.Rejections, rj)
	zap.L().Warn("engine: record rejected",
		zap.String("record_id", rj.RecordID),
		zap.String("country", rj.CountryCode),
		zap.String("indicator", rj.IndicatorCode),
		zap.String("reason", string(rj.Reason)),
		zap.String("detail", rj.Detail),
	)
}

// reconcileCountry deduplicates the country's records indicator by
// indicator. Stale records become rejections on the state.
func (e *Engine) reconcileCountry(st *countryState, refYear int) {
	byIndicator := make(map[string][]accepted)
	for _, a := range st.records {
		byIndicator[a.def.Code] = append(byIndicator[a.def.Code], a)
	}
	for _, d := range e.reg.Indicators {
		recs := byIndicator[d.Code]
		if len(recs) == 0 {
			continue
		}
		ri, stale := reconcileIndicator(recs, e.reg, refYear)
		for _, a := range stale {
			rj := rejection(a.rec, st.country.Code, recordErr(a.rec, model.RejectStale,
				eris.Errorf("period %s is %d years before reference year %d", a.rec.Period, refYear-a.rec.Period.Year, refYear)))
			st.rejections = append(st.rejections, rj)
			zap.L().Warn("engine: record rejected",
				zap.String("record_id", rj.RecordID),
				zap.String("country", rj.CountryCode),
				zap.String("indicator", rj.IndicatorCode),
				zap.String("reason", string(rj.Reason)),
			)
		}
		if ri != nil {
			st.reconciled[d.Code] = ri
		}
	}
}

// scoreCountry runs aggregation through classification for one country.
func (e *Engine) scoreCountry(st *countryState, prior map[string]float64) {
	reg := e.reg
	c := st.country
	cs := model.CountryScore{
		CountryCode: c.Code,
		CountryName: c.Name,
		Region:      c.Region,
		IncomeClass: c.IncomeClass,
		Pillars:     make([]model.PillarScore, 0, len(model.Pillars)),
	}

	for _, p := range model.Pillars {
		cs.Pillars = append(cs.Pillars, aggregatePillar(p, reg.PillarWeight(p), reg.PillarIndicators(p), st))
	}

	base, conf := combinePillars(cs.Pillars)
	cs.BaseScore = round(base, 2)
	cs.OverallConfidence = round(conf, 4)
	cs.DataCompleteness = round(completeness(reg, st), 2)
	cs.FrameworkBonus = frameworkBonus(reg, st)
	cs.TotalScore = round(math.Min(100, base+cs.FrameworkBonus), 2)
	cs.Tier = Classify(cs.TotalScore, reg.Tiers)
	cs.TierLabel = cs.Tier.Label()
	cs.LowConfidence = cs.OverallConfidence < reg.Tiers.LowConfidence

	if p, ok := prior[c.Code]; ok {
		cs.PriorTotalScore = &p
	}
	cs.Trajectory, cs.TrajectoryDelta = Trajectory(cs.TotalScore, cs.PriorTotalScore, reg.Trajectory.Threshold)
	cs.KeyStrengths, cs.PriorityImprovements = focusAreas(cs.Pillars, cs.BaseScore, reg.Focus.DeltaThreshold)

	cs.Reconciled = []model.ReconciledIndicator{}
	ids := make(map[string]bool)
	for _, d := range sortedIndicators(reg) {
		ri := st.resolved(d.Code)
		if ri == nil {
			continue
		}
		cs.Reconciled = append(cs.Reconciled, *ri)
		if ri.Conflict {
			cs.ConflictCount++
		}
		if ri.IsProxy {
			cs.ProxyCount++
		}
		for _, ct := range ri.Contributions {
			ids[ct.RecordID] = true
		}
	}
	cs.ContributingRecordIDs = make([]string, 0, len(ids))
	for id := range ids {
		cs.ContributingRecordIDs = append(cs.ContributingRecordIDs, id)
	}
	sort.Strings(cs.ContributingRecordIDs)

	cs.TierJustification = justify(&cs, reg.Tiers)
	st.score = cs
}

func sortedIndicators(reg *registry.Registry) []model.IndicatorDefinition {
	defs := make([]model.IndicatorDefinition, len(reg.Indicators))
	copy(defs, reg.Indicators)
	sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
	return defs
}

// latestYear returns the most recent valid period year in recs, or 0.
func latestYear(recs []model.IndicatorRecord) int {
	latest := 0
	for _, r := range recs {
		if r.Period.Validate() == nil && r.Period.Year > latest {
			latest = r.Period.Year
		}
	}
	return latest
}

func sortRejections(rs []model.RecordRejection) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CountryCode != rs[j].CountryCode {
			return rs[i].CountryCode < rs[j].CountryCode
		}
		if rs[i].IndicatorCode != rs[j].IndicatorCode {
			return rs[i].IndicatorCode < rs[j].IndicatorCode
		}
		return rs[i].RecordID < rs[j].RecordID
	})
}
