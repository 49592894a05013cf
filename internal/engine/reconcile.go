package engine

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// reconcileIndicator collapses every accepted record for one (country,
// indicator) pair into a single ReconciledIndicator.
//
// Direct records are preferred over collector-supplied proxies. Within a
// pool the most recent period wins; a period older than the trailing
// window is stale, and its records come back in the second return value
// so the caller can reject them. Records that lost to a newer period or
// to direct measurements are listed in Superseded. A nil result means
// nothing usable.
func reconcileIndicator(recs []accepted, reg *registry.Registry, referenceYear int) (*model.ReconciledIndicator, []accepted) {
	var direct, proxied []accepted
	for _, a := range recs {
		if a.rec.IsProxy {
			proxied = append(proxied, a)
		} else {
			direct = append(direct, a)
		}
	}

	var stale []accepted
	for _, pool := range [][]accepted{direct, proxied} {
		if len(pool) == 0 {
			continue
		}
		period, group := latestPeriod(pool)
		age := staleYears(period, referenceYear)
		if age > reg.Reconciliation.TrailingWindowYears {
			stale = append(stale, pool...)
			continue
		}
		ri := reconcileGroup(group, reg)
		ri.Period = period
		ri.StaleYears = age
		if age > 0 {
			ri.Confidence = math.Max(0, ri.Confidence-reg.Reconciliation.StalenessDecayPerYear*float64(age))
		}
		if group[0].rec.IsProxy {
			ri.IsProxy = true
			ri.ProxyStrategy = model.FallbackProxyIndicator
			ri.ProxySource = group[0].rec.ProxySourceIndicator
			ri.Confidence = math.Min(ri.Confidence, reg.Proxy.ConfidenceCeiling)
		}
		ri.Confidence = round(ri.Confidence, 4)
		ri.Superseded = supersededIDs(recs, group, stale)
		return ri, stale
	}
	return nil, stale
}

// supersededIDs returns the ids in recs that neither contributed to the
// result nor were rejected as stale, in sorted order.
func supersededIDs(recs, group, stale []accepted) []string {
	used := make(map[string]bool, len(group)+len(stale))
	for _, a := range group {
		used[a.rec.ID] = true
	}
	for _, a := range stale {
		used[a.rec.ID] = true
	}
	var out []string
	for _, a := range recs {
		if !used[a.rec.ID] {
			out = append(out, a.rec.ID)
		}
	}
	sort.Strings(out)
	return out
}

// latestPeriod returns the most recent period in recs and the records
// measured in it.
func latestPeriod(recs []accepted) (model.Period, []accepted) {
	latest := recs[0].rec.Period
	for _, a := range recs[1:] {
		if latest.Before(a.rec.Period) {
			latest = a.rec.Period
		}
	}
	var group []accepted
	for _, a := range recs {
		if a.rec.Period == latest {
			group = append(group, a)
		}
	}
	return latest, group
}

func staleYears(p model.Period, referenceYear int) int {
	if referenceYear <= p.Year {
		return 0
	}
	return referenceYear - p.Year
}

// reconcileGroup reconciles records that share a (country, indicator,
// period) key. Values are combined as a mean weighted by confidence times
// source-type prior. A spread above the conflict tolerance flags the
// result and replaces its confidence with the penalized minimum.
func reconcileGroup(group []accepted, reg *registry.Registry) *model.ReconciledIndicator {
	sort.Slice(group, func(i, j int) bool { return group[i].rec.ID < group[j].rec.ID })

	first := group[0]
	ri := &model.ReconciledIndicator{
		CountryCode:   first.country,
		IndicatorCode: first.def.Code,
		Pillar:        first.def.Pillar,
		Contributions: make([]model.Contribution, len(group)),
	}

	weights := make([]float64, len(group))
	var wSum, vSum, pSum, pcSum, plainV, plainC float64
	lo, hi := math.Inf(1), math.Inf(-1)
	minConf := 1.0
	for i, a := range group {
		prior := reg.Prior(a.rec.SourceType)
		weights[i] = a.rec.Confidence * prior
		wSum += weights[i]
		vSum += weights[i] * a.norm.Value
		pSum += prior
		pcSum += prior * a.rec.Confidence
		plainV += a.norm.Value
		plainC += a.rec.Confidence
		lo = math.Min(lo, a.norm.Value)
		hi = math.Max(hi, a.norm.Value)
		minConf = math.Min(minConf, a.rec.Confidence)
		if a.norm.OutOfRange {
			ri.OutOfRange = true
		}
	}
	n := float64(len(group))

	switch {
	case len(group) == 1:
		ri.Value = first.norm.Value
		ri.Confidence = first.rec.Confidence
	case wSum > 0:
		ri.Value = vSum / wSum
	default:
		// Every record carries zero weight; fall back to the plain mean.
		ri.Value = plainV / n
	}

	if len(group) > 1 {
		ri.Spread = round(hi-lo, 4)
		switch {
		case hi-lo > reg.Reconciliation.ConflictTolerance:
			ri.Conflict = true
			ri.Confidence = minConf * reg.Reconciliation.ConflictPenalty
			zap.L().Info("engine: source conflict",
				zap.String("country", ri.CountryCode),
				zap.String("indicator", ri.IndicatorCode),
				zap.Float64("spread", ri.Spread),
				zap.Int("records", len(group)),
			)
		case pSum > 0:
			ri.Confidence = pcSum / pSum
		default:
			ri.Confidence = plainC / n
		}
	}
	ri.Value = round(ri.Value, 4)

	for i, a := range group {
		share := 1 / n
		if wSum > 0 {
			share = weights[i] / wSum
		}
		ri.Contributions[i] = model.Contribution{
			RecordID:        a.rec.ID,
			Source:          a.rec.Source,
			SourceType:      a.rec.SourceType,
			Period:          a.rec.Period,
			RawValue:        a.rec.Value.Code(),
			NormalizedValue: round(a.norm.Value, 4),
			Confidence:      a.rec.Confidence,
			Weight:          round(share, 4),
			OutOfRange:      a.norm.OutOfRange,
		}
	}
	return ri
}

// round rounds v to places decimal places.
func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
