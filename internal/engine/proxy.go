package engine

import (
	"math"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

type regionKey struct {
	region    model.Region
	indicator string
}

type peerValue struct {
	country    string
	value      float64
	confidence float64
	period     model.Period
}

// regionalIndex holds every directly observed reconciled value in the
// run, grouped by region and indicator. It is built once all countries
// are reconciled and is read-only afterwards.
type regionalIndex map[regionKey][]peerValue

// buildRegionalIndex indexes the non-proxy values of states, which must
// be in country-code order so averages are summed deterministically.
func buildRegionalIndex(states []*countryState, reg *registry.Registry) regionalIndex {
	idx := make(regionalIndex)
	for _, st := range states {
		for _, d := range reg.Indicators {
			ri := st.reconciled[d.Code]
			if ri == nil || ri.IsProxy {
				continue
			}
			k := regionKey{region: st.country.Region, indicator: d.Code}
			idx[k] = append(idx[k], peerValue{
				country:    st.country.Code,
				value:      ri.Value,
				confidence: ri.Confidence,
				period:     ri.Period,
			})
		}
	}
	return idx
}

// average returns the mean value and confidence of an indicator across a
// region, excluding the country being filled.
func (idx regionalIndex) average(region model.Region, indicator, exclude string, minPeers int) (peerValue, int, bool) {
	var sum, confSum float64
	var latest model.Period
	n := 0
	for _, pv := range idx[regionKey{region: region, indicator: indicator}] {
		if pv.country == exclude {
			continue
		}
		sum += pv.value
		confSum += pv.confidence
		if latest.Before(pv.period) {
			latest = pv.period
		}
		n++
	}
	if n == 0 || n < minPeers {
		return peerValue{}, n, false
	}
	return peerValue{
		value:      sum / float64(n),
		confidence: confSum / float64(n),
		period:     latest,
	}, n, true
}

// resolveProxies walks the fallback chain of every indicator the country
// has no direct value for. Substitutes read only direct values, so the
// order indicators are filled in never matters. Indicators whose chain
// ends in insufficient_data are reported separately; anything else left
// unresolved is simply absent. A country with no reconciled value at all
// is unassessed and gets no substitutes.
func resolveProxies(st *countryState, reg *registry.Registry, idx regionalIndex) {
	if len(st.reconciled) == 0 {
		return
	}
	ceiling := reg.Proxy.ConfidenceCeiling
	for i := range reg.Indicators {
		def := &reg.Indicators[i]
		if st.reconciled[def.Code] != nil {
			continue
		}
	chain:
		for _, fb := range def.Fallbacks {
			switch fb.Strategy {
			case model.FallbackProxyIndicator:
				src := st.reconciled[fb.Indicator]
				if src == nil || src.IsProxy {
					continue
				}
				contribs := make([]model.Contribution, len(src.Contributions))
				copy(contribs, src.Contributions)
				st.proxied[def.Code] = &model.ReconciledIndicator{
					CountryCode:   st.country.Code,
					IndicatorCode: def.Code,
					Pillar:        def.Pillar,
					Period:        src.Period,
					Value:         src.Value,
					Confidence:    round(math.Min(src.Confidence, ceiling), 4),
					StaleYears:    src.StaleYears,
					IsProxy:       true,
					ProxyStrategy: model.FallbackProxyIndicator,
					ProxySource:   src.IndicatorCode,
					Contributions: contribs,
				}
				break chain
			case model.FallbackRegionalAverage:
				avg, _, ok := idx.average(st.country.Region, def.Code, st.country.Code, reg.Proxy.MinRegionalPeers)
				if !ok {
					continue
				}
				st.proxied[def.Code] = &model.ReconciledIndicator{
					CountryCode:   st.country.Code,
					IndicatorCode: def.Code,
					Pillar:        def.Pillar,
					Period:        avg.period,
					Value:         round(avg.value, 4),
					Confidence:    round(math.Min(avg.confidence, ceiling), 4),
					IsProxy:       true,
					ProxyStrategy: model.FallbackRegionalAverage,
					ProxySource:   string(st.country.Region),
					Contributions: []model.Contribution{},
				}
				break chain
			case model.FallbackInsufficientData:
				st.insufficient[def.Code] = true
				break chain
			}
		}
	}
}

// resolved returns the reconciled indicator the pillar aggregator should
// use for code: the reconciled value, else a substitute, else nil.
func (st *countryState) resolved(code string) *model.ReconciledIndicator {
	if ri := st.reconciled[code]; ri != nil {
		return ri
	}
	return st.proxied[code]
}
