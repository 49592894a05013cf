package engine

import (
	"github.com/sells-group/readiness-cli/internal/model"
)

// aggregatePillar combines one pillar's resolved indicators into a
// PillarScore. The weighted sum is renormalized over the indicators that
// have a value, so a gap lowers confidence and completeness but never
// counts as zero. Confidence is the weighted mean of indicator
// confidences scaled by the share of pillar weight not covered by proxies.
func aggregatePillar(p model.Pillar, weight float64, defs []model.IndicatorDefinition, st *countryState) model.PillarScore {
	ps := model.PillarScore{
		Pillar:     p,
		Weight:     weight,
		Present:    []string{},
		Proxied:    []string{},
		Missing:    []string{},
		Indicators: make([]model.IndicatorContribution, 0, len(defs)),
	}

	var wSum, vSum, cSum, proxiedW float64
	for _, d := range defs {
		ic := model.IndicatorContribution{Code: d.Code, Weight: d.Weight}
		ri := st.resolved(d.Code)
		switch {
		case ri == nil && st.insufficient[d.Code]:
			ic.Status = model.IndicatorInsufficientData
			ps.Missing = append(ps.Missing, d.Code)
		case ri == nil:
			ic.Status = model.IndicatorMissing
			ps.Missing = append(ps.Missing, d.Code)
		default:
			v := ri.Value
			ic.Value = &v
			ic.Confidence = ri.Confidence
			ic.Conflict = ri.Conflict
			if ri.IsProxy {
				ic.Status = model.IndicatorProxied
				ps.Proxied = append(ps.Proxied, d.Code)
				proxiedW += d.Weight
			} else {
				ic.Status = model.IndicatorPresent
				ps.Present = append(ps.Present, d.Code)
			}
			if ri.Conflict {
				ps.Conflicts = append(ps.Conflicts, d.Code)
			}
			wSum += d.Weight
			vSum += d.Weight * ri.Value
			cSum += d.Weight * ri.Confidence
		}
		ps.Indicators = append(ps.Indicators, ic)
	}

	if wSum == 0 {
		return ps
	}
	for i := range ps.Indicators {
		if ps.Indicators[i].Value != nil {
			ps.Indicators[i].EffectiveWeight = ps.Indicators[i].Weight / wSum
		}
	}

	var total float64
	for _, d := range defs {
		total += d.Weight
	}
	proxiedShare := 0.0
	if total > 0 {
		proxiedShare = proxiedW / total
	}

	ps.Available = true
	ps.Score = round(vSum/wSum, 2)
	ps.Confidence = round(cSum/wSum*(1-proxiedShare), 4)
	ps.ProxiedWeight = round(proxiedShare, 4)
	return ps
}
