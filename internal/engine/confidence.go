package engine

import (
	"math"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// combinePillars returns the base score and overall confidence as pillar
// weighted means over the pillars that have data. Empty pillars are left
// out of both rather than counted as zero, which renormalizes the
// framework weights across the remaining pillars.
func combinePillars(pillars []model.PillarScore) (base, confidence float64) {
	var wSum, sSum, cSum float64
	for _, ps := range pillars {
		if !ps.Available {
			continue
		}
		wSum += ps.Weight
		sSum += ps.Weight * ps.Score
		cSum += ps.Weight * ps.Confidence
	}
	if wSum == 0 {
		return 0, 0
	}
	return sSum / wSum, cSum / wSum
}

// completeness returns the framework-effective weight of indicators with
// a non-proxy value as a percentage of all indicator weight.
func completeness(reg *registry.Registry, st *countryState) float64 {
	var have, total float64
	for _, p := range model.Pillars {
		pw := reg.PillarWeight(p)
		for _, d := range reg.PillarIndicators(p) {
			w := pw * d.Weight
			total += w
			if ri := st.reconciled[d.Code]; ri != nil && !ri.IsProxy {
				have += w
			}
		}
	}
	if total == 0 {
		return 0
	}
	return have / total * 100
}

// frameworkBonus awards points for each framework-alignment indicator
// with a non-proxy value at or above the configured minimum. The bonus
// feeds the total score only, never confidence.
func frameworkBonus(reg *registry.Registry, st *countryState) float64 {
	cfg := reg.FrameworkBonus
	var bonus float64
	for _, d := range reg.Indicators {
		if !d.FrameworkAlignment {
			continue
		}
		ri := st.reconciled[d.Code]
		if ri == nil || ri.IsProxy || ri.Value < cfg.MinValue {
			continue
		}
		bonus += cfg.PointsPerAlignment
	}
	return math.Min(bonus, cfg.MaxPoints)
}
