package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

// LowConfidenceNote is the annotation every low-confidence justification
// carries. The tier is still assigned.
const LowConfidenceNote = "low-confidence assessment — indicative only"

// Classify maps a total score onto a tier. Boundaries are inclusive on
// the upper tier.
func Classify(total float64, cfg registry.TierConfig) model.Tier {
	switch {
	case total >= cfg.Tier1Min:
		return model.TierImplementationReady
	case total >= cfg.Tier2Min:
		return model.TierFoundationBuilding
	default:
		return model.TierDevelopment
	}
}

// Trajectory diffs total against the country's score in the preceding
// run. Without a prior score the country is stable and delta is nil.
func Trajectory(total float64, prior *float64, threshold float64) (model.Trajectory, *float64) {
	if prior == nil {
		return model.TrajectoryStable, nil
	}
	delta := round(total-*prior, 4)
	switch {
	case delta > threshold:
		return model.TrajectoryImproving, &delta
	case delta < -threshold:
		return model.TrajectoryDeclining, &delta
	default:
		return model.TrajectoryStable, &delta
	}
}

// focusAreas picks pillars that sit well above or below the base score.
// When no pillar clears the threshold the best and worst pillars are used
// so every assessed country gets at least one of each.
func focusAreas(pillars []model.PillarScore, base, threshold float64) (strengths, improvements []model.FocusArea) {
	var avail []model.FocusArea
	for _, ps := range pillars {
		if !ps.Available {
			continue
		}
		avail = append(avail, model.FocusArea{
			Pillar: ps.Pillar,
			Name:   ps.Pillar.DisplayName(),
			Score:  ps.Score,
			Delta:  round(ps.Score-base, 2),
		})
	}
	strengths = []model.FocusArea{}
	improvements = []model.FocusArea{}
	if len(avail) == 0 {
		return strengths, improvements
	}

	// Stable sort keeps canonical pillar order among equal scores.
	byScore := make([]model.FocusArea, len(avail))
	copy(byScore, avail)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })

	for _, fa := range byScore {
		if fa.Delta >= threshold {
			strengths = append(strengths, fa)
		}
	}
	for i := len(byScore) - 1; i >= 0; i-- {
		if byScore[i].Delta <= -threshold {
			improvements = append(improvements, byScore[i])
		}
	}

	if len(byScore) < 2 {
		return strengths, improvements
	}
	if len(strengths) == 0 {
		strengths = append(strengths, byScore[0])
	}
	if len(improvements) == 0 {
		last := byScore[len(byScore)-1]
		if last.Pillar != strengths[0].Pillar {
			improvements = append(improvements, last)
		}
	}
	return strengths, improvements
}

// justify explains a country's tier in plain language from the fields
// already set on cs.
func justify(cs *model.CountryScore, cfg registry.TierConfig) string {
	var b strings.Builder
	total := cs.TotalScore

	switch cs.Tier {
	case model.TierImplementationReady:
		fmt.Fprintf(&b, "Total score %.2f meets the %s threshold (>= %.0f).", total, cs.Tier.Label(), cfg.Tier1Min)
	case model.TierFoundationBuilding:
		fmt.Fprintf(&b, "Total score %.2f falls in the %s band (%.0f-%.0f).", total, cs.Tier.Label(), cfg.Tier2Min, cfg.Tier1Min)
	default:
		fmt.Fprintf(&b, "Total score %.2f is below the %s threshold (%.0f).", total, model.TierFoundationBuilding.Label(), cfg.Tier2Min)
	}

	available := 0
	for _, ps := range cs.Pillars {
		if ps.Available {
			available++
		}
	}
	switch {
	case available == 0:
		b.WriteString(" No indicator data was available for any pillar.")
	default:
		if len(cs.KeyStrengths) > 0 {
			s := cs.KeyStrengths[0]
			fmt.Fprintf(&b, " Strongest pillar: %s (%.1f).", s.Name, s.Score)
		}
		if len(cs.PriorityImprovements) > 0 {
			w := cs.PriorityImprovements[0]
			fmt.Fprintf(&b, " Weakest pillar: %s (%.1f).", w.Name, w.Score)
		}
		if available < len(cs.Pillars) {
			var empty []string
			for _, ps := range cs.Pillars {
				if !ps.Available {
					empty = append(empty, ps.Pillar.DisplayName())
				}
			}
			fmt.Fprintf(&b, " No data for %s; pillar weights renormalized.", strings.Join(empty, ", "))
		}
	}

	if cs.FrameworkBonus > 0 {
		fmt.Fprintf(&b, " Includes a %.1f-point framework alignment bonus.", cs.FrameworkBonus)
	}
	fmt.Fprintf(&b, " Data completeness %.1f%%, confidence %.2f", cs.DataCompleteness, cs.OverallConfidence)
	if cs.ProxyCount > 0 || cs.ConflictCount > 0 {
		fmt.Fprintf(&b, " (%d proxied, %d conflicting indicators)", cs.ProxyCount, cs.ConflictCount)
	}
	b.WriteString(".")

	if cs.LowConfidence {
		fmt.Fprintf(&b, " Note: %s (confidence below %.2f).", LowConfidenceNote, cfg.LowConfidence)
	}
	return b.String()
}
