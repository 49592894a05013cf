package registry

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/readiness-cli/internal/model"
)

// weightTolerance absorbs floating-point noise in YAML weights.
const weightTolerance = 0.001

// DefinitionError reports a malformed methodology. It is fatal to any
// run that would use the methodology.
type DefinitionError struct {
	Version  string
	Problems []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("registry: methodology %q invalid: %s", e.Version, strings.Join(e.Problems, "; "))
}

// Validate checks that the methodology is internally consistent. All
// problems are reported together.
func (r *Registry) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.Version) == "" {
		add("version is required")
	}

	// Pillar weights.
	var pillarSum float64
	for p, pc := range r.Pillars {
		if !p.Valid() {
			add("unknown pillar %q", p)
			continue
		}
		if pc.Weight < 0 {
			add("pillar %s weight must be >= 0", p)
		}
		pillarSum += pc.Weight
	}
	for _, p := range model.Pillars {
		if _, ok := r.Pillars[p]; !ok {
			add("pillar %s has no weight", p)
		}
	}
	if math.Abs(pillarSum-1) > weightTolerance {
		add("pillar weights should sum to 1.0, got %.3f", pillarSum)
	}

	// Indicators.
	seen := make(map[string]bool, len(r.Indicators))
	pillarWeights := make(map[model.Pillar]float64)
	for _, d := range r.Indicators {
		if d.Code == "" {
			add("indicator with empty code")
			continue
		}
		if seen[d.Code] {
			add("indicator %s declared twice", d.Code)
		}
		seen[d.Code] = true

		if !d.Pillar.Valid() {
			add("indicator %s has unknown pillar %q", d.Code, d.Pillar)
		}
		if !d.Kind.Valid() {
			add("indicator %s has unknown kind %q", d.Code, d.Kind)
		}
		if d.Kind == model.ValueKindNumeric && d.Min >= d.Max {
			add("indicator %s min (%v) must be < max (%v)", d.Code, d.Min, d.Max)
		}
		if d.Weight <= 0 || d.Weight > 1 {
			add("indicator %s weight must be in (0, 1], got %v", d.Code, d.Weight)
		}
		pillarWeights[d.Pillar] += d.Weight
	}
	for _, p := range model.Pillars {
		sum, ok := pillarWeights[p]
		if !ok {
			add("pillar %s has no indicators", p)
			continue
		}
		if math.Abs(sum-1) > weightTolerance {
			add("indicator weights in pillar %s should sum to 1.0, got %.3f", p, sum)
		}
	}

	// Fallback chains may only reference registered indicators.
	for _, d := range r.Indicators {
		for i, fb := range d.Fallbacks {
			switch fb.Strategy {
			case model.FallbackProxyIndicator:
				switch {
				case fb.Indicator == "":
					add("indicator %s fallback %d: proxy_indicator needs an indicator", d.Code, i)
				case fb.Indicator == d.Code:
					add("indicator %s fallback %d: cannot proxy itself", d.Code, i)
				case !seen[fb.Indicator]:
					add("indicator %s fallback %d: unknown proxy indicator %s", d.Code, i, fb.Indicator)
				}
			case model.FallbackRegionalAverage:
			case model.FallbackInsufficientData:
				if i != len(d.Fallbacks)-1 {
					add("indicator %s fallback %d: insufficient_data must be last", d.Code, i)
				}
			default:
				add("indicator %s fallback %d: unknown strategy %q", d.Code, i, fb.Strategy)
			}
		}
	}

	// Source priors.
	for st, v := range r.SourcePriors {
		if !st.Valid() {
			add("unknown source type %q in priors", st)
		}
		if v < 0 || v > 1 {
			add("prior for %s must be in [0, 1], got %v", st, v)
		}
	}
	for _, st := range model.SourceTypes {
		if _, ok := r.SourcePriors[st]; !ok {
			add("no prior for source type %s", st)
		}
	}

	// Thresholds.
	rc := r.Reconciliation
	if rc.ConflictTolerance <= 0 || rc.ConflictTolerance > 100 {
		add("conflict_tolerance must be in (0, 100]")
	}
	if rc.ConflictPenalty <= 0 || rc.ConflictPenalty >= 1 {
		add("conflict_penalty must be in (0, 1)")
	}
	if rc.TrailingWindowYears < 1 {
		add("trailing_window_years must be >= 1")
	}
	if rc.StalenessDecayPerYear < 0 || rc.StalenessDecayPerYear > 1 {
		add("staleness_decay_per_year must be in [0, 1]")
	}
	if r.Proxy.ConfidenceCeiling <= 0 || r.Proxy.ConfidenceCeiling > 1 {
		add("proxy confidence_ceiling must be in (0, 1]")
	}
	if r.Proxy.MinRegionalPeers < 1 {
		add("proxy min_regional_peers must be >= 1")
	}
	if r.FrameworkBonus.PointsPerAlignment < 0 || r.FrameworkBonus.MaxPoints < 0 {
		add("framework_bonus points must be >= 0")
	}
	if r.Tiers.Tier2Min <= 0 || r.Tiers.Tier1Min <= r.Tiers.Tier2Min || r.Tiers.Tier1Min > 100 {
		add("tiers must satisfy 0 < tier2_min < tier1_min <= 100")
	}
	if r.Tiers.LowConfidence < 0 || r.Tiers.LowConfidence > 1 {
		add("tiers low_confidence must be in [0, 1]")
	}
	if r.Trajectory.Threshold < 0 {
		add("trajectory threshold must be >= 0")
	}

	// Countries.
	codes := make(map[string]bool, len(r.Countries))
	for _, c := range r.Countries {
		if len(c.Code) != 2 {
			add("country %q must have a two-letter code", c.Name)
		}
		if codes[c.Code] {
			add("country %s declared twice", c.Code)
		}
		codes[c.Code] = true
		if c.Region == "" {
			add("country %s has no region", c.Code)
		}
	}

	if len(errs) > 0 {
		return &DefinitionError{Version: r.Version, Problems: errs}
	}
	return nil
}
