// Package registry loads and validates versioned scoring methodologies:
// pillar weights, indicator definitions, proxy chains, source priors and
// classification thresholds. Methodologies are configuration, not code,
// so weight revisions never require a release.
package registry

import (
	"crypto/sha256"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/readiness-cli/internal/model"
)

//go:embed data/*.yaml
var embedded embed.FS

// PillarConfig configures one pillar's framework-level weight.
type PillarConfig struct {
	Weight float64 `yaml:"weight" json:"weight"`
}

// ReconciliationConfig tunes deduplication and conflict detection.
type ReconciliationConfig struct {
	ConflictTolerance     float64 `yaml:"conflict_tolerance" json:"conflict_tolerance"`
	ConflictPenalty       float64 `yaml:"conflict_penalty" json:"conflict_penalty"`
	TrailingWindowYears   int     `yaml:"trailing_window_years" json:"trailing_window_years"`
	StalenessDecayPerYear float64 `yaml:"staleness_decay_per_year" json:"staleness_decay_per_year"`
}

// ProxyConfig tunes gap filling.
type ProxyConfig struct {
	ConfidenceCeiling float64 `yaml:"confidence_ceiling" json:"confidence_ceiling"`
	MinRegionalPeers  int     `yaml:"min_regional_peers" json:"min_regional_peers"`
}

// BonusConfig tunes the framework-alignment bonus.
type BonusConfig struct {
	PointsPerAlignment float64 `yaml:"points_per_alignment" json:"points_per_alignment"`
	MaxPoints          float64 `yaml:"max_points" json:"max_points"`
	MinValue           float64 `yaml:"min_value" json:"min_value"`
}

// TierConfig holds the tier boundaries and the low-confidence guard.
type TierConfig struct {
	Tier1Min      float64 `yaml:"tier1_min" json:"tier1_min"`
	Tier2Min      float64 `yaml:"tier2_min" json:"tier2_min"`
	LowConfidence float64 `yaml:"low_confidence" json:"low_confidence"`
}

// TrajectoryConfig holds the run-over-run change threshold in points.
type TrajectoryConfig struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// FocusConfig holds the pillar delta needed to call out a strength or
// improvement area.
type FocusConfig struct {
	DeltaThreshold float64 `yaml:"delta_threshold" json:"delta_threshold"`
}

// Registry is one methodology version.
type Registry struct {
	Version        string                        `yaml:"version" json:"version"`
	Description    string                        `yaml:"description" json:"description"`
	Pillars        map[model.Pillar]PillarConfig `yaml:"pillars" json:"pillars"`
	SourcePriors   map[model.SourceType]float64  `yaml:"source_priors" json:"source_priors"`
	Reconciliation ReconciliationConfig          `yaml:"reconciliation" json:"reconciliation"`
	Proxy          ProxyConfig                   `yaml:"proxy" json:"proxy"`
	FrameworkBonus BonusConfig                   `yaml:"framework_bonus" json:"framework_bonus"`
	Tiers          TierConfig                    `yaml:"tiers" json:"tiers"`
	Trajectory     TrajectoryConfig              `yaml:"trajectory" json:"trajectory"`
	Focus          FocusConfig                   `yaml:"focus" json:"focus"`
	Indicators     []model.IndicatorDefinition   `yaml:"indicators" json:"indicators"`
	Countries      []model.Country               `yaml:"countries,omitempty" json:"countries"`

	byCode map[string]*model.IndicatorDefinition
}

// Default returns the embedded methodology with the embedded country list.
func Default() (*Registry, error) {
	data, err := embedded.ReadFile("data/methodology.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "registry: read embedded methodology")
	}
	return Parse(data)
}

// Load reads a methodology file from disk.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: load %s", path)
	}
	return r, nil
}

// Parse decodes a methodology document (top-level "methodology" key),
// applies defaults, attaches the embedded country list when the document
// has none, and validates the result.
func Parse(data []byte) (*Registry, error) {
	var wrapper struct {
		Methodology Registry `yaml:"methodology"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse methodology")
	}
	r := &wrapper.Methodology
	applyDefaults(r)

	if len(r.Countries) == 0 {
		countries, err := DefaultCountries()
		if err != nil {
			return nil, err
		}
		r.Countries = countries
	}

	r.index()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultCountries returns the embedded list of assessed countries.
func DefaultCountries() ([]model.Country, error) {
	data, err := embedded.ReadFile("data/countries.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "registry: read embedded countries")
	}
	var doc struct {
		Countries []model.Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "registry: parse countries")
	}
	return doc.Countries, nil
}

func applyDefaults(r *Registry) {
	if r.Reconciliation.ConflictTolerance == 0 {
		r.Reconciliation.ConflictTolerance = 20
	}
	if r.Reconciliation.ConflictPenalty == 0 {
		r.Reconciliation.ConflictPenalty = 0.75
	}
	if r.Reconciliation.TrailingWindowYears == 0 {
		r.Reconciliation.TrailingWindowYears = 5
	}
	if r.Reconciliation.StalenessDecayPerYear == 0 {
		r.Reconciliation.StalenessDecayPerYear = 0.1
	}
	if r.Proxy.ConfidenceCeiling == 0 {
		r.Proxy.ConfidenceCeiling = 0.5
	}
	if r.Proxy.MinRegionalPeers == 0 {
		r.Proxy.MinRegionalPeers = 2
	}
	if r.Tiers.Tier1Min == 0 && r.Tiers.Tier2Min == 0 {
		r.Tiers.Tier1Min = 70
		r.Tiers.Tier2Min = 40
	}
	if r.Tiers.LowConfidence == 0 {
		r.Tiers.LowConfidence = 0.4
	}
	if r.Trajectory.Threshold == 0 {
		r.Trajectory.Threshold = 3
	}
	if r.Focus.DeltaThreshold == 0 {
		r.Focus.DeltaThreshold = 5
	}
}

// index rebuilds the code lookup table. Call after mutating Indicators.
func (r *Registry) index() {
	r.byCode = make(map[string]*model.IndicatorDefinition, len(r.Indicators))
	for i := range r.Indicators {
		r.byCode[r.Indicators[i].Code] = &r.Indicators[i]
	}
}

// Reindex rebuilds internal lookups and revalidates; tests and tooling
// that edit a loaded registry in place must call it.
func (r *Registry) Reindex() error {
	r.index()
	return r.Validate()
}

// Indicator returns the definition for code.
func (r *Registry) Indicator(code string) (*model.IndicatorDefinition, bool) {
	d, ok := r.byCode[code]
	return d, ok
}

// PillarIndicators returns the pillar's definitions sorted by code.
func (r *Registry) PillarIndicators(p model.Pillar) []model.IndicatorDefinition {
	var defs []model.IndicatorDefinition
	for _, d := range r.Indicators {
		if d.Pillar == p {
			defs = append(defs, d)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Code < defs[j].Code })
	return defs
}

// PillarWeight returns the framework weight for p.
func (r *Registry) PillarWeight(p model.Pillar) float64 {
	return r.Pillars[p].Weight
}

// Prior returns the reliability prior for a source type. Unknown types
// get the lowest configured prior.
func (r *Registry) Prior(st model.SourceType) float64 {
	if v, ok := r.SourcePriors[st]; ok {
		return v
	}
	lowest := 1.0
	for _, v := range r.SourcePriors {
		if v < lowest {
			lowest = v
		}
	}
	return lowest
}

// Hash returns a stable SHA-256 digest of the methodology for
// reproducibility checks.
func (r *Registry) Hash() string {
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}

// Snapshot freezes the parts of the methodology recorded on every run.
func (r *Registry) Snapshot() model.MethodologySnapshot {
	weights := make(map[model.Pillar]float64, len(model.Pillars))
	for _, p := range model.Pillars {
		weights[p] = r.PillarWeight(p)
	}
	priors := make(map[model.SourceType]float64, len(r.SourcePriors))
	for k, v := range r.SourcePriors {
		priors[k] = v
	}
	return model.MethodologySnapshot{
		Version:       r.Version,
		Hash:          r.Hash(),
		PillarWeights: weights,
		Priors:        priors,
		Tier1Min:      r.Tiers.Tier1Min,
		Tier2Min:      r.Tiers.Tier2Min,
		LowConfidence: r.Tiers.LowConfidence,
		Indicators:    len(r.Indicators),
	}
}

// Catalog holds every methodology version found in a directory.
type Catalog struct {
	versions map[string]*Registry
}

// LoadDir loads every *.yaml / *.yml methodology in dir. Two files
// declaring the same version is a definition error.
func LoadDir(dir string) (*Catalog, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, eris.Wrapf(err, "registry: glob %s", dir)
		}
		paths = append(paths, m...)
	}
	sort.Strings(paths)

	c := &Catalog{versions: make(map[string]*Registry)}
	for _, p := range paths {
		r, err := Load(p)
		if err != nil {
			return nil, err
		}
		if _, dup := c.versions[r.Version]; dup {
			return nil, &DefinitionError{Version: r.Version, Problems: []string{fmt.Sprintf("version declared twice (%s)", p)}}
		}
		c.versions[r.Version] = r
	}
	if len(c.versions) == 0 {
		return nil, eris.Errorf("registry: no methodology files in %s", dir)
	}
	return c, nil
}

// Get returns the registry for version.
func (c *Catalog) Get(version string) (*Registry, error) {
	r, ok := c.versions[version]
	if !ok {
		return nil, eris.Errorf("registry: methodology version %q not found (have %s)", version, strings.Join(c.Versions(), ", "))
	}
	return r, nil
}

// Versions lists the loaded versions from lowest to highest.
func (c *Catalog) Versions() []string {
	out := make([]string, 0, len(c.versions))
	for v := range c.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return versionLess(out[i], out[j]) })
	return out
}

// versionLess orders dotted numeric versions numerically, so "2.0" sorts
// before "10.0". Versions that are not dotted numbers sort first, by text.
func versionLess(a, b string) bool {
	if c := semver.Compare("v"+a, "v"+b); c != 0 {
		return c < 0
	}
	return a < b
}
