package model

// Region is a continental sub-region used as a benchmarking peer group.
type Region string

const (
	RegionNorthern Region = "northern_africa"
	RegionWestern  Region = "western_africa"
	RegionCentral  Region = "central_africa"
	RegionEastern  Region = "eastern_africa"
	RegionSouthern Region = "southern_africa"
)

// IncomeClass is the World Bank income grouping.
type IncomeClass string

const (
	IncomeLow         IncomeClass = "low"
	IncomeLowerMiddle IncomeClass = "lower_middle"
	IncomeUpperMiddle IncomeClass = "upper_middle"
	IncomeHigh        IncomeClass = "high"
)

// Country is an assessed country and its peer-group memberships.
type Country struct {
	Code        string      `yaml:"code" json:"code"`
	ISO3        string      `yaml:"iso3" json:"iso3"`
	Name        string      `yaml:"name" json:"name"`
	Aliases     []string    `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Region      Region      `yaml:"region" json:"region"`
	IncomeClass IncomeClass `yaml:"income_class" json:"income_class"`
}
