package model

// Pillar identifies one of the four weighted infrastructure dimensions.
type Pillar string

const (
	PillarHumanCapital Pillar = "human_capital"
	PillarPhysical     Pillar = "physical_infrastructure"
	PillarRegulatory   Pillar = "regulatory_framework"
	PillarEconomic     Pillar = "economic_market"
)

// Pillars lists every pillar in canonical order. Iteration over pillars
// always uses this order so floating-point sums stay reproducible.
var Pillars = []Pillar{PillarHumanCapital, PillarPhysical, PillarRegulatory, PillarEconomic}

// Valid reports whether p is one of the four known pillars.
func (p Pillar) Valid() bool {
	switch p {
	case PillarHumanCapital, PillarPhysical, PillarRegulatory, PillarEconomic:
		return true
	}
	return false
}

// DisplayName returns the human-readable pillar name.
func (p Pillar) DisplayName() string {
	switch p {
	case PillarHumanCapital:
		return "Human Capital"
	case PillarPhysical:
		return "Physical Infrastructure"
	case PillarRegulatory:
		return "Regulatory Framework"
	case PillarEconomic:
		return "Economic/Market"
	}
	return string(p)
}
