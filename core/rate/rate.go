// Package rate parses free-form tariff duty rate text into computable components.
package rate

import (
	"github.com/shopspring/decimal"
)

// Kind discriminates a rate component
type Kind string

const (
	// KindPercentage is an ad-valorem component, Value is a fraction of declared value
	KindPercentage Kind = "percentage"

	// KindSpecific is a fixed currency amount per physical unit
	KindSpecific Kind = "specific-amount"
)

// Canonical per-unit bases for specific components. Any other Per value is
// the raw normalized unit string, kept verbatim and rejected at computation time.
const (
	PerKg    = "kg"
	PerPair  = "pair"
	PerUnit  = "unit"
	PerDozen = "dozen"
)

// Type is the coarse classification of a parsed rate
type Type string

const (
	TypeAdValorem Type = "advalorem"
	TypeSpecific  Type = "specific"
	TypeCompound  Type = "compound"
)

// Component is one computable piece of a duty rate
type Component struct {
	// Kind discriminates percentage vs specific-amount
	Kind Kind `json:"kind"`

	// Value is a fraction for percentage components (0.05 = 5%) and a
	// USD amount for specific components
	Value decimal.Decimal `json:"value"`

	// Per is the unit basis for specific components; empty for percentage
	Per string `json:"per,omitempty"`
}

// Parsed is the structured form of one rate string
type Parsed struct {
	// Type is derived from the component-kind mix
	Type Type `json:"rate_type"`

	// Components is the ordered list of parsed rate components
	Components []Component `json:"components"`

	// Raw is the original rate text
	Raw string `json:"raw"`
}

// deriveType classifies a component mix. Both kinds present means compound.
func deriveType(components []Component) Type {
	hasPct := false
	hasSpecific := false
	for _, c := range components {
		switch c.Kind {
		case KindPercentage:
			hasPct = true
		case KindSpecific:
			hasSpecific = true
		}
	}
	switch {
	case hasPct && hasSpecific:
		return TypeCompound
	case hasSpecific:
		return TypeSpecific
	default:
		return TypeAdValorem
	}
}
