package rate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Percentage occurrences, tolerating footnote marks right after the sign
	// ("2.5%1/" still yields 2.5).
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

	// Dollar amounts per unit: "$1.50/kg", "$2 per dozen".
	dollarRe = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)\s*(?:/|\bper\b)\s*([A-Za-z][A-Za-z.\s]*)`)

	// Cent amounts per unit: "20¢/doz. pr.", "3c per kg". The separator must
	// follow the cent mark directly so a trailing word "c" never matches.
	centsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[c¢]\s*(?:/|\bper\b)\s*([A-Za-z][A-Za-z.\s]*)`)

	nonUnitChars = regexp.MustCompile(`[^a-z\s]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

var (
	hundred       = decimal.NewFromInt(100)
	thousand      = decimal.NewFromInt(1000)
	twelve        = decimal.NewFromInt(12)
	grossCount    = decimal.NewFromInt(144)
	poundsPerKilo = decimal.RequireFromString("0.45359237")
)

// Parse turns a raw tariff rate string into typed components. It returns nil
// for empty input and for text that yields no components at all; an item with
// a nil parse is valid, it just has no computable rate.
func Parse(raw string) *Parsed {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(text), "free") {
		return &Parsed{
			Type:       TypeAdValorem,
			Components: []Component{{Kind: KindPercentage, Value: decimal.Zero}},
			Raw:        raw,
		}
	}

	var components []Component

	// Pass 1: percentages. A string may match several passes; components
	// accumulate across all of them.
	for _, m := range percentRe.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		components = append(components, Component{
			Kind:  KindPercentage,
			Value: v.Div(hundred),
		})
	}

	// Pass 2: dollar amounts per unit.
	for _, m := range dollarRe.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		components = append(components, specificComponent(v, m[2]))
	}

	// Pass 3: cent amounts per unit; cents are divided by 100 before unit mapping.
	for _, m := range centsRe.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		components = append(components, specificComponent(v.Div(hundred), m[2]))
	}

	if len(components) == 0 {
		return nil
	}

	return &Parsed{
		Type:       deriveType(components),
		Components: components,
		Raw:        raw,
	}
}

// normalizeUnit case-folds the free-text unit token, strips punctuation and
// collapses whitespace: "Doz. Pr." becomes "doz pr".
func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = nonUnitChars.ReplaceAllString(u, " ")
	u = spaceRuns.ReplaceAllString(u, " ")
	return strings.TrimSpace(u)
}

// specificComponent maps a normalized unit token onto a canonical basis,
// converting the value where the unit implies a different basis.
//
// Priority order is a correctness constraint, not style: the combined
// dozen+pair check must run before the standalone pair check and before the
// standalone dozen check, because a "dozen pairs" unit string also matches
// both of those individually.
func specificComponent(value decimal.Decimal, rawUnit string) Component {
	norm := normalizeUnit(rawUnit)
	words := strings.Fields(norm)

	has := func(options ...string) bool {
		for _, w := range words {
			for _, o := range options {
				if w == o {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("kg", "kgs"):
		return Component{Kind: KindSpecific, Value: value, Per: PerKg}
	case has("g", "gram", "grams"):
		return Component{Kind: KindSpecific, Value: value.Mul(thousand), Per: PerKg}
	case has("lb", "lbs", "pound", "pounds"):
		return Component{Kind: KindSpecific, Value: value.Div(poundsPerKilo), Per: PerKg}
	case has("doz", "dozen", "dz") && has("pr", "prs", "pair", "pairs"):
		// Must precede the standalone pair and dozen cases.
		return Component{Kind: KindSpecific, Value: value.Div(twelve), Per: PerPair}
	case has("pr", "prs", "pair", "pairs"):
		return Component{Kind: KindSpecific, Value: value, Per: PerPair}
	case has("doz", "dozen", "dz"):
		return Component{Kind: KindSpecific, Value: value, Per: PerDozen}
	case has("gross"):
		return Component{Kind: KindSpecific, Value: value.Div(grossCount), Per: PerUnit}
	case has("no", "unit", "units", "each", "u"):
		return Component{Kind: KindSpecific, Value: value, Per: PerUnit}
	default:
		// Unrecognized basis: keep the normalized token verbatim; the duty
		// calculator flags it as unsupported instead of guessing.
		return Component{Kind: KindSpecific, Value: value, Per: norm}
	}
}
