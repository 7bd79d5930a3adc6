// Package query expands a user search term into synonym variants.
package query

import "strings"

// typoCorrections is a closed, hand-maintained table of known misspellings.
// It is deliberately not a general spelling corrector.
var typoCorrections = map[string]string{
	"tshirt":      "t-shirt",
	"t shirt":     "t-shirt",
	"sneekers":    "sneakers",
	"jewelery":    "jewelry",
	"jewellery":   "jewelry",
	"lap top":     "laptop",
	"head phones": "headphones",
	"umbrela":     "umbrella",
	"bycicle":     "bicycle",
	"bicyle":      "bicycle",
}

// synonyms maps a corrected term to related search terms. Order matters:
// expansion output is order-preserving and the original term stays first.
var synonyms = map[string][]string{
	"t-shirt":    {"tee shirt", "knitted shirt", "cotton shirt"},
	"sneakers":   {"athletic footwear", "sports footwear", "tennis shoes"},
	"laptop":     {"portable computer", "notebook computer"},
	"jewelry":    {"imitation jewelry", "precious metal articles"},
	"headphones": {"earphones", "audio headsets"},
	"bicycle":    {"cycles", "bicycles not motorized"},
	"umbrella":   {"umbrellas and sun umbrellas"},
	"handbag":    {"handbags", "travel bags"},
	"watch":      {"wrist watches", "watches"},
	"phone":      {"telephones", "smartphones"},
}

// Expand returns the lowercase query variants to fan out over, the
// typo-corrected original first, deduplicated with first occurrence winning.
func Expand(q string) []string {
	term := strings.ToLower(strings.TrimSpace(q))
	if term == "" {
		return nil
	}
	if corrected, ok := typoCorrections[term]; ok {
		term = corrected
	}

	variants := []string{term}
	variants = append(variants, synonyms[term]...)

	seen := make(map[string]struct{}, len(variants))
	out := variants[:0]
	for _, v := range variants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
