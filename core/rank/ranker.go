// Package rank scores normalized tariff items against a search query.
package rank

import (
	"regexp"
	"strings"

	"tariff-engine/core/tariff"
)

// Options tunes scoring. Only relative order of scores matters.
type Options struct {
	// FuzzyEdits enables single-edit fuzzy token matching when >= 1
	FuzzyEdits int

	// ChapterBoosts maps a two-digit chapter to a multiplier; unlisted
	// chapters default to 1.0
	ChapterBoosts map[string]float64
}

// Contribution weights. Chosen so the NESOI penalty reduces but does not
// invert a strongly matching item.
const (
	phraseDescBonus  = 50.0
	phraseNotesBonus = 20.0
	tokenDescBonus   = 10.0
	tokenNotesBonus  = 4.0
	fuzzyDescBonus   = 3.0
	fuzzyNotesBonus  = 1.0
	nesoiPenalty     = 15.0
	tenDigitBoost    = 1.5
)

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases and splits on non-alphanumerics.
func Tokenize(s string) []string {
	var out []string
	for _, t := range tokenSplit.Split(strings.ToLower(s), -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Score ranks one item against the literal query plus its expansion token
// sets. Higher is better.
//
// The additive part (phrase, token and fuzzy bonuses, minus the NESOI
// penalty) is computed first; structural multipliers (ten-digit boost,
// description specificity, chapter boost) apply after, and a tiny
// code-derived tie-breaker lands last so equal-scoring items order
// deterministically.
func Score(item tariff.Item, query string, tokenSets [][]string, opts Options) float64 {
	descLower := strings.ToLower(item.Description)
	notesLower := strings.ToLower(item.Notes)
	queryLower := strings.ToLower(strings.TrimSpace(query))

	descTokens := Tokenize(item.Description)
	notesTokens := Tokenize(item.Notes)

	score := 0.0

	if queryLower != "" {
		if strings.Contains(descLower, queryLower) {
			score += phraseDescBonus
		}
		if notesLower != "" && strings.Contains(notesLower, queryLower) {
			score += phraseNotesBonus
		}
	}

	for _, set := range tokenSets {
		for _, tok := range set {
			switch {
			case containsToken(descTokens, tok):
				score += tokenDescBonus
			case containsToken(notesTokens, tok):
				score += tokenNotesBonus
			case opts.FuzzyEdits >= 1 && fuzzyContains(descTokens, tok):
				score += fuzzyDescBonus
			case opts.FuzzyEdits >= 1 && fuzzyContains(notesTokens, tok):
				score += fuzzyNotesBonus
			}
		}
	}

	if item.HasNESOI {
		score -= nesoiPenalty
	}

	if item.IsTenDigit {
		score *= tenDigitBoost
	}
	score *= specificityFactor(len(descTokens))
	if boost, ok := opts.ChapterBoosts[item.Chapter()]; ok && boost > 0 {
		score *= boost
	}

	return score + tieBreaker(item.Code10)
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func fuzzyContains(tokens []string, tok string) bool {
	for _, t := range tokens {
		if withinOneEdit(t, tok) {
			return true
		}
	}
	return false
}

// specificityFactor favors terser descriptions, clamped so very short or
// very long ones cannot dominate.
func specificityFactor(tokenCount int) float64 {
	f := 1.0 + float64(12-tokenCount)*0.01
	if f < 0.85 {
		return 0.85
	}
	if f > 1.15 {
		return 1.15
	}
	return f
}

// tieBreaker derives a sub-epsilon offset from the last two code digits so
// sort order is reproducible for equal-scoring items.
func tieBreaker(code10 string) float64 {
	if len(code10) < 2 {
		return 0
	}
	tail := code10[len(code10)-2:]
	v := 0
	for _, r := range tail {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + int(r-'0')
	}
	return float64(v) / 1e5
}

// withinOneEdit reports whether two tokens are equal or one single-character
// insert, delete or substitute apart. This is a single linear scan tracking
// at most one discrepancy, not full Levenshtein; it is only meaningful for
// near-equal-length strings and is kept for speed.
func withinOneEdit(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if la-lb > 1 || lb-la > 1 {
		return false
	}

	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		switch {
		case la > lb:
			i++
		case lb > la:
			j++
		default:
			i++
			j++
		}
	}
	if i < la || j < lb {
		edits++
	}
	return edits <= 1
}
