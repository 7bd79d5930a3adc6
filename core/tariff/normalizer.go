package tariff

import (
	"fmt"
	"regexp"
	"strings"

	"tariff-engine/core/rate"
)

// sourceURLBase deep links normalized items back to the official schedule.
const sourceURLBase = "https://hts.usitc.gov/search?query="

var (
	nonDigits = regexp.MustCompile(`\D`)
	nesoiRe   = regexp.MustCompile(`(?i)\bNESOI\b|not elsewhere specified`)
)

// accessor pulls one candidate field out of a raw upstream record.
type accessor func(map[string]any) string

// stringField returns an accessor for a single named field.
func stringField(name string) accessor {
	return func(raw map[string]any) string {
		if v, ok := raw[name].(string); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
}

// Upstream field names vary between payload revisions; these are ordered
// candidate accessors tried in sequence, first non-empty wins.
var (
	codeAccessors = []accessor{
		stringField("htsno"),
		stringField("hts_number"),
		stringField("htsNumber"),
		stringField("hts8"),
		stringField("code"),
		stringField("tariff_line"),
		stringField("number"),
	}

	descriptionAccessors = []accessor{
		stringField("description"),
		stringField("desc"),
		stringField("brief_description"),
		stringField("article_description"),
	}

	notesAccessors = []accessor{
		stringField("notes"),
		stringField("special"),
		stringField("footnotes"),
	}

	rateAccessors = []accessor{
		stringField("general"),
		stringField("general_rate"),
		stringField("general_rate_of_duty"),
		stringField("generalRate"),
		stringField("mfn_rate"),
	}
)

func firstNonEmpty(raw map[string]any, accessors []accessor) string {
	for _, a := range accessors {
		if v := a(raw); v != "" {
			return v
		}
	}
	return ""
}

// locateRateText finds the general duty rate field. After the fixed
// candidate list, it scans every string-valued field whose name contains
// both "general" and "duty", or "general rate", as a last resort.
func locateRateText(raw map[string]any) string {
	if v := firstNonEmpty(raw, rateAccessors); v != "" {
		return v
	}
	for key, val := range raw {
		s, ok := val.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		k := strings.ToLower(key)
		if (strings.Contains(k, "general") && strings.Contains(k, "duty")) ||
			strings.Contains(k, "general rate") {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Normalize converts one raw upstream record into the canonical item shape.
// An unparseable or missing rate is a valid, common outcome, not an error.
func Normalize(raw map[string]any) Item {
	code := firstNonEmpty(raw, codeAccessors)
	digits := nonDigits.ReplaceAllString(code, "")

	isTenDigit := len(digits) == 10
	if len(digits) > 10 {
		digits = digits[:10]
	}
	code10 := digits + strings.Repeat("0", 10-len(digits))

	description := firstNonEmpty(raw, descriptionAccessors)
	rateText := locateRateText(raw)

	item := Item{
		Code10:      code10,
		DisplayCode: fmt.Sprintf("%s.%s.%s", code10[0:4], code10[4:6], code10[6:10]),
		Description: description,
		Notes:       firstNonEmpty(raw, notesAccessors),
		RawRateText: rateText,
		IsTenDigit:  isTenDigit,
		HasNESOI:    nesoiRe.MatchString(description),
		SourceURL:   sourceURLBase + code10,
	}

	if parsed := rate.Parse(rateText); parsed != nil {
		item.RateType = parsed.Type
		item.Components = parsed.Components
	}

	return item
}
