// Package tariff defines the canonical tariff line item and its normalizer.
package tariff

import (
	"tariff-engine/core/rate"
)

// Item is the canonical shape for one tariff schedule line.
type Item struct {
	// Code10 is exactly 10 digits, right-padded with zeros when the
	// upstream supplied a shorter code
	Code10 string `json:"code10"`

	// DisplayCode is the dot-grouped presentation form (dddd.dd.dddd)
	DisplayCode string `json:"display_code"`

	// Description is the line's article description
	Description string `json:"description"`

	// Notes carries any supplemental upstream text
	Notes string `json:"notes,omitempty"`

	// RateType is empty when the general rate text was unparseable
	RateType rate.Type `json:"rate_type,omitempty"`

	// Components is the parsed general-rate component list
	Components []rate.Component `json:"components,omitempty"`

	// RawRateText is the general rate text as the upstream supplied it
	RawRateText string `json:"raw_rate_text,omitempty"`

	// IsTenDigit is true iff the original code, before padding, was
	// exactly 10 digits
	IsTenDigit bool `json:"is_ten_digit"`

	// HasNESOI marks catch-all "not elsewhere specified" lines
	HasNESOI bool `json:"has_nesoi"`

	// SourceURL deep links to the official record
	SourceURL string `json:"source_url"`
}

// Chapter is the first two digits of Code10. It is derived, never stored,
// so it cannot drift from the code.
func (i Item) Chapter() string {
	if len(i.Code10) < 2 {
		return ""
	}
	return i.Code10[:2]
}
