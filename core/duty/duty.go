// Package duty computes a dollar duty amount from parsed rate components.
package duty

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tariff-engine/core/rate"
)

// Input carries the shipment declaration for one computation. Quantity and
// WeightKg are treated as absent unless positive.
type Input struct {
	// Components is the parsed rate component list
	Components []rate.Component

	// UnitPriceUSD is the declared price per unit
	UnitPriceUSD decimal.Decimal

	// Quantity is the declared unit count; non-positive means not supplied
	Quantity decimal.Decimal

	// WeightKg is the declared net weight; non-positive means not supplied
	WeightKg decimal.Decimal
}

// Result is a computed duty plus notes about inputs that were missing or
// units that could not be applied. A zero Amount with non-empty Notes means
// components were skipped, not that the rate is free; the notes are the
// disambiguator.
type Result struct {
	// Amount is the summed duty, rounded to 2 decimals
	Amount decimal.Decimal `json:"amount"`

	// Notes records skipped components and why
	Notes []string `json:"notes,omitempty"`
}

var twelve = decimal.NewFromInt(12)

// Compute applies each component against the declaration and sums the results.
//
// Ad-valorem components apply to total declared value (unit price times
// effective quantity), so a single percentage reflects the whole shipment;
// quantity defaults to 1 only for that basis. Specific components never
// default a missing quantity or weight: they are skipped with a note.
func Compute(in Input) Result {
	total := decimal.Zero
	var notes []string

	effectiveQty := decimal.NewFromInt(1)
	hasQty := in.Quantity.IsPositive()
	if hasQty {
		effectiveQty = in.Quantity
	}
	hasWeight := in.WeightKg.IsPositive()

	for _, c := range in.Components {
		switch c.Kind {
		case rate.KindPercentage:
			total = total.Add(in.UnitPriceUSD.Mul(effectiveQty).Mul(c.Value))

		case rate.KindSpecific:
			switch c.Per {
			case rate.PerKg:
				if !hasWeight {
					notes = append(notes, "weight (kg) not supplied; skipped per-kg duty component")
					continue
				}
				total = total.Add(c.Value.Mul(in.WeightKg))

			case rate.PerPair, rate.PerUnit:
				if !hasQty {
					notes = append(notes, fmt.Sprintf("quantity not supplied; skipped per-%s duty component", c.Per))
					continue
				}
				total = total.Add(c.Value.Mul(in.Quantity))

			case rate.PerDozen:
				if !hasQty {
					notes = append(notes, "quantity not supplied; skipped per-dozen duty component")
					continue
				}
				total = total.Add(c.Value.Mul(in.Quantity.Div(twelve)))

			default:
				notes = append(notes, fmt.Sprintf("unsupported duty unit %q; component skipped", c.Per))
			}
		}
	}

	return Result{Amount: total.Round(2), Notes: notes}
}
