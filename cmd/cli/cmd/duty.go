package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tariff-engine/core/duty"
	"tariff-engine/core/rate"
	"tariff-engine/internal/errors"
)

var hundredDec = decimal.NewFromInt(100)

var (
	dutyPrice    string
	dutyQuantity string
	dutyWeight   string
)

var dutyCmd = &cobra.Command{
	Use:     "duty <rate-text>",
	Short:   "Compute a duty estimate from rate text and a declaration",
	Example: `  tariff duty "2.5% + 20¢/doz. pr." --price 12.50 --quantity 24`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		parsed := rate.Parse(text)
		if parsed == nil {
			return errors.Input(fmt.Sprintf("rate text %q is unparseable", text))
		}

		price, err := decimal.NewFromString(dutyPrice)
		if err != nil {
			return errors.Input("--price must be a decimal amount")
		}

		in := duty.Input{Components: parsed.Components, UnitPriceUSD: price}
		if dutyQuantity != "" {
			if in.Quantity, err = decimal.NewFromString(dutyQuantity); err != nil {
				return errors.Input("--quantity must be a decimal amount")
			}
		}
		if dutyWeight != "" {
			if in.WeightKg, err = decimal.NewFromString(dutyWeight); err != nil {
				return errors.Input("--weight-kg must be a decimal amount")
			}
		}

		result := duty.Compute(in)
		fmt.Printf("estimated duty: $%s\n", result.Amount.StringFixed(2))
		for _, note := range result.Notes {
			fmt.Printf("  note: %s\n", note)
		}
		return nil
	},
}

func init() {
	dutyCmd.Flags().StringVar(&dutyPrice, "price", "", "declared unit price in USD (required)")
	dutyCmd.Flags().StringVar(&dutyQuantity, "quantity", "", "declared quantity of units")
	dutyCmd.Flags().StringVar(&dutyWeight, "weight-kg", "", "declared net weight in kilograms")
	_ = dutyCmd.MarkFlagRequired("price")
	rootCmd.AddCommand(dutyCmd)
}
