package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tariff-engine/core/rate"
)

var rateCmd = &cobra.Command{
	Use:   "rate <rate-text>",
	Short: "Parse tariff rate text into computable components",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		parsed := rate.Parse(text)
		if parsed == nil {
			fmt.Println("unparseable rate text")
			return nil
		}

		fmt.Printf("type: %s\n", parsed.Type)
		for _, c := range parsed.Components {
			if c.Kind == rate.KindPercentage {
				fmt.Printf("  %s%% of declared value\n", c.Value.Mul(hundredDec).String())
				continue
			}
			fmt.Printf("  $%s per %s\n", c.Value.String(), c.Per)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rateCmd)
}
