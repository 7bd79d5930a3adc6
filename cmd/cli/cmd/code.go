package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tariff-engine/core/search"
	"tariff-engine/internal/logging"
)

var codeCmd = &cobra.Command{
	Use:   "code <hts-code>",
	Short: "Look up tariff lines under a 6, 8 or 10 digit HTS code",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		engine := newEngine(logging.Logger)

		items, err := engine.GetByCode(c.Context(), args[0], search.Options{})
		if err != nil {
			return err
		}

		for _, item := range items {
			rateText := item.RawRateText
			if rateText == "" {
				rateText = "(no rate)"
			}
			fmt.Printf("%s  %-30s  %s\n", item.DisplayCode, rateText, item.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codeCmd)
}
