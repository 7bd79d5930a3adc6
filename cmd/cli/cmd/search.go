package cmd

import (
	"fmt"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"

	"tariff-engine/core/search"
	"tariff-engine/internal/logging"
)

var (
	searchLimit        int
	searchOffset       int
	searchTenDigitOnly bool
	searchChapter      string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the tariff schedule for a product description or code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		engine := newEngine(logging.Logger)

		result, err := engine.Search(c.Context(), strings.Join(args, " "), search.Options{
			Limit:        searchLimit,
			Offset:       searchOffset,
			TenDigitOnly: searchTenDigitOnly,
			Chapter:      searchChapter,
			FuzzyEdits:   1,
		})
		if err != nil {
			return err
		}

		printResult(result)
		return nil
	},
}

func printResult(result *search.Result) {
	if result.Meta.Degraded {
		fmt.Println("! serving cached results; live tariff data unavailable")
	}
	for _, w := range result.Meta.Warnings {
		fmt.Printf("! %s\n", w)
	}
	fmt.Printf("%d result(s), %d total\n\n", len(result.Items), result.Meta.TotalFound)

	for _, item := range result.Items {
		rateText := item.RawRateText
		if rateText == "" {
			rateText = "(no rate)"
		}
		fmt.Printf("%s  %s\n", item.DisplayCode, rateText)
		for _, line := range strings.Split(wordwrap.WrapString(item.Description, 72), "\n") {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println()
	}
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "page size")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "page start")
	searchCmd.Flags().BoolVar(&searchTenDigitOnly, "ten-digit-only", false, "only fully specific ten-digit lines")
	searchCmd.Flags().StringVar(&searchChapter, "chapter", "", "restrict to a two-digit chapter")
	rootCmd.AddCommand(searchCmd)
}
