package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlookout/server/internal/domain/listings"
)

var (
	searchMake       string
	searchModel      string
	searchYearMin    string
	searchYearMax    string
	searchPriceMin   string
	searchPriceMax   string
	searchMileageMax string
	searchSort       string
	searchPage       int
	searchPerPage    int
	searchSources    []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a one-shot aggregation search",
	Long: `Query the configured sources once and print the merged result
envelope as JSON.

Examples:
  # Free-text query across all enabled sources
  carlookout search "honda civic"

  # Filtered query against specific sources
  carlookout search camry --year-min 2018 --price-max 25000 --sources ebay,carmax`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchMake, "make", "", "filter by make")
	searchCmd.Flags().StringVar(&searchModel, "model", "", "filter by model")
	searchCmd.Flags().StringVar(&searchYearMin, "year-min", "", "minimum model year")
	searchCmd.Flags().StringVar(&searchYearMax, "year-max", "", "maximum model year")
	searchCmd.Flags().StringVar(&searchPriceMin, "price-min", "", "minimum price")
	searchCmd.Flags().StringVar(&searchPriceMax, "price-max", "", "maximum price")
	searchCmd.Flags().StringVar(&searchMileageMax, "mileage-max", "", "maximum mileage")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "sort mode (relevance, price_asc, price_desc, mileage_asc, year_desc)")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 20, "results per page")
	searchCmd.Flags().StringSliceVar(&searchSources, "sources", nil, "restrict to these source IDs")
}

func runSearch(cmd *cobra.Command, query string) error {
	ctx := context.Background()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set("make", searchMake)
	set("model", searchModel)
	set("year_min", searchYearMin)
	set("year_max", searchYearMax)
	set("price_min", searchPriceMin)
	set("price_max", searchPriceMax)
	set("mileage_max", searchMileageMax)

	filters, err := listings.ParseFilters(values)
	if err != nil {
		return err
	}
	sortBy, err := listings.ParseSortMode(searchSort)
	if err != nil {
		return err
	}

	resp, err := app.service.Search(ctx, listings.SearchRequest{
		Query:   query,
		Filters: filters,
		SortBy:  sortBy,
		Page:    searchPage,
		PerPage: searchPerPage,
		Sources: searchSources,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
