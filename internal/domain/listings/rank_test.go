package listings

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vehicleFor(l RawListing) MergedVehicle {
	return MergedVehicle{Listing: l, Confidence: 1.0}
}

func fleet(n int) []MergedVehicle {
	out := make([]MergedVehicle, 0, n)
	for i := 0; i < n; i++ {
		l := RawListing{
			SourceID:  "ebay",
			ListingID: fmt.Sprintf("l%02d", i),
			Make:      "Toyota",
			Model:     "Camry",
			Year:      intPtr(2015 + i%10),
			Price:     floatPtr(float64(10000 + i*1500)),
			Mileage:   intPtr(100000 - i*5000),
			FetchedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
		out = append(out, vehicleFor(l))
	}
	return out
}

func TestParseSortMode(t *testing.T) {
	mode, err := ParseSortMode("")
	require.NoError(t, err)
	assert.Equal(t, SortRelevance, mode)

	mode, err = ParseSortMode("PRICE_ASC")
	require.NoError(t, err)
	assert.Equal(t, SortPriceAsc, mode)

	_, err = ParseSortMode("by_vibes")
	assert.Error(t, err)
}

func TestRankPriceAsc(t *testing.T) {
	vehicles := fleet(5)
	Rank(vehicles, SortPriceAsc, DefaultMergeConfig())
	for i := 1; i < len(vehicles); i++ {
		assert.LessOrEqual(t, *vehicles[i-1].Listing.Price, *vehicles[i].Listing.Price)
	}
}

func TestRankPriceDescNilsLast(t *testing.T) {
	vehicles := fleet(3)
	noPrice := vehicleFor(RawListing{SourceID: "carmax", ListingID: "np", Make: "Toyota", Model: "Camry"})
	vehicles = append([]MergedVehicle{noPrice}, vehicles...)

	Rank(vehicles, SortPriceDesc, DefaultMergeConfig())

	last := vehicles[len(vehicles)-1]
	assert.Nil(t, last.Listing.Price)
	for i := 1; i < len(vehicles)-1; i++ {
		assert.GreaterOrEqual(t, *vehicles[i-1].Listing.Price, *vehicles[i].Listing.Price)
	}
}

func TestRankMileageAscAndYearDesc(t *testing.T) {
	vehicles := fleet(6)
	Rank(vehicles, SortMileageAsc, DefaultMergeConfig())
	for i := 1; i < len(vehicles); i++ {
		assert.LessOrEqual(t, *vehicles[i-1].Listing.Mileage, *vehicles[i].Listing.Mileage)
	}

	Rank(vehicles, SortYearDesc, DefaultMergeConfig())
	for i := 1; i < len(vehicles); i++ {
		assert.GreaterOrEqual(t, *vehicles[i-1].Listing.Year, *vehicles[i].Listing.Year)
	}
}

func TestRankRecent(t *testing.T) {
	vehicles := fleet(4)
	Rank(vehicles, SortRecent, DefaultMergeConfig())
	for i := 1; i < len(vehicles); i++ {
		assert.False(t, vehicles[i].Listing.FetchedAt.After(vehicles[i-1].Listing.FetchedAt))
	}
}

// Relevance is deterministic: ranking the same set twice yields the same order.
func TestRankRelevanceDeterministic(t *testing.T) {
	a := fleet(12)
	b := fleet(12)

	Rank(a, SortRelevance, DefaultMergeConfig())
	Rank(b, SortRelevance, DefaultMergeConfig())

	for i := range a {
		assert.Equal(t, a[i].Listing.ListingID, b[i].Listing.ListingID, "position %d", i)
	}
}

// More corroborating sources never lowers a vehicle's relevance rank when all
// else is equal.
func TestRankRelevanceCorroborationBonus(t *testing.T) {
	solo := vehicleFor(civic("ebay", "solo", 20000, 30000))
	corroborated := vehicleFor(civic("carmax", "multi", 20000, 30000))
	corroborated.Duplicates = []SourceRef{{SourceID: "cargurus", ListingID: "g1"}}

	vehicles := []MergedVehicle{solo, corroborated}
	Rank(vehicles, SortRelevance, DefaultMergeConfig())

	assert.Equal(t, "multi", vehicles[0].Listing.ListingID)
}

func TestPaginate(t *testing.T) {
	vehicles := fleet(12)
	Rank(vehicles, SortPriceAsc, DefaultMergeConfig())

	// page 2 of 5 over 12 items: ranks 6-10, 3 pages total.
	items, total, pages := Paginate(vehicles, 2, 5)
	assert.Equal(t, 12, total)
	assert.Equal(t, 3, pages)
	require.Len(t, items, 5)
	assert.Equal(t, vehicles[5].Listing.ListingID, items[0].Listing.ListingID)
	assert.Equal(t, vehicles[9].Listing.ListingID, items[4].Listing.ListingID)

	// final partial page
	items, _, _ = Paginate(vehicles, 3, 5)
	assert.Len(t, items, 2)

	// past the end
	items, total, pages = Paginate(vehicles, 9, 5)
	assert.Empty(t, items)
	assert.Equal(t, 12, total)
	assert.Equal(t, 3, pages)

	// page < 1 treated as 1
	items, _, _ = Paginate(vehicles, 0, 5)
	require.Len(t, items, 5)
	assert.Equal(t, vehicles[0].Listing.ListingID, items[0].Listing.ListingID)
}

// Concatenating all pages reproduces the ranked list with no gaps or overlaps.
func TestPaginateCoversAll(t *testing.T) {
	vehicles := fleet(11)
	Rank(vehicles, SortMileageAsc, DefaultMergeConfig())

	perPage := 4
	var collected []string
	_, _, pages := Paginate(vehicles, 1, perPage)
	for page := 1; page <= pages; page++ {
		items, _, _ := Paginate(vehicles, page, perPage)
		for _, v := range items {
			collected = append(collected, v.Listing.ListingID)
		}
	}

	require.Len(t, collected, len(vehicles))
	seen := map[string]bool{}
	for i, id := range collected {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		assert.Equal(t, vehicles[i].Listing.ListingID, id)
	}
}
