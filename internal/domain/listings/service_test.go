package listings

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDispatcher returns a canned outcome and records the sources requested.
type stubDispatcher struct {
	outcome   DispatchOutcome
	enabled   []string
	requested []string
}

func (s *stubDispatcher) Dispatch(_ context.Context, _ string, _ FilterSet, sources []string) DispatchOutcome {
	s.requested = sources
	return s.outcome
}

func (s *stubDispatcher) Sources() []string { return s.enabled }

func newTestService(d Dispatcher) *Service {
	return NewService(d, DefaultMergeConfig(), zerolog.Nop())
}

func TestServiceSearchEnvelope(t *testing.T) {
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay", "carmax", "cargurus"},
		outcome: DispatchOutcome{
			Succeeded: map[string][]RawListing{
				"ebay":   {civic("ebay", "e1", 20000, 30000)},
				"carmax": {civic("carmax", "c1", 20050, 30400)},
			},
			Failed: map[string]string{"cargurus": ReasonTimeout},
		},
	}

	resp, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{Query: "Honda Civic"})
	require.NoError(t, err)

	// defaults applied, all enabled sources requested
	assert.Equal(t, []string{"ebay", "carmax", "cargurus"}, dispatcher.requested)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PerPage)

	// the two successes merged into one vehicle with provenance
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Vehicles, 1)
	assert.Len(t, resp.Vehicles[0].Duplicates, 1)

	assert.Equal(t, []string{"carmax", "ebay"}, resp.SourcesSearched)
	require.Len(t, resp.SourcesFailed, 1)
	assert.Equal(t, SourceFailure{Source: "cargurus", Reason: ReasonTimeout}, resp.SourcesFailed[0])
	assert.NotEmpty(t, resp.SearchID)
	assert.GreaterOrEqual(t, resp.SearchTimeSeconds, 0.0)
}

// Every source failing still yields a well-formed empty envelope, never an error.
func TestServiceSearchAllSourcesFailed(t *testing.T) {
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay", "carmax"},
		outcome: DispatchOutcome{
			Succeeded: map[string][]RawListing{},
			Failed: map[string]string{
				"ebay":   ReasonError,
				"carmax": ReasonCircuitOpen,
			},
		},
	}

	resp, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{Query: "anything"})
	require.NoError(t, err)

	assert.Empty(t, resp.Vehicles)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.SourcesSearched)
	assert.Len(t, resp.SourcesFailed, 2)
}

func TestServiceSearchAppliesFiltersPostMerge(t *testing.T) {
	cheap := civic("ebay", "cheap", 12000, 80000)
	pricey := civic("ebay", "pricey", 32000, 10000)
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay"},
		outcome: DispatchOutcome{
			Succeeded: map[string][]RawListing{"ebay": {cheap, pricey}},
			Failed:    map[string]string{},
		},
	}

	resp, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{
		Filters: FilterSet{PriceMax: floatPtr(15000)},
	})
	require.NoError(t, err)

	require.Len(t, resp.Vehicles, 1)
	assert.Equal(t, "cheap", resp.Vehicles[0].Listing.ListingID)
}

func TestServiceSearchPagination(t *testing.T) {
	perSource := map[string][]RawListing{"ebay": nil}
	for i := 0; i < 12; i++ {
		perSource["ebay"] = append(perSource["ebay"], civic("ebay", string(rune('a'+i)), float64(10000+i*1000), 20000+i*3000))
	}
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay"},
		outcome: DispatchOutcome{Succeeded: perSource, Failed: map[string]string{}},
	}

	resp, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{
		SortBy:  SortPriceAsc,
		Page:    2,
		PerPage: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, resp.Total)
	assert.Equal(t, 3, resp.Pages)
	require.Len(t, resp.Vehicles, 5)
	// page 2 of 5 holds ranks 6-10 by ascending price
	assert.Equal(t, 15000.0, *resp.Vehicles[0].Listing.Price)
	assert.Equal(t, 19000.0, *resp.Vehicles[4].Listing.Price)
}

func TestServiceSearchRejectsInvalidRequest(t *testing.T) {
	dispatcher := &stubDispatcher{enabled: []string{"ebay"}}
	_, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{PerPage: 500})
	assert.Error(t, err)
}

func TestServiceSearchExplicitSources(t *testing.T) {
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay", "carmax"},
		outcome: DispatchOutcome{Succeeded: map[string][]RawListing{}, Failed: map[string]string{}},
	}
	_, err := newTestService(dispatcher).Search(context.Background(), SearchRequest{Sources: []string{"carmax"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"carmax"}, dispatcher.requested)
}
