package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlookout/server/internal/domain/listings"
)

type stubDispatcher struct {
	outcome   listings.DispatchOutcome
	enabled   []string
	lastQuery string
}

func (s *stubDispatcher) Dispatch(_ context.Context, query string, _ listings.FilterSet, _ []string) listings.DispatchOutcome {
	s.lastQuery = query
	return s.outcome
}

func (s *stubDispatcher) Sources() []string { return s.enabled }

func civicListing(source, id string, price float64) listings.RawListing {
	year := 2020
	mileage := 30000
	return listings.RawListing{
		SourceID:  source,
		ListingID: id,
		Make:      "Honda",
		Model:     "Civic",
		Year:      &year,
		Price:     &price,
		Mileage:   &mileage,
		FetchedAt: time.Now(),
	}
}

func newSearchHandler(d listings.Dispatcher) *SearchHandler {
	service := listings.NewService(d, listings.DefaultMergeConfig(), zerolog.Nop())
	return NewSearchHandler(service, "test")
}

func TestSearchHandlerOK(t *testing.T) {
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay", "carmax"},
		outcome: listings.DispatchOutcome{
			Succeeded: map[string][]listings.RawListing{
				"ebay": {civicListing("ebay", "e1", 20000)},
			},
			Failed: map[string]string{"carmax": listings.ReasonTimeout},
		},
	}
	handler := newSearchHandler(dispatcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=honda+civic&sort=price_asc", nil)
	rec := httptest.NewRecorder()
	handler.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "honda civic", dispatcher.lastQuery)

	var resp listings.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PerPage)
	require.Len(t, resp.SourcesFailed, 1)
	assert.Equal(t, "carmax", resp.SourcesFailed[0].Source)
	assert.NotEmpty(t, resp.SearchID)
}

func TestSearchHandlerFilters(t *testing.T) {
	dispatcher := &stubDispatcher{
		enabled: []string{"ebay"},
		outcome: listings.DispatchOutcome{
			Succeeded: map[string][]listings.RawListing{
				"ebay": {
					civicListing("ebay", "cheap", 12000),
					civicListing("ebay", "pricey", 32000),
				},
			},
			Failed: map[string]string{},
		},
	}
	handler := newSearchHandler(dispatcher)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?price_max=15000", nil)
	rec := httptest.NewRecorder()
	handler.Search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listings.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "cheap", resp.Vehicles[0].Listing.ListingID)
}

func TestSearchHandlerBadParams(t *testing.T) {
	handler := newSearchHandler(&stubDispatcher{enabled: []string{"ebay"}})

	for _, query := range []string{
		"?year_min=twenty",
		"?sort=by_vibes",
		"?page=one",
		"?per_page=500",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search"+query, nil)
		rec := httptest.NewRecorder()
		handler.Search(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), "query %s", query)
	}
}

func TestSearchHandlerNilService(t *testing.T) {
	handler := &SearchHandler{Env: "test"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	handler.Search(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
