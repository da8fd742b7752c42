package listings

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Failure reasons surfaced per source in the response envelope.
const (
	ReasonTimeout     = "timeout"
	ReasonError       = "error"
	ReasonCircuitOpen = "circuit_open"
)

// SearchRequest is the aggregation service input.
type SearchRequest struct {
	Query   string    `json:"query" validate:"max=200"`
	Filters FilterSet `json:"filters"`
	SortBy  SortMode  `json:"sort_by"`
	Page    int       `json:"page" validate:"min=0"`
	PerPage int       `json:"per_page" validate:"min=0,max=100"`
	// Sources limits the query to the named sources; empty means all enabled.
	Sources []string `json:"sources,omitempty"`
}

// SourceFailure reports one source that contributed nothing to a response.
type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// SearchResponse is the aggregation envelope returned to the web/CLI layer.
// It is always well-formed: when every source fails, Vehicles is empty and
// SourcesFailed lists them all, but no error reaches the caller.
type SearchResponse struct {
	SearchID          string          `json:"search_id"`
	Vehicles          []MergedVehicle `json:"vehicles"`
	Total             int             `json:"total"`
	Page              int             `json:"page"`
	PerPage           int             `json:"per_page"`
	Pages             int             `json:"pages"`
	SourcesSearched   []string        `json:"sources_searched"`
	SourcesFailed     []SourceFailure `json:"sources_failed"`
	SearchTimeSeconds float64         `json:"search_time_seconds"`
}

// DispatchOutcome carries the fan-out result back from the dispatcher:
// successful sources with their listings, and failed sources with a
// classified reason (timeout, error, circuit_open).
type DispatchOutcome struct {
	Succeeded map[string][]RawListing
	Failed    map[string]string
}

// Dispatcher fans a query out to source adapters. Implementations own
// per-source timeouts, caching, and circuit breaking; the outcome is always
// partial-success-tolerant.
type Dispatcher interface {
	Dispatch(ctx context.Context, query string, filters FilterSet, sources []string) DispatchOutcome
	// Sources returns the enabled source IDs the dispatcher can query.
	Sources() []string
}

// Service composes dispatch → merge → rank → paginate into the public
// aggregation operation.
type Service struct {
	dispatcher Dispatcher
	merge      MergeConfig
	validate   *validator.Validate
	logger     zerolog.Logger
}

func NewService(dispatcher Dispatcher, merge MergeConfig, logger zerolog.Logger) *Service {
	return &Service{
		dispatcher: dispatcher,
		merge:      merge.withDefaults(),
		validate:   validator.New(),
		logger:     logger,
	}
}

// Search runs one aggregation request end to end. Source failures never
// propagate as errors; only an invalid request returns one.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	started := time.Now()

	if err := s.validate.Struct(req); err != nil {
		return SearchResponse{}, err
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = 20
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = SortRelevance
	}

	sources := req.Sources
	if len(sources) == 0 {
		sources = s.dispatcher.Sources()
	}

	outcome := s.dispatcher.Dispatch(ctx, req.Query, req.Filters, sources)

	merged := Merge(outcome.Succeeded, s.merge)
	filtered := merged[:0:0]
	for _, v := range merged {
		if req.Filters.Matches(v.Listing) {
			filtered = append(filtered, v)
		}
	}

	Rank(filtered, sortBy, s.merge)
	items, total, pages := Paginate(filtered, req.Page, req.PerPage)

	searched := make([]string, 0, len(outcome.Succeeded))
	for sourceID := range outcome.Succeeded {
		searched = append(searched, sourceID)
	}
	sort.Strings(searched)

	failed := make([]SourceFailure, 0, len(outcome.Failed))
	for sourceID, reason := range outcome.Failed {
		failed = append(failed, SourceFailure{Source: sourceID, Reason: reason})
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Source < failed[j].Source })

	elapsed := time.Since(started)
	resp := SearchResponse{
		SearchID:          uuid.NewString(),
		Vehicles:          items,
		Total:             total,
		Page:              req.Page,
		PerPage:           req.PerPage,
		Pages:             pages,
		SourcesSearched:   searched,
		SourcesFailed:     failed,
		SearchTimeSeconds: elapsed.Seconds(),
	}

	s.logger.Info().
		Str("search_id", resp.SearchID).
		Str("query", req.Query).
		Int("total", total).
		Int("sources_ok", len(searched)).
		Int("sources_failed", len(failed)).
		Dur("elapsed", elapsed).
		Msg("search completed")

	return resp, nil
}
