package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/carlookout/server/internal/api/problem"
	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/metrics"
)

// SearchHandler serves the aggregation search endpoint.
type SearchHandler struct {
	Service *listings.Service
	Env     string
}

func NewSearchHandler(service *listings.Service, env string) *SearchHandler {
	return &SearchHandler{Service: service, Env: env}
}

// Search handles GET /api/v1/search. Query parameters: q, sort, page,
// per_page, sources (comma-separated), plus every filter field understood by
// listings.ParseFilters.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Service == nil {
		problem.Write(w, r, http.StatusInternalServerError, "https://carlookout.example/problems/server-error", "Server error", nil, h.Env)
		return
	}

	started := time.Now()

	req, err := parseSearchRequest(r)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		problem.Write(w, r, http.StatusBadRequest, "https://carlookout.example/problems/validation-error", "Invalid request", err, h.Env)
		return
	}

	resp, err := h.Service.Search(r.Context(), req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		status := http.StatusInternalServerError
		typ := "https://carlookout.example/problems/server-error"
		title := "Server error"
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
			typ = "https://carlookout.example/problems/validation-error"
			title = "Invalid request"
		}
		problem.Write(w, r, status, typ, title, err, h.Env)
		return
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchLatency.Observe(time.Since(started).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// parseSearchRequest maps query parameters onto a SearchRequest.
func parseSearchRequest(r *http.Request) (listings.SearchRequest, error) {
	values := r.URL.Query()

	filters, err := listings.ParseFilters(values)
	if err != nil {
		return listings.SearchRequest{}, err
	}

	sortBy, err := listings.ParseSortMode(values.Get("sort"))
	if err != nil {
		return listings.SearchRequest{}, err
	}

	req := listings.SearchRequest{
		Query:   strings.TrimSpace(values.Get("q")),
		Filters: filters,
		SortBy:  sortBy,
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return listings.SearchRequest{}, listings.FilterError{Field: "page", Message: "must be an integer"}
		}
		req.Page = page
	}
	if raw := values.Get("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return listings.SearchRequest{}, listings.FilterError{Field: "per_page", Message: "must be an integer"}
		}
		req.PerPage = perPage
	}
	if raw := values.Get("sources"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Sources = append(req.Sources, s)
			}
		}
	}

	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
