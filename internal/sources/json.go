package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/standardize"
)

// wireListing is one listing as returned by a JSON-API-style source. Sources
// disagree on field types (price as number or "18,500"), so everything
// scalar comes in as a RawMessage-friendly string where possible.
type wireListing struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Make          string            `json:"make"`
	Model         string            `json:"model"`
	Trim          string            `json:"trim"`
	Year          json.Number       `json:"year"`
	Price         json.Number       `json:"price"`
	PriceText     string            `json:"price_text"`
	Mileage       json.Number       `json:"mileage"`
	MileageText   string            `json:"mileage_text"`
	BodyStyle     string            `json:"body_style"`
	FuelType      string            `json:"fuel_type"`
	Transmission  string            `json:"transmission"`
	Drivetrain    string            `json:"drivetrain"`
	ExteriorColor string            `json:"exterior_color"`
	InteriorColor string            `json:"interior_color"`
	VIN           string            `json:"vin"`
	Location      string            `json:"location"`
	URL           string            `json:"url"`
	ImageURLs     []string          `json:"image_urls"`
	Description   string            `json:"description"`
	Attributes    map[string]string `json:"attributes"`
	History       map[string]string `json:"history"`
}

type wireResponse struct {
	Listings []wireListing `json:"listings"`
	Total    int           `json:"total"`
}

// JSONAdapter queries an API-style marketplace endpoint and normalizes its
// payload. The endpoint contract is GET {base_url}?q={query}&limit={n}
// returning {"listings": [...]}.
type JSONAdapter struct {
	config SourceConfig
	client *http.Client
	logger zerolog.Logger
}

func NewJSONAdapter(cfg SourceConfig, logger zerolog.Logger) *JSONAdapter {
	return &JSONAdapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout.Std()},
		logger: logger.With().Str("source", cfg.Name).Logger(),
	}
}

func (a *JSONAdapter) ID() string { return a.config.Name }

func (a *JSONAdapter) Search(ctx context.Context, query string, _ listings.FilterSet, limit int) ([]listings.RawListing, error) {
	u, err := url.Parse(a.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}
	q := u.Query()
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %s", ErrSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrSource, resp.StatusCode)
	}

	var payload wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %s", ErrSource, err)
	}

	fetchedAt := time.Now().UTC()
	results := make([]listings.RawListing, 0, len(payload.Listings))
	dropped := 0
	for _, w := range payload.Listings {
		l := a.normalize(w, fetchedAt)
		if !l.Valid() {
			dropped++
			continue
		}
		results = append(results, l)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	if dropped > 0 {
		a.logger.Warn().Int("dropped", dropped).Msg("dropped malformed listings")
	}
	return results, nil
}

// normalize maps one wire listing into the canonical model, standardizing
// every enum and numeric field.
func (a *JSONAdapter) normalize(w wireListing, fetchedAt time.Time) listings.RawListing {
	l := listings.RawListing{
		SourceID:      a.config.Name,
		ListingID:     strings.TrimSpace(w.ID),
		Title:         strings.TrimSpace(w.Title),
		Make:          strings.TrimSpace(w.Make),
		Model:         strings.TrimSpace(w.Model),
		Trim:          strings.TrimSpace(w.Trim),
		Year:          standardize.Year(w.Year.String()),
		Price:         numberOrText(standardize.Price, w.Price, w.PriceText),
		Mileage:       numberOrText(standardize.Mileage, w.Mileage, w.MileageText),
		BodyStyle:     standardize.BodyStyle(w.BodyStyle),
		FuelType:      standardize.FuelType(w.FuelType),
		Transmission:  standardize.Transmission(w.Transmission),
		Drivetrain:    standardize.Drivetrain(w.Drivetrain),
		ExteriorColor: standardize.Color(w.ExteriorColor),
		InteriorColor: standardize.Color(w.InteriorColor),
		Location:      strings.TrimSpace(w.Location),
		ViewItemURL:   strings.TrimSpace(w.URL),
		ImageURLs:     w.ImageURLs,
		History:       w.History,
		FetchedAt:     fetchedAt,
	}

	attrs := make(map[string]string, len(w.Attributes)+1)
	for k, v := range w.Attributes {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(k), " ", "_"))
		attrs[key] = standardize.Field(key, v)
	}
	if vin := strings.TrimSpace(w.VIN); vin != "" {
		attrs["vin"] = strings.ToUpper(vin)
	}
	if len(attrs) > 0 {
		l.Attributes = attrs
	}

	l.Features = standardize.MergeFeatureTags(
		standardize.ExtractFeatures(w.Title),
		standardize.ExtractFeatures(w.Description),
	)
	applyTitle(&l)
	return l
}

// numberOrText prefers the numeric wire field and falls back to the lenient
// text parser ("$18,500", "42k miles").
func numberOrText[T any](parse func(string) *T, n json.Number, text string) *T {
	if n.String() != "" {
		if v := parse(n.String()); v != nil {
			return v
		}
	}
	if text != "" {
		return parse(text)
	}
	return nil
}
