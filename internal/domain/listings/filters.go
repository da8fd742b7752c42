package listings

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/carlookout/server/internal/standardize"
)

// FilterSet narrows an aggregation query. Enum-valued fields hold canonical
// vocabulary values; adapters may push filters down to the source, but the
// service re-applies them post-merge so the guarantee holds regardless of
// source behaviour.
type FilterSet struct {
	Make       string   `json:"make,omitempty"`
	Model      string   `json:"model,omitempty"`
	YearMin    *int     `json:"year_min,omitempty"`
	YearMax    *int     `json:"year_max,omitempty"`
	PriceMin   *float64 `json:"price_min,omitempty"`
	PriceMax   *float64 `json:"price_max,omitempty"`
	MileageMax *int     `json:"mileage_max,omitempty"`

	BodyStyle     string `json:"body_style,omitempty"`
	FuelType      string `json:"fuel_type,omitempty"`
	Transmission  string `json:"transmission,omitempty"`
	Drivetrain    string `json:"drivetrain,omitempty"`
	ExteriorColor string `json:"exterior_color,omitempty"`

	ExcludeColors    []string `json:"exclude_colors,omitempty"`
	RequiredFeatures []string `json:"required_features,omitempty"`
}

// FilterError reports an invalid filter value.
type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Matches reports whether a listing passes every populated filter. Listings
// missing a field a range filter applies to are excluded (an unknown price
// cannot satisfy price_max).
func (f FilterSet) Matches(l RawListing) bool {
	if f.Make != "" && !strings.EqualFold(f.Make, l.Make) {
		return false
	}
	if f.Model != "" && !containsFold(l.Model, f.Model) {
		return false
	}
	if f.YearMin != nil && (l.Year == nil || *l.Year < *f.YearMin) {
		return false
	}
	if f.YearMax != nil && (l.Year == nil || *l.Year > *f.YearMax) {
		return false
	}
	if f.PriceMin != nil && (l.Price == nil || *l.Price < *f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && (l.Price == nil || *l.Price > *f.PriceMax) {
		return false
	}
	if f.MileageMax != nil && (l.Mileage == nil || *l.Mileage > *f.MileageMax) {
		return false
	}
	if f.BodyStyle != "" && l.BodyStyle != f.BodyStyle {
		return false
	}
	if f.FuelType != "" && l.FuelType != f.FuelType {
		return false
	}
	if f.Transmission != "" && l.Transmission != f.Transmission {
		return false
	}
	if f.Drivetrain != "" && l.Drivetrain != f.Drivetrain {
		return false
	}
	if f.ExteriorColor != "" && l.ExteriorColor != f.ExteriorColor {
		return false
	}
	for _, excluded := range f.ExcludeColors {
		if l.ExteriorColor != "" && strings.EqualFold(l.ExteriorColor, excluded) {
			return false
		}
	}
	for _, feature := range f.RequiredFeatures {
		if !hasFeature(l.Features, feature) {
			return false
		}
	}
	return true
}

// Fingerprint returns a canonical key=value encoding with sorted keys, so two
// logically identical filter sets fingerprint identically regardless of how
// they were constructed. Used as cache-key input.
func (f FilterSet) Fingerprint() string {
	parts := map[string]string{}
	put := func(key, value string) {
		if value != "" {
			parts[key] = value
		}
	}
	put("make", strings.ToLower(f.Make))
	put("model", strings.ToLower(f.Model))
	if f.YearMin != nil {
		put("year_min", strconv.Itoa(*f.YearMin))
	}
	if f.YearMax != nil {
		put("year_max", strconv.Itoa(*f.YearMax))
	}
	if f.PriceMin != nil {
		put("price_min", strconv.FormatFloat(*f.PriceMin, 'f', 2, 64))
	}
	if f.PriceMax != nil {
		put("price_max", strconv.FormatFloat(*f.PriceMax, 'f', 2, 64))
	}
	if f.MileageMax != nil {
		put("mileage_max", strconv.Itoa(*f.MileageMax))
	}
	put("body_style", f.BodyStyle)
	put("fuel_type", f.FuelType)
	put("transmission", f.Transmission)
	put("drivetrain", f.Drivetrain)
	put("exterior_color", f.ExteriorColor)
	put("exclude_colors", sortedJoin(f.ExcludeColors))
	put("required_features", sortedJoin(f.RequiredFeatures))

	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(parts[k])
	}
	return sb.String()
}

// ParseFilters builds a FilterSet from query parameters, standardizing
// enum-valued inputs so "All-Wheel Drive" and "awd" filter identically.
func ParseFilters(values url.Values) (FilterSet, error) {
	filters := FilterSet{}

	filters.Make = strings.TrimSpace(values.Get("make"))
	filters.Model = strings.TrimSpace(values.Get("model"))

	var err error
	if filters.YearMin, err = parseIntParam(values, "year_min"); err != nil {
		return filters, err
	}
	if filters.YearMax, err = parseIntParam(values, "year_max"); err != nil {
		return filters, err
	}
	if filters.YearMin != nil && filters.YearMax != nil && *filters.YearMax < *filters.YearMin {
		return filters, FilterError{Field: "year_max", Message: "must be >= year_min"}
	}

	if filters.PriceMin, err = parseFloatParam(values, "price_min"); err != nil {
		return filters, err
	}
	if filters.PriceMax, err = parseFloatParam(values, "price_max"); err != nil {
		return filters, err
	}
	if filters.PriceMin != nil && filters.PriceMax != nil && *filters.PriceMax < *filters.PriceMin {
		return filters, FilterError{Field: "price_max", Message: "must be >= price_min"}
	}

	if filters.MileageMax, err = parseIntParam(values, "mileage_max"); err != nil {
		return filters, err
	}

	filters.BodyStyle = standardize.Field("body_style", values.Get("body_style"))
	filters.FuelType = standardize.Field("fuel_type", values.Get("fuel_type"))
	filters.Transmission = standardize.Field("transmission", values.Get("transmission"))
	filters.Drivetrain = standardize.Field("drivetrain", values.Get("drivetrain"))
	filters.ExteriorColor = standardize.Field("exterior_color", values.Get("exterior_color"))

	for _, raw := range splitCSV(values.Get("exclude_colors")) {
		filters.ExcludeColors = append(filters.ExcludeColors, standardize.Color(raw))
	}
	for _, raw := range splitCSV(values.Get("required_features")) {
		filters.RequiredFeatures = append(filters.RequiredFeatures, strings.ToLower(raw))
	}

	return filters, nil
}

func parseIntParam(values url.Values, field string) (*int, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil, FilterError{Field: field, Message: "must be a number"}
	}
	if parsed < 0 {
		return nil, FilterError{Field: field, Message: "must be >= 0"}
	}
	return &parsed, nil
}

func parseFloatParam(values url.Values, field string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, FilterError{Field: field, Message: "must be a number"}
	}
	if parsed < 0 {
		return nil, FilterError{Field: field, Message: "must be >= 0"}
	}
	return &parsed, nil
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func sortedJoin(values []string) string {
	if len(values) == 0 {
		return ""
	}
	copied := make([]string, len(values))
	for i, v := range values {
		copied[i] = strings.ToLower(strings.TrimSpace(v))
	}
	sort.Strings(copied)
	return strings.Join(copied, ",")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func hasFeature(features []string, want string) bool {
	for _, f := range features {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
