package listings

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// SortMode selects the ordering applied to merged vehicles.
type SortMode string

const (
	SortRelevance  SortMode = "relevance"
	SortPriceAsc   SortMode = "price_asc"
	SortPriceDesc  SortMode = "price_desc"
	SortYearDesc   SortMode = "year_desc"
	SortMileageAsc SortMode = "mileage_asc"
	SortRecent     SortMode = "recent"
)

// ParseSortMode validates a sort parameter; empty input defaults to relevance.
func ParseSortMode(value string) (SortMode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return SortRelevance, nil
	}
	switch SortMode(value) {
	case SortRelevance, SortPriceAsc, SortPriceDesc, SortYearDesc, SortMileageAsc, SortRecent:
		return SortMode(value), nil
	default:
		return "", FilterError{Field: "sort_by", Message: fmt.Sprintf("unsupported sort mode %q", value)}
	}
}

// Relevance scoring weights. The composite is deterministic and monotonic in
// each input: lower price within the desirable band, newer year, lower
// mileage, fresher fetch, and more corroborating sources all raise the score.
const (
	relevancePriceWeight   = 1.5
	relevanceYearWeight    = 1.0
	relevanceMileageWeight = 1.0
	relevanceRecencyWeight = 0.5
	relevanceSourcesBonus  = 0.25
)

// relevanceScore computes the composite desirability score for a vehicle.
// Missing fields contribute zero, so sparse listings rank below complete ones
// with otherwise identical data. `now` is passed in so a single ranking pass
// scores every vehicle against the same clock.
func relevanceScore(v MergedVehicle, now time.Time) float64 {
	l := v.Listing
	score := 0.0

	if l.Price != nil {
		score += relevancePriceWeight * priceBandScore(*l.Price)
	}
	if l.Year != nil {
		// 0 at year 2000 and below, 1.0 at now+1; clamped.
		span := float64(now.Year()+1 - 2000)
		score += relevanceYearWeight * clamp01(float64(*l.Year-2000)/span)
	}
	if l.Mileage != nil {
		// 1.0 at zero miles, 0 at 150k and beyond.
		score += relevanceMileageWeight * clamp01(1-float64(*l.Mileage)/150_000)
	}
	if !l.FetchedAt.IsZero() {
		// Full credit inside the last hour, decaying to 0 over a week.
		age := now.Sub(l.FetchedAt)
		score += relevanceRecencyWeight * clamp01(1-age.Hours()/(7*24))
	}

	// Cross-source corroboration: a car listed on several marketplaces is a
	// stronger result than a single-source one. Capped so it stays a bonus.
	score += relevanceSourcesBonus * math.Min(float64(len(v.Duplicates)), 3)

	return score
}

// priceBandScore favours the $5k–$40k band where most used-car demand sits;
// it decays linearly outside the band.
func priceBandScore(price float64) float64 {
	switch {
	case price < 5_000:
		return clamp01(price / 5_000)
	case price <= 40_000:
		return 1.0
	default:
		return clamp01(1 - (price-40_000)/60_000)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rank sorts vehicles in place by the requested mode. Every mode is a stable
// total order: after the mode's primary comparison, ties fall through to
// source priority and then listing identity, so identical inputs always
// produce identical orderings. Vehicles missing the sorted field go last.
func Rank(vehicles []MergedVehicle, mode SortMode, cfg MergeConfig) {
	now := time.Now().UTC()

	var scores map[SourceRef]float64
	if mode == SortRelevance || mode == "" {
		scores = make(map[SourceRef]float64, len(vehicles))
		for _, v := range vehicles {
			scores[v.Listing.Ref()] = relevanceScore(v, now)
		}
	}

	sort.SliceStable(vehicles, func(i, j int) bool {
		a, b := vehicles[i], vehicles[j]
		if cmp := compareByMode(a, b, mode, scores); cmp != 0 {
			return cmp < 0
		}
		if pa, pb := cfg.priorityIndex(a.Listing.SourceID), cfg.priorityIndex(b.Listing.SourceID); pa != pb {
			return pa < pb
		}
		return refLess(a.Listing.Ref(), b.Listing.Ref())
	})
}

// compareByMode returns negative when a sorts before b under the mode.
func compareByMode(a, b MergedVehicle, mode SortMode, scores map[SourceRef]float64) int {
	switch mode {
	case SortPriceAsc:
		return compareFloatPtr(a.Listing.Price, b.Listing.Price, true)
	case SortPriceDesc:
		return compareFloatPtr(a.Listing.Price, b.Listing.Price, false)
	case SortYearDesc:
		return compareIntPtr(a.Listing.Year, b.Listing.Year, false)
	case SortMileageAsc:
		return compareIntPtr(a.Listing.Mileage, b.Listing.Mileage, true)
	case SortRecent:
		// Most recently fetched first.
		switch {
		case a.Listing.FetchedAt.After(b.Listing.FetchedAt):
			return -1
		case b.Listing.FetchedAt.After(a.Listing.FetchedAt):
			return 1
		default:
			return 0
		}
	default: // relevance
		sa, sb := scores[a.Listing.Ref()], scores[b.Listing.Ref()]
		switch {
		case sa > sb:
			return -1
		case sb > sa:
			return 1
		default:
			return 0
		}
	}
}

// compareFloatPtr orders non-nil values by asc/desc and sends nils last.
func compareFloatPtr(a, b *float64, ascending bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	case (*a < *b) == ascending:
		return -1
	default:
		return 1
	}
}

func compareIntPtr(a, b *int, ascending bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a == *b:
		return 0
	case (*a < *b) == ascending:
		return -1
	default:
		return 1
	}
}

// Paginate slices a ranked list. Pages are 1-indexed; page values below 1 are
// treated as 1 and perPage is clamped to 1..100. Returns the page items, the
// pre-pagination total, and the page count.
func Paginate(vehicles []MergedVehicle, page, perPage int) (items []MergedVehicle, total, pages int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	total = len(vehicles)
	pages = (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	if start >= total {
		return []MergedVehicle{}, total, pages
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return vehicles[start:end], total, pages
}
