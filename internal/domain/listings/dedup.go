package listings

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// MergeConfig parameterizes the cross-source dedup heuristic. Bucket widths
// absorb minor rounding differences between sources listing the same car;
// they are tunable, not sacred.
type MergeConfig struct {
	// PriceBucket groups prices into N-dollar-wide buckets (default 100).
	PriceBucket float64
	// MileageBucket groups mileages into N-mile-wide buckets (default 1000).
	MileageBucket int
	// SourcePriority breaks completeness-score ties: earlier sources win.
	// Sources absent from the list rank after every listed source.
	SourcePriority []string
}

// DefaultMergeConfig returns the standard bucket widths and source ordering.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		PriceBucket:   100,
		MileageBucket: 1000,
		SourcePriority: []string{
			"ebay", "carmax", "cargurus", "cars_com", "autotrader",
			"carvana", "craigslist", "auction",
		},
	}
}

func (c MergeConfig) withDefaults() MergeConfig {
	if c.PriceBucket <= 0 {
		c.PriceBucket = 100
	}
	if c.MileageBucket <= 0 {
		c.MileageBucket = 1000
	}
	return c
}

// priorityIndex returns the source's rank in the priority order; unknown
// sources sort after all configured ones, alphabetically via the caller.
func (c MergeConfig) priorityIndex(sourceID string) int {
	for i, s := range c.SourcePriority {
		if strings.EqualFold(s, sourceID) {
			return i
		}
	}
	return len(c.SourcePriority)
}

var collapseSpaces = regexp.MustCompile(`\s{2,}`)

// normalizeKeyPart lowercases, trims, and collapses internal whitespace so
// "Honda  Civic " and "honda civic" key identically.
func normalizeKeyPart(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	return collapseSpaces.ReplaceAllString(normalized, " ")
}

// DedupKey computes the deterministic same-vehicle key: a SHA-256 over
// normalized make|model|year|price-bucket|mileage-bucket. Missing numeric
// fields contribute a "?" marker so partial listings only collide with
// equally partial ones. An exact VIN match (RawListing.VIN) overrides this
// key entirely; see Merge.
func DedupKey(l RawListing, cfg MergeConfig) string {
	cfg = cfg.withDefaults()

	year := "?"
	if l.Year != nil {
		year = fmt.Sprintf("%d", *l.Year)
	}
	price := "?"
	if l.Price != nil {
		price = fmt.Sprintf("%d", int(math.Floor(*l.Price/cfg.PriceBucket)))
	}
	mileage := "?"
	if l.Mileage != nil {
		mileage = fmt.Sprintf("%d", *l.Mileage/cfg.MileageBucket)
	}

	payload := strings.Join([]string{
		normalizeKeyPart(l.Make),
		normalizeKeyPart(l.Model),
		year,
		price,
		mileage,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// CompletenessScore counts the listing's populated fields. Used as the merge
// tiebreak: the more complete listing survives as canonical. A listing whose
// non-null fields are a strict superset of another's always scores higher.
func CompletenessScore(l RawListing) int {
	score := 0
	for _, s := range []string{
		l.Title, l.Make, l.Model, l.Trim,
		l.BodyStyle, l.FuelType, l.Transmission, l.Drivetrain,
		l.ExteriorColor, l.InteriorColor, l.Location, l.ViewItemURL,
	} {
		if strings.TrimSpace(s) != "" {
			score++
		}
	}
	if l.Year != nil {
		score++
	}
	if l.Price != nil {
		score++
	}
	if l.Mileage != nil {
		score++
	}
	if len(l.ImageURLs) > 0 {
		score++
	}
	if len(l.Features) > 0 {
		score++
	}
	if len(l.History) > 0 {
		score++
	}
	score += len(l.Attributes)
	return score
}
