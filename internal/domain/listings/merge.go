package listings

import (
	"sort"
	"strings"
)

// Confidence levels assigned by Merge. VIN identity is authoritative; the
// bucketed key is a deliberately loose heuristic.
const (
	confidenceExact    = 1.0
	confidenceBucketed = 0.8
)

// Merge combines per-source listings into one deduplicated set. Listings
// sharing a VIN, or failing that a bucketed DedupKey, are folded into one
// MergedVehicle whose canonical listing is the most complete of the group
// (ties broken by source priority, then listing id). Folded listings survive
// as duplicate references, and the winner's empty fields are gap-filled from
// losers so the merged record is at least as complete as any member.
//
// Complexity is near-linear: one hash map keyed by dedup key plus a secondary
// map keyed by VIN.
func Merge(perSource map[string][]RawListing, cfg MergeConfig) []MergedVehicle {
	cfg = cfg.withDefaults()

	// Iterate sources in a fixed order so group formation is reproducible;
	// the winner-selection rule below makes the surviving canonical record
	// independent of input order regardless.
	sourceIDs := make([]string, 0, len(perSource))
	for sourceID := range perSource {
		sourceIDs = append(sourceIDs, sourceID)
	}
	sort.Strings(sourceIDs)

	type group struct {
		vehicle MergedVehicle
		key     string
	}

	byKey := make(map[string]*group)
	byVIN := make(map[string]*group)
	var groups []*group

	for _, sourceID := range sourceIDs {
		for _, listing := range perSource[sourceID] {
			if !listing.Valid() {
				// Malformed records are the adapter's problem; skip defensively.
				continue
			}

			key := DedupKey(listing, cfg)
			vin := listing.VIN()

			var g *group
			if vin != "" {
				g = byVIN[vin]
			}
			if g == nil {
				g = byKey[key]
			}

			if g == nil {
				g = &group{
					vehicle: MergedVehicle{Listing: listing, Confidence: confidenceExact},
					key:     key,
				}
				byKey[key] = g
				if vin != "" {
					byVIN[vin] = g
				}
				groups = append(groups, g)
				continue
			}

			// Collision: same physical vehicle.
			matchedByVIN := vin != "" && byVIN[vin] == g
			if matchedByVIN {
				g.vehicle.Confidence = confidenceExact
			} else if g.vehicle.Confidence > confidenceBucketed {
				g.vehicle.Confidence = confidenceBucketed
			}

			winner, loser := pickCanonical(g.vehicle.Listing, listing, cfg)
			g.vehicle.Duplicates = append(g.vehicle.Duplicates, loser.Ref())
			g.vehicle.Listing = fillGaps(winner, loser)

			// Index the group under the newcomer's key/VIN too, so later
			// listings matching either representation fold into the same group.
			if byKey[key] == nil {
				byKey[key] = g
			}
			if vin != "" && byVIN[vin] == nil {
				byVIN[vin] = g
			}
		}
	}

	out := make([]MergedVehicle, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g.vehicle.Duplicates, func(i, j int) bool {
			a, b := g.vehicle.Duplicates[i], g.vehicle.Duplicates[j]
			if a.SourceID != b.SourceID {
				return a.SourceID < b.SourceID
			}
			return a.ListingID < b.ListingID
		})
		out = append(out, g.vehicle)
	}
	return out
}

// pickCanonical selects the surviving listing of a colliding pair. Higher
// completeness wins; ties go to the higher-priority source, then to the
// lexicographically smaller identity so the choice is total and symmetric.
func pickCanonical(a, b RawListing, cfg MergeConfig) (winner, loser RawListing) {
	scoreA, scoreB := CompletenessScore(a), CompletenessScore(b)
	if scoreA != scoreB {
		if scoreA > scoreB {
			return a, b
		}
		return b, a
	}

	prioA, prioB := cfg.priorityIndex(a.SourceID), cfg.priorityIndex(b.SourceID)
	if prioA != prioB {
		if prioA < prioB {
			return a, b
		}
		return b, a
	}

	if refLess(a.Ref(), b.Ref()) {
		return a, b
	}
	return b, a
}

func refLess(a, b SourceRef) bool {
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	return a.ListingID < b.ListingID
}

// fillGaps copies the loser's populated fields into the winner's empty ones.
// Identity fields are never touched. Mirrors the gap-fill half of the
// trust-based field merge strategy: existing data is kept, absent data is
// filled from the folded listing.
func fillGaps(winner, loser RawListing) RawListing {
	if winner.Title == "" {
		winner.Title = loser.Title
	}
	if winner.Make == "" {
		winner.Make = loser.Make
	}
	if winner.Model == "" {
		winner.Model = loser.Model
	}
	if winner.Trim == "" {
		winner.Trim = loser.Trim
	}
	if winner.Year == nil {
		winner.Year = loser.Year
	}
	if winner.Price == nil {
		winner.Price = loser.Price
	}
	if winner.Mileage == nil {
		winner.Mileage = loser.Mileage
	}
	if winner.BodyStyle == "" {
		winner.BodyStyle = loser.BodyStyle
	}
	if winner.FuelType == "" {
		winner.FuelType = loser.FuelType
	}
	if winner.Transmission == "" {
		winner.Transmission = loser.Transmission
	}
	if winner.Drivetrain == "" {
		winner.Drivetrain = loser.Drivetrain
	}
	if winner.ExteriorColor == "" {
		winner.ExteriorColor = loser.ExteriorColor
	}
	if winner.InteriorColor == "" {
		winner.InteriorColor = loser.InteriorColor
	}
	if winner.Location == "" {
		winner.Location = loser.Location
	}
	if winner.ViewItemURL == "" {
		winner.ViewItemURL = loser.ViewItemURL
	}
	if len(winner.ImageURLs) == 0 {
		winner.ImageURLs = loser.ImageURLs
	}
	winner.Features = mergeSortedSets(winner.Features, loser.Features)
	winner.Attributes = mergeMaps(winner.Attributes, loser.Attributes)
	winner.History = mergeMaps(winner.History, loser.History)
	return winner
}

func mergeSortedSets(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range b {
		set[strings.ToLower(v)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// mergeMaps combines two attribute maps with a's entries winning. Always
// returns a fresh map when b contributes anything; the inputs belong to
// RawListings that may be shared with the result cache and must stay
// immutable.
func mergeMaps(a, b map[string]string) map[string]string {
	if len(b) == 0 {
		return a
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}
