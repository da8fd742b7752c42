// Package standardize maps raw marketplace field values onto the canonical
// vocabulary shared by all source adapters. Matching is case-insensitive
// substring matching against fixed, ordered synonym tables; the first bucket
// whose synonym list matches wins, and table order is part of the contract:
// reordering buckets changes categorization of ambiguous inputs.
package standardize

import "strings"

// bucket pairs one canonical value with the synonym patterns that map to it.
type bucket struct {
	canonical string
	synonyms  []string
}

// Transmission canonical values: automatic, manual, cvt, dual_clutch.
var transmissionTable = []bucket{
	{"cvt", []string{"cvt", "continuously variable"}},
	{"dual_clutch", []string{"dual clutch", "dual-clutch", "dct", "dsg", "pdk"}},
	{"manual", []string{"manual", "stick", "standard transmission", "5-speed m", "6-speed m", "5 speed m", "6 speed m"}},
	{"automatic", []string{"automatic", "auto", "tiptronic", "steptronic", "shiftable"}},
}

// Fuel type canonical values. plug_in_hybrid precedes hybrid so that
// "Plug-In Hybrid" does not fall into the plain hybrid bucket.
var fuelTypeTable = []bucket{
	{"plug_in_hybrid", []string{"plug-in hybrid", "plug in hybrid", "phev"}},
	{"hybrid", []string{"hybrid", "hev"}},
	{"electric", []string{"electric", "ev", "battery"}},
	{"diesel", []string{"diesel", "tdi", "duramax", "cummins", "powerstroke"}},
	{"flex_fuel", []string{"flex fuel", "flex-fuel", "flexible fuel", "e85"}},
	{"gasoline", []string{"gasoline", "gas", "petrol", "unleaded"}},
}

var bodyStyleTable = []bucket{
	{"pickup", []string{"pickup", "pick-up", "truck", "crew cab", "extended cab", "regular cab", "quad cab", "supercrew", "supercab"}},
	{"suv", []string{"suv", "sport utility", "crossover", "cuv"}},
	{"minivan", []string{"minivan", "mini-van", "mini van"}},
	{"van", []string{"van", "cargo"}},
	{"convertible", []string{"convertible", "cabriolet", "roadster", "spyder", "spider", "drop top"}},
	{"coupe", []string{"coupe", "coupé", "2 door", "2-door", "two door"}},
	{"wagon", []string{"wagon", "estate", "touring", "avant", "sportwagen"}},
	{"hatchback", []string{"hatchback", "hatch", "liftback", "5-door", "5 door"}},
	{"sedan", []string{"sedan", "saloon", "4 door", "4-door", "four door"}},
}

var drivetrainTable = []bucket{
	{"awd", []string{"awd", "all wheel drive", "all-wheel drive", "all wheel", "4matic", "xdrive", "quattro", "sh-awd", "symmetrical"}},
	{"4wd", []string{"4wd", "4x4", "four wheel drive", "four-wheel drive", "4 wheel drive"}},
	{"fwd", []string{"fwd", "front wheel drive", "front-wheel drive", "front wheel"}},
	{"rwd", []string{"rwd", "rear wheel drive", "rear-wheel drive", "rear wheel", "2wd"}},
}

// Color table shared by exterior and interior color fields. Multi-word
// marketing names ("Pearl White", "Midnight Black Metallic") resolve via
// substring matching to the base color.
var colorTable = []bucket{
	{"black", []string{"black", "ebony", "onyx", "obsidian", "midnight"}},
	{"white", []string{"white", "pearl", "ivory", "snow", "frost"}},
	{"silver", []string{"silver", "ingot", "billet"}},
	{"gray", []string{"gray", "grey", "graphite", "charcoal", "gunmetal", "slate", "granite"}},
	{"red", []string{"red", "crimson", "burgundy", "maroon", "ruby", "scarlet"}},
	{"blue", []string{"blue", "navy", "azure", "cobalt", "sapphire"}},
	{"green", []string{"green", "emerald", "forest", "olive"}},
	{"brown", []string{"brown", "mocha", "chocolate", "espresso", "bronze"}},
	{"beige", []string{"beige", "tan", "cream", "sand", "parchment", "champagne"}},
	{"gold", []string{"gold"}},
	{"orange", []string{"orange", "copper", "sunset"}},
	{"yellow", []string{"yellow"}},
	{"purple", []string{"purple", "violet", "plum"}},
}

// fieldTables maps the normalized field name to its vocabulary table.
// Both snake_case field names and bare names are accepted.
var fieldTables = map[string][]bucket{
	"transmission":   transmissionTable,
	"fuel_type":      fuelTypeTable,
	"body_style":     bodyStyleTable,
	"drivetrain":     drivetrainTable,
	"exterior_color": colorTable,
	"interior_color": colorTable,
	"color":          colorTable,
}

// Field maps a raw source value for the named field onto the canonical
// vocabulary. Unmappable input is returned unchanged (trimmed) rather than
// discarded; callers decide whether to keep the passthrough value.
// Canonical values are fixed points: Field(f, Field(f, v)) == Field(f, v).
func Field(name, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	table, ok := fieldTables[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return trimmed
	}
	return matchTable(table, trimmed)
}

// Transmission, FuelType, BodyStyle, Drivetrain, and Color are typed
// shorthands for Field on their respective tables.

func Transmission(raw string) string { return matchTrimmed(transmissionTable, raw) }
func FuelType(raw string) string     { return matchTrimmed(fuelTypeTable, raw) }
func BodyStyle(raw string) string    { return matchTrimmed(bodyStyleTable, raw) }
func Drivetrain(raw string) string   { return matchTrimmed(drivetrainTable, raw) }
func Color(raw string) string        { return matchTrimmed(colorTable, raw) }

// IsCanonical reports whether value is a canonical member of the named
// field's vocabulary.
func IsCanonical(name, value string) bool {
	table, ok := fieldTables[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return false
	}
	for _, b := range table {
		if b.canonical == value {
			return true
		}
	}
	return false
}

func matchTrimmed(table []bucket, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return matchTable(table, trimmed)
}

// matchTable returns the canonical value of the first bucket with a matching
// synonym, or the input unchanged when nothing matches. A raw value that
// already equals a canonical value short-circuits so canonical values are
// always fixed points even when an earlier bucket's synonyms would also match.
func matchTable(table []bucket, trimmed string) string {
	lowered := strings.ToLower(trimmed)
	for _, b := range table {
		if lowered == b.canonical {
			return b.canonical
		}
	}
	for _, b := range table {
		for _, syn := range b.synonyms {
			if strings.Contains(lowered, syn) {
				return b.canonical
			}
		}
	}
	return trimmed
}
