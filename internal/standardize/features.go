package standardize

import (
	"sort"
	"strings"
)

// featureTable maps canonical feature tags to the keyword patterns that imply
// them in free text (descriptions, option lists). Order matters only for
// readability; every bucket is evaluated and a tag appears at most once.
var featureTable = []bucket{
	{"backup_camera", []string{"backup camera", "back-up camera", "rear camera", "rearview camera", "rear view camera", "reversing camera"}},
	{"leather_seats", []string{"leather seat", "leather interior", "leather upholstery", "leather-trimmed"}},
	{"heated_seats", []string{"heated seat", "heated front seat", "seat heater"}},
	{"ventilated_seats", []string{"ventilated seat", "cooled seat"}},
	{"sunroof", []string{"sunroof", "moonroof", "moon roof", "panoramic roof"}},
	{"navigation", []string{"navigation", "nav system", "built-in nav", "gps"}},
	{"bluetooth", []string{"bluetooth", "hands-free calling"}},
	{"apple_carplay", []string{"carplay", "apple car play"}},
	{"android_auto", []string{"android auto"}},
	{"remote_start", []string{"remote start", "remote engine start"}},
	{"keyless_entry", []string{"keyless entry", "keyless access", "smart key", "proximity key", "push button start", "push-button start"}},
	{"third_row", []string{"third row", "3rd row", "7 passenger", "7-passenger", "8 passenger", "8-passenger"}},
	{"blind_spot_monitor", []string{"blind spot", "blind-spot", "bsm"}},
	{"adaptive_cruise", []string{"adaptive cruise", "radar cruise", "dynamic cruise"}},
	{"lane_keep_assist", []string{"lane keep", "lane-keep", "lane departure", "lane assist"}},
	{"parking_sensors", []string{"parking sensor", "park assist", "parking aid", "front and rear sensors"}},
	{"tow_package", []string{"tow package", "towing package", "tow hitch", "trailer hitch"}},
	{"alloy_wheels", []string{"alloy wheel", "aluminum wheel", "premium wheel"}},
	{"premium_audio", []string{"premium audio", "premium sound", "bose", "harman kardon", "harman/kardon", "bang & olufsen", "jbl", "mark levinson"}},
	{"heated_steering_wheel", []string{"heated steering"}},
	{"power_liftgate", []string{"power liftgate", "power tailgate", "hands-free liftgate"}},
}

// ExtractFeatures scans free text for known feature keywords and returns the
// set of canonical feature tags found, sorted, each at most once regardless of
// how many synonym occurrences matched.
func ExtractFeatures(text string) []string {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	found := make(map[string]struct{})
	for _, b := range featureTable {
		for _, kw := range b.synonyms {
			if strings.Contains(lowered, kw) {
				found[b.canonical] = struct{}{}
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	tags := make([]string, 0, len(found))
	for tag := range found {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MergeFeatureTags combines feature tag slices into one sorted, deduplicated
// set. Used when a source supplies both a structured option list and free text.
func MergeFeatureTags(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, tag := range list {
			trimmed := strings.TrimSpace(strings.ToLower(tag))
			if trimmed == "" {
				continue
			}
			set[trimmed] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
