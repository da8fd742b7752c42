package standardize

import (
	"strconv"
	"strings"
	"time"
)

// Numeric parsers are lenient by contract: malformed input yields nil rather
// than an error, since marketplace pages routinely embed numbers in marketing
// text ("only 42,311 miles!", "$18,995 OBO").

// Year extracts a model year. Accepts bare years and years embedded in text;
// rejects values outside 1900..(current year + 2).
func Year(raw string) *int {
	digits := extractDigits(raw)
	if len(digits) < 4 {
		return nil
	}
	value, err := strconv.Atoi(digits[:4])
	if err != nil {
		return nil
	}
	maxYear := time.Now().Year() + 2
	if value < 1900 || value > maxYear {
		return nil
	}
	return &value
}

// Mileage extracts an odometer reading in miles. "42k" style shorthand is
// expanded; commas and unit suffixes are stripped.
func Mileage(raw string) *int {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil
	}

	multiplier := 1
	if idx := firstDigitRun(trimmed); idx >= 0 {
		rest := trimmed[idx:]
		for i, r := range rest {
			if r >= '0' && r <= '9' || r == ',' || r == '.' {
				continue
			}
			if r == 'k' {
				// "42k miles": only when k directly follows the digits
				if i > 0 {
					multiplier = 1000
				}
			}
			break
		}
	}

	digits := extractDigits(trimmed)
	if digits == "" {
		return nil
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	value *= multiplier
	if value < 0 || value > 2_000_000 {
		return nil
	}
	return &value
}

// Price extracts a USD amount. Currency symbols, commas, and trailing text
// are stripped; the first decimal amount found wins.
func Price(raw string) *float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var sb strings.Builder
	seenDigit := false
	seenDot := false
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
			seenDigit = true
		case r == '.' && seenDigit && !seenDot:
			sb.WriteRune(r)
			seenDot = true
		case r == ',' && seenDigit:
			// thousands separator
		case seenDigit:
			// first non-numeric after the amount ends it
			goto done
		}
	}
done:
	if !seenDigit {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(sb.String(), "."), 64)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}

// Doors extracts a door count (2..6).
func Doors(raw string) *int {
	return boundedInt(raw, 2, 6)
}

// Cylinders extracts an engine cylinder count (2..16).
func Cylinders(raw string) *int {
	return boundedInt(raw, 2, 16)
}

// MPG extracts a fuel-economy figure (1..150).
func MPG(raw string) *int {
	return boundedInt(raw, 1, 150)
}

func boundedInt(raw string, min, max int) *int {
	digits := extractDigits(raw)
	if digits == "" {
		return nil
	}
	value, err := strconv.Atoi(digits)
	if err != nil || value < min || value > max {
		return nil
	}
	return &value
}

// extractDigits returns the first contiguous run of digits in raw, with
// embedded commas removed ("42,311" → "42311").
func extractDigits(raw string) string {
	var sb strings.Builder
	started := false
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			started = true
			continue
		}
		if started && r == ',' {
			continue
		}
		if started {
			break
		}
	}
	return sb.String()
}

func firstDigitRun(s string) int {
	for i, r := range s {
		if r >= '0' && r <= '9' {
			return i
		}
	}
	return -1
}
