package standardize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYear(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		ok       bool
	}{
		{"2020", 2020, true},
		{"2019 Honda Civic", 2019, true},
		{"  1998  ", 1998, true},
		{"1899", 0, false},
		{"3020", 0, false},
		{"two thousand", 0, false},
		{"", 0, false},
		{"20", 0, false},
	}
	for _, tt := range tests {
		got := Year(tt.raw)
		if !tt.ok {
			assert.Nil(t, got, "Year(%q)", tt.raw)
			continue
		}
		require.NotNil(t, got, "Year(%q)", tt.raw)
		assert.Equal(t, tt.expected, *got)
	}
}

func TestMileage(t *testing.T) {
	tests := []struct {
		raw      string
		expected int
		ok       bool
	}{
		{"30400", 30400, true},
		{"42,311 miles", 42311, true},
		{"only 12,000 mi!", 12000, true},
		{"88k", 88000, true},
		{"88k miles", 88000, true},
		{"low miles", 0, false},
		{"", 0, false},
		{"9999999", 0, false},
	}
	for _, tt := range tests {
		got := Mileage(tt.raw)
		if !tt.ok {
			assert.Nil(t, got, "Mileage(%q)", tt.raw)
			continue
		}
		require.NotNil(t, got, "Mileage(%q)", tt.raw)
		assert.Equal(t, tt.expected, *got)
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
		ok       bool
	}{
		{"20000", 20000, true},
		{"$18,995", 18995, true},
		{"$18,995.50", 18995.50, true},
		{"$19,499 OBO", 19499, true},
		{"Price: $7,250", 7250, true},
		{"call for price", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := Price(tt.raw)
		if !tt.ok {
			assert.Nil(t, got, "Price(%q)", tt.raw)
			continue
		}
		require.NotNil(t, got, "Price(%q)", tt.raw)
		assert.InDelta(t, tt.expected, *got, 0.001)
	}
}

func TestBoundedParsers(t *testing.T) {
	require.NotNil(t, Doors("4-door"))
	assert.Equal(t, 4, *Doors("4 doors"))
	assert.Nil(t, Doors("9 doors"))

	require.NotNil(t, Cylinders("V6"))
	assert.Equal(t, 6, *Cylinders("V6"))
	assert.Nil(t, Cylinders("zero"))

	require.NotNil(t, MPG("32 city"))
	assert.Equal(t, 32, *MPG("32 city"))
	assert.Nil(t, MPG("999"))
}
