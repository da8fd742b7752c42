package standardize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFeatures(t *testing.T) {
	text := `One owner! Leather seats, heated seats, and a panoramic roof.
Back-up camera and rearview camera included. Apple CarPlay & Android Auto.`

	tags := ExtractFeatures(text)

	assert.Equal(t, []string{
		"android_auto",
		"apple_carplay",
		"backup_camera",
		"heated_seats",
		"leather_seats",
		"sunroof",
	}, tags)
}

// A tag appears once no matter how many synonyms match.
func TestExtractFeaturesDeduplicates(t *testing.T) {
	tags := ExtractFeatures("sunroof moonroof panoramic roof moon roof")
	assert.Equal(t, []string{"sunroof"}, tags)
}

func TestExtractFeaturesEmpty(t *testing.T) {
	assert.Nil(t, ExtractFeatures(""))
	assert.Nil(t, ExtractFeatures("a plain car with nothing special"))
}

func TestMergeFeatureTags(t *testing.T) {
	merged := MergeFeatureTags(
		[]string{"bluetooth", "sunroof"},
		[]string{"Sunroof", " navigation "},
		nil,
	)
	assert.Equal(t, []string{"bluetooth", "navigation", "sunroof"}, merged)
	assert.Nil(t, MergeFeatureTags(nil, []string{"  "}))
}
