package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityIdenticalAndEmpty(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Ahmed", "ahmed"))
	assert.Equal(t, 0.0, Similarity("", "ahmed"))
	assert.Equal(t, 0.0, Similarity("ahmed", ""))
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestSimilarityProportionalToDistance(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, Similarity("abc", "abd"), 1e-9)
	assert.InDelta(t, 0.8, Similarity("ahmed", "ahmad"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestSimilarityOfDigitStrippedLocals(t *testing.T) {
	// ahmed123 vs ahmed124: the digits are noise, the base is identical
	a := EmailLocalBase("ahmed123")
	b := EmailLocalBase("ahmed124")
	assert.Equal(t, 1.0, Similarity(a, b))
}

func TestDigitDistanceEqualLength(t *testing.T) {
	dist, ok := DigitDistance("512345678", "512345679")
	assert.True(t, ok)
	assert.Equal(t, 1, dist)

	dist, ok = DigitDistance("554871239", "554871239")
	assert.True(t, ok)
	assert.Equal(t, 0, dist)
}

func TestDigitDistanceOffByOneSlides(t *testing.T) {
	// The shorter string aligns perfectly at offset zero; the missing digit
	// costs the gap baseline of one.
	dist, ok := DigitDistance("51234567", "512345678")
	assert.True(t, ok)
	assert.Equal(t, 1, dist)

	// Best alignment is at offset one
	dist, ok = DigitDistance("12345678", "512345678")
	assert.True(t, ok)
	assert.Equal(t, 1, dist)
}

func TestDigitDistanceIncomparableLengths(t *testing.T) {
	_, ok := DigitDistance("1234567", "123456789")
	assert.False(t, ok)
}

func TestEditDistanceCaseInsensitive(t *testing.T) {
	assert.Equal(t, 0, EditDistance("Mohammed", "mohammed"))
	assert.Equal(t, 1, EditDistance("Mohammed", "Mohamed"))
}
