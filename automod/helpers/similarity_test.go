package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1.0, Similarity("join my server", "join my server"))
	assert.Equal(1.0, Similarity("JOIN MY SERVER", "join my server"))
	assert.Equal(1.0, Similarity("&cjoin my server", "join my server"))
	assert.Equal(1.0, Similarity("", ""))
	assert.Equal(0.0, Similarity("abc", ""))
	assert.InDelta(0.75, Similarity("abcd", "abce"), 0.0001)
	assert.Less(Similarity("hello there", "completely different"), 0.5)

	// symmetric
	assert.Equal(Similarity("kitten", "sitting"), Similarity("sitting", "kitten"))
}
