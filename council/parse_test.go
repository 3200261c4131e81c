package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRankingNumberedList(t *testing.T) {
	t.Parallel()
	text := `Response A is detailed but verbose.
Response B misses the point.
Response C is the strongest.

FINAL RANKING:
1. Response C
2. Response A
3. Response B`

	assert.Equal(t, []string{"Response C", "Response A", "Response B"}, ParseRanking(text))
}

func TestParseRankingNumberedWithoutSpace(t *testing.T) {
	t.Parallel()
	text := "FINAL RANKING:\n1.Response B\n2.Response A"
	assert.Equal(t, []string{"Response B", "Response A"}, ParseRanking(text))
}

func TestParseRankingBareLabelsAfterMarker(t *testing.T) {
	t.Parallel()
	text := "Some analysis here.\n\nFINAL RANKING: Response B, Response A, Response C"
	assert.Equal(t, []string{"Response B", "Response A", "Response C"}, ParseRanking(text))
}

func TestParseRankingNumberedTakesPrecedenceOverBare(t *testing.T) {
	t.Parallel()
	// The bare "Response D" after the numbered entries must not leak in.
	text := "FINAL RANKING:\n1. Response A\n2. Response B\nAlso worth noting Response D was interesting."
	assert.Equal(t, []string{"Response A", "Response B"}, ParseRanking(text))
}

func TestParseRankingWholeTextFallback(t *testing.T) {
	t.Parallel()
	text := "I prefer Response B overall, though Response A has merit."
	assert.Equal(t, []string{"Response B", "Response A"}, ParseRanking(text))
}

func TestParseRankingNoLabels(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ParseRanking("I cannot rank these."))
	assert.Empty(t, ParseRanking(""))
	assert.NotNil(t, ParseRanking(""))
}

func TestParseRankingCaseSensitive(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ParseRanking("final ranking: response a, response b"))
	assert.Empty(t, ParseRanking("FINAL RANKING:\nresponse a"))
}

func TestParseRankingDuplicatesPreserved(t *testing.T) {
	t.Parallel()
	text := "FINAL RANKING:\n1. Response A\n2. Response A\n3. Response B"
	assert.Equal(t, []string{"Response A", "Response A", "Response B"}, ParseRanking(text))
}

func TestParseRankingOnlyFirstSectionConsidered(t *testing.T) {
	t.Parallel()
	text := "FINAL RANKING:\n1. Response B\nFINAL RANKING:\n1. Response A"
	assert.Equal(t, []string{"Response B"}, ParseRanking(text))
}

func TestParseRankingEmptySection(t *testing.T) {
	t.Parallel()
	// A marker with nothing usable after it yields nothing, even though
	// labels appear earlier in the text.
	text := "Response A was fine.\nFINAL RANKING:\nnone of them"
	assert.Empty(t, ParseRanking(text))
}
