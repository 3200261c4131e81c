package council

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLabels() map[string]LabelInfo {
	return map[string]LabelInfo{
		"Response A": {AgentTitle: "Ethicist", Model: "model-a"},
		"Response B": {AgentTitle: "Technologist", Model: "model-b"},
		"Response C": {AgentTitle: "Strategist", Model: "model-c"},
	}
}

func ranking(parsed ...string) Stage2Result {
	return Stage2Result{ParsedRanking: parsed}
}

func TestAggregateAveragesAndSorts(t *testing.T) {
	t.Parallel()
	stage2 := []Stage2Result{
		ranking("Response A", "Response B", "Response C"),
		ranking("Response C", "Response A", "Response B"),
	}

	standings := Aggregate(stage2, testLabels())
	require.Len(t, standings, 3)

	assert.Equal(t, "Ethicist", standings[0].AgentTitle)
	assert.Equal(t, "model-a", standings[0].Model)
	assert.Equal(t, 1.5, standings[0].AverageRank)
	assert.Equal(t, 2, standings[0].RankingsCount)

	assert.Equal(t, "Strategist", standings[1].AgentTitle)
	assert.Equal(t, 2.0, standings[1].AverageRank)

	assert.Equal(t, "Technologist", standings[2].AgentTitle)
	assert.Equal(t, 2.5, standings[2].AverageRank)
}

func TestAggregateRoundsToTwoDecimals(t *testing.T) {
	t.Parallel()
	stage2 := []Stage2Result{
		ranking("Response A"),
		ranking("Response B", "Response A"),
		ranking("Response B", "Response B", "Response A"),
	}

	standings := Aggregate(stage2, testLabels())
	require.Len(t, standings, 2)
	// A placed 1st, 2nd, 3rd: mean 2.0. B placed 1st, then 1st and 2nd.
	byTitle := map[string]Standing{}
	for _, s := range standings {
		byTitle[s.AgentTitle] = s
	}
	assert.Equal(t, 2.0, byTitle["Ethicist"].AverageRank)
	assert.Equal(t, 3, byTitle["Ethicist"].RankingsCount)
	assert.Equal(t, 1.33, byTitle["Technologist"].AverageRank)
	assert.Equal(t, 3, byTitle["Technologist"].RankingsCount)
}

func TestAggregateIgnoresUnknownLabels(t *testing.T) {
	t.Parallel()
	stage2 := []Stage2Result{
		ranking("Response Z", "Response A", "Response Q"),
	}

	standings := Aggregate(stage2, testLabels())
	require.Len(t, standings, 1)
	assert.Equal(t, "Ethicist", standings[0].AgentTitle)
	// Positions come from the ranker's full list, unknown labels included.
	assert.Equal(t, 2.0, standings[0].AverageRank)
	assert.Equal(t, 1, standings[0].RankingsCount)
}

func TestAggregateOmitsUnmentionedAgents(t *testing.T) {
	t.Parallel()
	stage2 := []Stage2Result{
		ranking("Response B"),
	}

	standings := Aggregate(stage2, testLabels())
	require.Len(t, standings, 1)
	assert.Equal(t, "Technologist", standings[0].AgentTitle)
}

func TestAggregateEmptyInputs(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Aggregate(nil, testLabels()))
	assert.Empty(t, Aggregate([]Stage2Result{ranking()}, map[string]LabelInfo{}))
}
