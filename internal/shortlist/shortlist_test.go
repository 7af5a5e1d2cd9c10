package shortlist

import (
	"fmt"
	"testing"

	"recruitflow/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(scores ...float64) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, len(scores))
	for i, s := range scores {
		id := fmt.Sprintf("c%d", i)
		out[i] = types.ScoredCandidate{
			Candidate: types.CandidateRecord{ID: id, Name: "Candidate " + id},
			Score:     types.ScoreResult{CandidateID: id, OverallScore: s},
		}
	}
	return out
}

func scoresOf(list types.Shortlist) []float64 {
	out := make([]float64, len(list.Entries))
	for i, e := range list.Entries {
		out[i] = e.Score.OverallScore
	}
	return out
}

func TestRankThresholdAndCap(t *testing.T) {
	list := Rank(batch(95, 80, 72, 65, 60, 59, 40, 30, 20, 10), 60, 5)

	assert.Equal(t, []float64{95, 80, 72, 65, 60}, scoresOf(list))
	for i, e := range list.Entries {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.Equal(t, types.ShortlistSummary{
		CountConsidered: 10,
		CountPassing:    5,
		CountSelected:   5,
		MinThreshold:    60,
		MaxCount:        5,
		MinScore:        60,
		MaxScore:        95,
		MeanScore:       74.4,
	}, list.Summary)
}

func TestRankSortsAndTruncatesAfterFiltering(t *testing.T) {
	list := Rank(batch(61, 99, 10, 75, 88), 50, 3)
	assert.Equal(t, []float64{99, 88, 75}, scoresOf(list))
	assert.Equal(t, 4, list.Summary.CountPassing)
	assert.Equal(t, 3, list.Summary.CountSelected)
}

func TestRankIsStable(t *testing.T) {
	input := batch(70, 90, 70, 90, 70)
	list := Rank(input, 0, 10)

	ids := make([]string, len(list.Entries))
	for i, e := range list.Entries {
		ids[i] = e.Candidate.ID
	}
	assert.Equal(t, []string{"c1", "c3", "c0", "c2", "c4"}, ids)

	again := Rank(input, 0, 10)
	assert.Equal(t, list, again)
	assert.Equal(t, "c0", input[0].Candidate.ID, "input must not be reordered")
}

func TestRankEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		input     []types.ScoredCandidate
		threshold float64
		maxCount  int
	}{
		{name: "zero max count", input: batch(90, 80), threshold: 0, maxCount: 0},
		{name: "negative max count", input: batch(90, 80), threshold: 0, maxCount: -3},
		{name: "threshold above all scores", input: batch(90, 80), threshold: 95, maxCount: 5},
		{name: "empty input", input: nil, threshold: 60, maxCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := Rank(tt.input, tt.threshold, tt.maxCount)
			require.NotNil(t, list.Entries)
			assert.Empty(t, list.Entries)
			assert.Equal(t, 0, list.Summary.CountSelected)
			assert.Zero(t, list.Summary.MeanScore)
			assert.Equal(t, len(tt.input), list.Summary.CountConsidered)
		})
	}
}

func TestRankProperties(t *testing.T) {
	input := batch(12.5, 99, 45, 45, 70.25, 88, 60, 60, 3, 100)
	for _, maxCount := range []int{1, 3, 7, 20} {
		for _, threshold := range []float64{0, 45, 60.5, 100} {
			list := NewRanker(threshold, maxCount).Rank(input)
			assert.LessOrEqual(t, len(list.Entries), maxCount)
			for i, e := range list.Entries {
				assert.GreaterOrEqual(t, e.Score.OverallScore, threshold)
				if i > 0 {
					assert.GreaterOrEqual(t, list.Entries[i-1].Score.OverallScore, e.Score.OverallScore)
				}
			}
		}
	}
}

func TestPartition(t *testing.T) {
	input := batch(95, 40, 80, 20)
	list := Rank(input, 60, 5)

	selected, rejected := Partition(input, list)
	require.Len(t, selected, 2)
	require.Len(t, rejected, 2)
	assert.Equal(t, "c0", selected[0].Candidate.ID)
	assert.Equal(t, "c2", selected[1].Candidate.ID)
	assert.Equal(t, "c1", rejected[0].Candidate.ID)
	assert.Equal(t, "c3", rejected[1].Candidate.ID)
}
