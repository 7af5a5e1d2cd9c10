package shortlist

import (
	"slices"

	"recruitflow/internal/types"
)

// Ranker selects the top candidates of a scored batch.
type Ranker struct {
	MinThreshold float64
	MaxCount     int
}

// NewRanker creates a ranker with the given threshold and size cap.
func NewRanker(minThreshold float64, maxCount int) Ranker {
	return Ranker{MinThreshold: minThreshold, MaxCount: maxCount}
}

// Rank applies the ranker's parameters to scored.
func (r Ranker) Rank(scored []types.ScoredCandidate) types.Shortlist {
	return Rank(scored, r.MinThreshold, r.MaxCount)
}

// Rank drops candidates scoring below minThreshold, orders the rest by
// descending overall score and keeps the first maxCount. Equal scores keep
// their input order, so the result is reproducible for the same input.
// The input slice is not modified.
func Rank(scored []types.ScoredCandidate, minThreshold float64, maxCount int) types.Shortlist {
	summary := types.ShortlistSummary{
		CountConsidered: len(scored),
		MinThreshold:    minThreshold,
		MaxCount:        maxCount,
	}

	passing := make([]types.ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.Score.OverallScore >= minThreshold {
			passing = append(passing, sc)
		}
	}
	summary.CountPassing = len(passing)

	slices.SortStableFunc(passing, func(a, b types.ScoredCandidate) int {
		switch {
		case a.Score.OverallScore > b.Score.OverallScore:
			return -1
		case a.Score.OverallScore < b.Score.OverallScore:
			return 1
		default:
			return 0
		}
	})

	if maxCount < 0 {
		maxCount = 0
	}
	if len(passing) > maxCount {
		passing = passing[:maxCount]
	}

	entries := make([]types.ShortlistEntry, len(passing))
	var total float64
	for i, sc := range passing {
		entries[i] = types.ShortlistEntry{Rank: i + 1, Candidate: sc.Candidate, Score: sc.Score}

		score := sc.Score.OverallScore
		total += score
		if i == 0 || score < summary.MinScore {
			summary.MinScore = score
		}
		if i == 0 || score > summary.MaxScore {
			summary.MaxScore = score
		}
	}
	summary.CountSelected = len(entries)
	if len(entries) > 0 {
		summary.MeanScore = total / float64(len(entries))
	}

	return types.Shortlist{Entries: entries, Summary: summary}
}

// Partition splits scored candidates into those on the shortlist and the
// rest, preserving input order.
func Partition(scored []types.ScoredCandidate, list types.Shortlist) (selected, rejected []types.ScoredCandidate) {
	onList := make(map[string]struct{}, len(list.Entries))
	for _, e := range list.Entries {
		onList[e.Candidate.ID] = struct{}{}
	}
	for _, sc := range scored {
		if _, ok := onList[sc.Candidate.ID]; ok {
			selected = append(selected, sc)
		} else {
			rejected = append(rejected, sc)
		}
	}
	return selected, rejected
}
