// Package ranker implements deterministic candidate scoring and selection
// for daily briefs. No model calls; same inputs always rank the same way.
package ranker

import (
	"fmt"
	"sort"
	"time"

	"dailybrief/internal/core"
)

// RankedItem is a scored candidate with its best topic assignment.
type RankedItem struct {
	Score     float64
	Candidate core.BriefCandidate
	Best      core.AssignmentWithTopic
}

// Rank scores candidates and orders them by score descending. The sort is
// stable, so equally-scored items keep the candidate order (published
// descending, then id ascending). Candidates without assignments are skipped.
func Rank(candidates []core.BriefCandidate, now time.Time) []RankedItem {
	ranked := make([]RankedItem, 0, len(candidates))
	for _, c := range candidates {
		best, ok := c.BestAssignment()
		if !ok {
			continue
		}
		ranked = append(ranked, RankedItem{
			Score:     Score(c, best, now),
			Candidate: c,
			Best:      best,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Score computes the additive ranking score: topic priority dominates, then
// novelty, recency within the lookback window, source weight, extraction
// confidence, and the classifier's own score.
func Score(c core.BriefCandidate, best core.AssignmentWithTopic, now time.Time) float64 {
	score := float64(best.Topic.Priority) * 10

	switch c.Extraction.Payload.Novelty {
	case core.NoveltyNew:
		score += 10
	case core.NoveltyUpdate:
		score += 5
	case core.NoveltyRecurring:
		score += 2
	}

	if c.Item.PublishedAt != nil {
		hoursOld := now.Sub(*c.Item.PublishedAt).Hours()
		if recency := (48 - hoursOld) / 4.8; recency > 0 {
			score += recency
		}
	}

	score += float64(c.SourceWeight)

	switch c.Extraction.Payload.ConfidenceOverall {
	case core.ConfidenceHigh:
		score += 5
	case core.ConfidenceMed:
		score += 2
	}

	score += best.Assignment.Score * 10
	return score
}

// ApplyCaps walks the ranked list greedily, keeping at most maxItems overall
// and maxPerTopic per best topic. A topic at its cap is skipped, not
// substituted.
func ApplyCaps(ranked []RankedItem, maxItems, maxPerTopic int) []RankedItem {
	selected := make([]RankedItem, 0, maxItems)
	topicCounts := make(map[int64]int)

	for _, r := range ranked {
		if len(selected) >= maxItems {
			break
		}
		topicID := r.Best.Assignment.TopicID
		if topicCounts[topicID] >= maxPerTopic {
			continue
		}
		selected = append(selected, r)
		topicCounts[topicID]++
	}
	return selected
}

// InclusionReason renders the human-readable explanation stored on a brief
// item.
func InclusionReason(r RankedItem) string {
	return fmt.Sprintf("High-priority '%s' topic, %s content with %s confidence (score: %.1f)",
		r.Best.Topic.Name, r.Candidate.Extraction.Payload.Novelty,
		r.Candidate.Extraction.Payload.ConfidenceOverall, r.Score)
}
