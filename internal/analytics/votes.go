package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/model"
)

// voteOutcome reads a vote's binary outcome: value > 0 is positive.
func voteOutcome(e model.Event) (positive bool, ok bool) {
	n, ok := numericProp(correlate.Properties(e), "value")
	if !ok {
		return false, false
	}
	return n > 0, true
}

func feedbackStats(votes []model.Event, recentN int) *FeedbackStats {
	s := &FeedbackStats{RecentComments: []Comment{}}
	for _, v := range votes {
		positive, ok := voteOutcome(v)
		if !ok {
			continue
		}
		s.TotalVotes++
		if positive {
			s.PositiveVotes++
		}
	}
	if s.TotalVotes > 0 {
		rate := round3(float64(s.PositiveVotes) / float64(s.TotalVotes))
		s.PositiveRate = &rate
	}

	// Most recent non-empty comments, reverse chronological.
	sorted := sortedByTimestamp(votes)
	for i := len(sorted) - 1; i >= 0 && len(s.RecentComments) < recentN; i-- {
		v := sorted[i]
		text := stringPropTrim(correlate.Properties(v), "comment")
		if text == "" {
			continue
		}
		s.RecentComments = append(s.RecentComments, Comment{
			EventID:   v.EventID,
			UserID:    v.UserID,
			Timestamp: v.Timestamp,
			Text:      text,
		})
	}
	return s
}

// trustScore is the weight-normalized mean of vote outcomes under
// exponential recency decay: weight = 0.5^(age/halfLife), floored so very
// old votes never decay to nothing. A weighted average rather than a
// sliding window, so the score moves smoothly as votes age.
func (e *Engine) trustScore(votes []model.Event) *float64 {
	now := e.now().UnixMilli()
	var sumWeighted, sumWeights float64
	for _, v := range votes {
		positive, ok := voteOutcome(v)
		if !ok {
			continue
		}
		age := time.Duration(now-v.Timestamp) * time.Millisecond
		if age < 0 {
			age = 0
		}
		weight := math.Pow(0.5, float64(age)/float64(e.halfLife))
		if weight < e.floorWeight {
			weight = e.floorWeight
		}
		outcome := 0.0
		if positive {
			outcome = 1.0
		}
		sumWeighted += outcome * weight
		sumWeights += weight
	}
	if sumWeights == 0 {
		return nil
	}
	score := sumWeighted / sumWeights
	return &score
}

// trendDirection splits the chronologically sorted votes into two halves
// and compares their positive rates. Sets smaller than minVotes always
// read stable: a defined floor against noisy classification.
func trendDirection(votes []model.Event, threshold float64, minVotes int) string {
	scored := make([]model.Event, 0, len(votes))
	for _, v := range votes {
		if _, ok := voteOutcome(v); ok {
			scored = append(scored, v)
		}
	}
	if len(scored) < minVotes {
		return TrendStable
	}
	sorted := sortedByTimestamp(scored)
	half := len(sorted) / 2
	older := sorted[:half]
	newer := sorted[len(sorted)-half:]

	diff := positiveRate(newer) - positiveRate(older)
	switch {
	case diff > threshold:
		return TrendImproving
	case diff < -threshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func positiveRate(votes []model.Event) float64 {
	if len(votes) == 0 {
		return 0
	}
	pos := 0
	for _, v := range votes {
		if positive, ok := voteOutcome(v); ok && positive {
			pos++
		}
	}
	return float64(pos) / float64(len(votes))
}

// timeSeries buckets votes by calendar day (or ISO week, rolled to the
// Monday) on the event's own timestamp. Each bucket's positive rate is
// the plain unweighted ratio, not the weighted trust score.
func timeSeries(votes []model.Event, bucket string) []TimeBucket {
	counts := map[string]*TimeBucket{}
	for _, v := range votes {
		positive, ok := voteOutcome(v)
		if !ok {
			continue
		}
		key := bucketKey(v.Timestamp, bucket)
		b, found := counts[key]
		if !found {
			b = &TimeBucket{Date: key}
			counts[key] = b
		}
		b.TotalVotes++
		if positive {
			b.PositiveVotes++
		}
	}

	out := make([]TimeBucket, 0, len(counts))
	for _, b := range counts {
		b.PositiveRate = round3(float64(b.PositiveVotes) / float64(b.TotalVotes))
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func bucketKey(tsMillis int64, bucket string) string {
	t := time.UnixMilli(tsMillis).UTC()
	if bucket == BucketWeek {
		// Roll back to Monday.
		offset := (int(t.Weekday()) + 6) % 7
		t = t.AddDate(0, 0, -offset)
	}
	return t.Format("2006-01-02")
}

func sortedByTimestamp(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
