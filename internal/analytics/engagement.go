package analytics

import (
	"sort"
	"time"

	"peerlink/internal/engage"
)

// HourlyFeedback aggregates feedback into per-hour buckets keyed by action.
func HourlyFeedback(fbs []engage.Feedback) map[time.Time]map[engage.Action]int {
	buckets := make(map[time.Time]map[engage.Action]int)
	for _, f := range fbs {
		at := f.At.UTC()
		key := time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[engage.Action]int)
		}
		buckets[key][f.Action]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[engage.Action]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// DismissRate is the share of feedback for which the user dismissed or reported the recommendation.
func DismissRate(fbs []engage.Feedback) float64 {
	if len(fbs) == 0 {
		return 0
	}
	n := 0
	for _, f := range fbs {
		if f.Action == engage.Dismissed || f.Action == engage.Reported {
			n++
		}
	}
	return float64(n) / float64(len(fbs))
}
