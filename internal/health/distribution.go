package health

import (
	"math"
	"sort"

	"github.com/mvasic/vitalog/internal/activities"
)

// Distribution describes how logged minutes are spread over a single tag.
type Distribution struct {
	Tag        string  `json:"tag"`
	Count      int     `json:"count"`
	Minutes    float64 `json:"minutes"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

// ComputeDistribution partitions activity minutes by tag. An activity with
// N tags contributes its full duration to each of its N tags, so the total
// distributed minutes can exceed the sum of activity durations. Percentages
// are relative to the summed per-tag minutes and therefore always add up
// to 100 when any minutes were logged at all.
//
// The result is sorted by tag name.
func ComputeDistribution(acts []activities.Activity) []Distribution {
	type tagStats struct {
		count   int
		minutes float64
	}

	stats := make(map[string]*tagStats)
	for _, a := range acts {
		duration := sanitizeDuration(a.DurationMinutes)
		for _, tag := range a.Tags {
			s, ok := stats[tag]
			if !ok {
				s = &tagStats{}
				stats[tag] = s
			}
			s.count++
			s.minutes += duration
		}
	}

	var totalMinutes float64
	for _, s := range stats {
		totalMinutes += s.minutes
	}

	distribution := make([]Distribution, 0, len(stats))
	for tag, s := range stats {
		percentage := 0.0
		if totalMinutes > 0 {
			percentage = s.minutes / totalMinutes * 100
		}
		distribution = append(distribution, Distribution{
			Tag:        tag,
			Count:      s.count,
			Minutes:    s.minutes,
			Percentage: percentage,
			Color:      ColorForTag(tag),
		})
	}

	sort.Slice(distribution, func(i, j int) bool {
		return distribution[i].Tag < distribution[j].Tag
	})

	return distribution
}

// sanitizeDuration clamps negative durations to zero and treats
// non-finite values as zero, so that percentages and scores downstream
// stay well-defined.
func sanitizeDuration(minutes float64) float64 {
	if minutes < 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0
	}
	return minutes
}
