package health

import (
	"time"

	"github.com/mvasic/vitalog/internal/activities"
)

// stepsPerExerciseActivity is a rough estimate used to derive WeeklySteps
// from the number of exercise activities. Steps are not measured.
const stepsPerExerciseActivity = 5000

// exerciseTags are the tags that count towards the weekly exercise bucket.
var exerciseTags = []string{activities.TagSport, activities.TagWalking, activities.TagOutdoor}

// Metrics aggregates activities over the trailing 7-day window.
type Metrics struct {
	WeeklyExerciseMinutes float64 `json:"weeklyExerciseMinutes"`
	// WeeklySteps is an estimate derived from the exercise activity count,
	// not a measured quantity
	WeeklySteps             int     `json:"weeklySteps"`
	AverageSleepHours       float64 `json:"averageSleepHours"`
	WeeklyReadingHours      float64 `json:"weeklyReadingHours"`
	WeeklyMeditationMinutes float64 `json:"weeklyMeditationMinutes"`
	WeeklyOutdoorMinutes    float64 `json:"weeklyOutdoorMinutes"`
}

// ComputeMetrics aggregates the activities whose date falls within the
// trailing 7-day window ending at now (inclusive lower bound). The current
// time is injected by the caller to keep the computation deterministic.
//
// An activity carrying more than one exercise tag is counted once in the
// exercise bucket. The sleep average always divides by 7 nights, so missing
// nights count as zero instead of being excluded.
func ComputeMetrics(acts []activities.Activity, now time.Time) Metrics {
	// calendar-day granularity: the bound is the start of the day 7 days ago
	weekAgo := now.AddDate(0, 0, -7)
	weekAgo = time.Date(weekAgo.Year(), weekAgo.Month(), weekAgo.Day(), 0, 0, 0, 0, weekAgo.Location())

	var m Metrics
	var exerciseActivityCount int

	for _, a := range acts {
		if a.Date.Before(weekAgo) {
			continue
		}

		duration := sanitizeDuration(a.DurationMinutes)

		if a.HasAnyTag(exerciseTags...) {
			m.WeeklyExerciseMinutes += duration
			exerciseActivityCount++
		}
		if a.HasTag(activities.TagSleep) {
			m.AverageSleepHours += duration
		}
		if a.HasTag(activities.TagReading) {
			m.WeeklyReadingHours += duration
		}
		if a.HasTag(activities.TagMeditation) {
			m.WeeklyMeditationMinutes += duration
		}
		if a.HasTag(activities.TagOutdoor) {
			m.WeeklyOutdoorMinutes += duration
		}
	}

	// minutes to hours, then to a nightly average over the whole week
	m.AverageSleepHours = m.AverageSleepHours / 60 / 7
	m.WeeklyReadingHours /= 60
	m.WeeklySteps = exerciseActivityCount * stepsPerExerciseActivity

	return m
}
