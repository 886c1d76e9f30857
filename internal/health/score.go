package health

import (
	"fmt"
	"math"

	"github.com/mvasic/vitalog/internal/profiles"
)

type ScoreStatus string

const (
	ScoreExcellent        ScoreStatus = "excellent"
	ScoreGood             ScoreStatus = "good"
	ScoreFair             ScoreStatus = "fair"
	ScoreNeedsImprovement ScoreStatus = "needs_improvement"
)

// targetOutdoorMinutesPerWeek is the lifestyle sub-score denominator.
const targetOutdoorMinutesPerWeek = 120

// Score is the composite health score. All values are within [0, 100].
type Score struct {
	Overall   int         `json:"overall"`
	Exercise  int         `json:"exercise"`
	Sleep     int         `json:"sleep"`
	Mental    int         `json:"mental"`
	Lifestyle int         `json:"lifestyle"`
	Status    ScoreStatus `json:"status"`
	Message   string      `json:"message"`
}

// subScore maps actual/target onto [0, 100], clamped at 100. Inputs are
// non-negative so no lower clamp is needed.
func subScore(actual, target float64) float64 {
	return math.Min(100, actual/target*100)
}

// ComputeScore derives the composite health score from the weekly metrics
// and the profile age. Rounding policy: the overall score is the mean of the
// unrounded sub-scores, rounded once; the sub-score fields are rounded
// independently for display. The two can therefore differ from a
// rounded-inputs average by at most a point or two.
func ComputeScore(metrics Metrics, profile profiles.Profile) (Score, error) {
	if profile.Age <= 0 {
		return Score{}, fmt.Errorf("profile %d: %w", profile.ID, ErrInvalidAge)
	}

	exercise := subScore(metrics.WeeklyExerciseMinutes, targetExerciseMinutesPerWeek)
	sleep := subScore(metrics.AverageSleepHours, sleepTargetHours(profile.Age))
	mental := subScore(metrics.WeeklyMeditationMinutes+metrics.WeeklyReadingHours*60, targetMentalMinutesPerWeek)
	lifestyle := subScore(metrics.WeeklyOutdoorMinutes, targetOutdoorMinutesPerWeek)

	overall := int(math.Round((exercise + sleep + mental + lifestyle) / 4))

	score := Score{
		Overall:   overall,
		Exercise:  int(math.Round(exercise)),
		Sleep:     int(math.Round(sleep)),
		Mental:    int(math.Round(mental)),
		Lifestyle: int(math.Round(lifestyle)),
	}

	switch {
	case overall >= 80:
		score.Status = ScoreExcellent
		score.Message = "Outstanding! You're maintaining excellent health habits across all areas."
	case overall >= 65:
		score.Status = ScoreGood
		score.Message = "Great work! You're on track with most health recommendations."
	case overall >= 45:
		score.Status = ScoreFair
		score.Message = "Good foundation! Focus on improving a few key areas for better health."
	default:
		score.Status = ScoreNeedsImprovement
		score.Message = "There's room for improvement. Start with small, consistent changes."
	}

	return score, nil
}
