package health

import (
	"errors"
	"fmt"

	"github.com/mvasic/vitalog/internal/profiles"
)

// ErrInvalidAge marks reports that need the profile age when it is not set
var ErrInvalidAge = errors.New("profile has no valid age set")

type RecommendationStatus string

const (
	RecommendationExcellent RecommendationStatus = "excellent"
	RecommendationGood      RecommendationStatus = "good"
	RecommendationFair      RecommendationStatus = "fair"
	RecommendationPoor      RecommendationStatus = "poor"
)

const (
	CategoryPhysicalActivity = "Physical Activity"
	CategorySleepQuality     = "Sleep Quality"
	CategoryMentalWellness   = "Mental Wellness"
)

// WHO-guideline-based weekly targets. Fixed constants, not configurable.
const (
	targetExerciseMinutesPerWeek = 150
	targetMentalMinutesPerWeek   = 210 // 30 minutes per day

	targetSleepHours       = 8
	targetSleepHoursSenior = 7 // for age 65 and above
)

type Recommendation struct {
	Category    string               `json:"category"`
	Current     string               `json:"current"`
	Recommended string               `json:"recommended"`
	Status      RecommendationStatus `json:"status"`
	Message     string               `json:"message"`
}

// fourTierStatus maps an actual/target ratio onto the four status tiers.
// Comparisons are inclusive, a tie at a boundary resolves to the higher tier.
func fourTierStatus(actual, target, goodRatio, fairRatio float64) RecommendationStatus {
	switch {
	case actual >= target:
		return RecommendationExcellent
	case actual >= target*goodRatio:
		return RecommendationGood
	case actual >= target*fairRatio:
		return RecommendationFair
	default:
		return RecommendationPoor
	}
}

// sleepTargetHours returns the nightly sleep target adjusted for age.
func sleepTargetHours(age int) float64 {
	if age < 65 {
		return targetSleepHours
	}
	return targetSleepHoursSenior
}

// GenerateRecommendations produces exactly three recommendations, one per
// tracked category, in a fixed order: Physical Activity, Sleep Quality,
// Mental Wellness. The fair and poor tiers deliberately share a message.
//
// The profile age is required for the age-adjusted sleep target, a missing
// or invalid age is an error rather than a silent default.
func GenerateRecommendations(metrics Metrics, profile profiles.Profile) ([]Recommendation, error) {
	if profile.Age <= 0 {
		return nil, fmt.Errorf("profile %d: %w", profile.ID, ErrInvalidAge)
	}

	exerciseStatus := fourTierStatus(metrics.WeeklyExerciseMinutes, targetExerciseMinutesPerWeek, 0.75, 0.5)
	exerciseRec := Recommendation{
		Category:    CategoryPhysicalActivity,
		Current:     fmt.Sprintf("%.0f min/week", metrics.WeeklyExerciseMinutes),
		Recommended: fmt.Sprintf("%d min/week", targetExerciseMinutesPerWeek),
		Status:      exerciseStatus,
	}
	switch exerciseStatus {
	case RecommendationExcellent:
		exerciseRec.Message = "Great job! You're meeting WHO recommendations for physical activity."
	case RecommendationGood:
		exerciseRec.Message = "You're close to the recommended amount. Try to add a few more minutes of activity."
	default:
		exerciseRec.Message = "Consider increasing your physical activity to meet WHO guidelines of 150 minutes per week."
	}

	sleepTarget := sleepTargetHours(profile.Age)
	sleepStatus := fourTierStatus(metrics.AverageSleepHours, sleepTarget, 0.9, 0.75)
	sleepRec := Recommendation{
		Category:    CategorySleepQuality,
		Current:     fmt.Sprintf("%.1f hrs/night", metrics.AverageSleepHours),
		Recommended: fmt.Sprintf("%.0f hrs/night", sleepTarget),
		Status:      sleepStatus,
	}
	switch sleepStatus {
	case RecommendationExcellent:
		sleepRec.Message = "Excellent sleep habits! You're getting adequate rest for optimal health."
	case RecommendationGood:
		sleepRec.Message = "Good sleep duration. Consider maintaining consistent sleep schedules."
	default:
		sleepRec.Message = "Aim for more consistent, quality sleep to support your health goals."
	}

	mentalMinutes := metrics.WeeklyMeditationMinutes + metrics.WeeklyReadingHours*60
	mentalStatus := fourTierStatus(mentalMinutes, targetMentalMinutesPerWeek, 0.7, 0.4)
	mentalRec := Recommendation{
		Category:    CategoryMentalWellness,
		Current:     fmt.Sprintf("%.0f min/week", mentalMinutes),
		Recommended: fmt.Sprintf("%d min/week", targetMentalMinutesPerWeek),
		Status:      mentalStatus,
	}
	switch mentalStatus {
	case RecommendationExcellent:
		mentalRec.Message = "Outstanding mental wellness routine! Keep up the meditation and reading."
	case RecommendationGood:
		mentalRec.Message = "Good balance of mental wellness activities. Consider adding more mindful practices."
	default:
		mentalRec.Message = "Try to incorporate more meditation, reading, or mindfulness activities into your routine."
	}

	return []Recommendation{exerciseRec, sleepRec, mentalRec}, nil
}
