package profiles

import "time"

type HealthGoal string

const (
	GoalWeightLoss    HealthGoal = "weight_loss"
	GoalMuscleGain    HealthGoal = "muscle_gain"
	GoalMaintenance   HealthGoal = "maintenance"
	GoalEndurance     HealthGoal = "endurance"
	GoalGeneralHealth HealthGoal = "general_health"
)

type ActivityLevel string

const (
	LevelSedentary        ActivityLevel = "sedentary"
	LevelLightlyActive    ActivityLevel = "lightly_active"
	LevelModeratelyActive ActivityLevel = "moderately_active"
	LevelVeryActive       ActivityLevel = "very_active"
	LevelExtremelyActive  ActivityLevel = "extremely_active"
)

type Profile struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// PasswordHash is empty for profiles created through onboarding,
	// those cannot log in until a password is set
	PasswordHash  string        `json:"-"`
	Age           int           `json:"age"`
	WeightKg      float64       `json:"weightKg"`
	HeightCm      float64       `json:"heightCm"`
	HealthGoal    HealthGoal    `json:"healthGoal"`
	ActivityLevel ActivityLevel `json:"activityLevel"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
