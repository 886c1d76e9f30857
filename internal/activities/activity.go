package activities

import "time"

// Well-known activity tags. Tags are free-form strings, these are just
// the ones the dashboard and the health engine know about.
const (
	TagSport      = "Sport"
	TagSleep      = "Sleep"
	TagReading    = "Reading"
	TagMeditation = "Meditation"
	TagWalking    = "Walking"
	TagNutrition  = "Nutrition"
	TagWork       = "Work"
	TagSocial     = "Social"
	TagCreative   = "Creative"
	TagOutdoor    = "Outdoor"
)

type Activity struct {
	ID          int       `json:"id"`
	ProfileID   int       `json:"profileId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	// DurationMinutes is the logged duration in minutes
	DurationMinutes float64   `json:"durationMinutes"`
	Date            time.Time `json:"date"`
	CompletedAt     time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HasAnyTag reports whether the activity carries at least one of the given tags.
func (a Activity) HasAnyTag(tags ...string) bool {
	for _, t := range a.Tags {
		for _, wanted := range tags {
			if t == wanted {
				return true
			}
		}
	}
	return false
}

// HasTag reports whether the activity carries the given tag.
func (a Activity) HasTag(tag string) bool {
	return a.HasAnyTag(tag)
}
