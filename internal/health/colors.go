package health

import "github.com/mvasic/vitalog/internal/activities"

// defaultTagColor is used for tags without a dedicated color.
const defaultTagColor = "#6b7280"

var tagColors = map[string]string{
	activities.TagSport:      "#3b82f6",
	activities.TagSleep:      "#8b5cf6",
	activities.TagReading:    "#f59e0b",
	activities.TagMeditation: "#ec4899",
	activities.TagWalking:    "#10b981",
	activities.TagNutrition:  "#06b6d4",
	activities.TagWork:       "#6b7280",
	activities.TagSocial:     "#f97316",
	activities.TagCreative:   "#a855f7",
	activities.TagOutdoor:    "#22c55e",
}

// ColorForTag returns the display color for a tag. Unknown tags get
// the neutral default, the lookup never fails.
func ColorForTag(tag string) string {
	if color, ok := tagColors[tag]; ok {
		return color
	}
	return defaultTagColor
}
