package model

// Spot is a paragliding launch site as served by the backend API.
//
// The id is absent (nil) until the backend has persisted the record.
type Spot struct {
	ID                 *int64         `json:"id,omitempty"`
	IsEnabled          bool           `json:"isEnabled"`
	Name               string         `json:"name"`
	Latitude           float64        `json:"latitude"`
	Longitude          float64        `json:"longitude"`
	Elevation          float64        `json:"elevation"`
	Description        string         `json:"description,omitempty"`
	SuitableWinds      []Wind         `json:"suitableWinds,omitempty"`
	XCDifficulty       int            `json:"xcDifficulty,omitempty"`
	LearningDifficulty int            `json:"learningDifficulty,omitempty"`
	Popularity         int            `json:"popularity,omitempty"`
	BestSeason         string         `json:"bestSeason,omitempty"`
	Accessibility      string         `json:"accessibility,omitempty"`
	TerrainPoints      []TerrainPoint `json:"terrainPoints,omitempty"`
}

// DifficultyTier maps a 1-5 difficulty rating to its presentation label.
// Ratings outside the range collapse to the nearest tier.
func DifficultyTier(rating int) string {
	switch {
	case rating <= 1:
		return "beginner"
	case rating == 2:
		return "novice"
	case rating == 3:
		return "intermediate"
	case rating == 4:
		return "advanced"
	default:
		return "expert"
	}
}
