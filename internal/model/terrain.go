package model

// PointType classifies a terrain point on the map.
type PointType string

const (
	PointTakeoff     PointType = "TAKEOFF"
	PointLandingZone PointType = "LANDING_ZONE"
	PointBeacon      PointType = "BEACON"
	PointLandmark    PointType = "LANDMARK"
)

// Valid reports whether t is one of the known terrain point types.
func (t PointType) Valid() bool {
	switch t {
	case PointTakeoff, PointLandingZone, PointBeacon, PointLandmark:
		return true
	}
	return false
}

// TerrainPoint is a named point of interest, optionally owned by a Spot.
// The owning spot is set at creation time and is not mutable through this client.
type TerrainPoint struct {
	ID          *int64    `json:"id,omitempty"`
	IsEnabled   bool      `json:"isEnabled"`
	Name        string    `json:"name"`
	Type        PointType `json:"type"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Elevation   float64   `json:"elevation"`
	Description string    `json:"description,omitempty"`
	SpotID      *int64    `json:"spotId,omitempty"`
}
