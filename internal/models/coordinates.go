package models

// Coordinates represents a geographical point defined by its latitude and longitude in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`  // Latitude of the geographical point.
	Longitude float64 `json:"longitude"` // Longitude of the geographical point.
}

// IsEmpty reports whether both components are unset. Empty coordinates are never a valid result.
func (c Coordinates) IsEmpty() bool {
	return c.Latitude == 0 && c.Longitude == 0
}
