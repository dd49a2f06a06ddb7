package model

// Coordinate is a (lat, lon) pair in degrees. The zero value means the
// position is unknown.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Known reports whether the coordinate carries a real position.
func (c Coordinate) Known() bool {
	return c.Lat != 0 || c.Lon != 0
}
