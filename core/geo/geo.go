package geo

import "math"

// earthRadiusKm is the mean earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Distance returns the haversine great-circle distance in kilometers
// between two (lat, lon) pairs given in degrees. Inputs are not range
// checked; callers substitute a fallback coordinate when a live position
// is unknown.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
