package domain

import "math"

const earthRadiusKM = 6371.0088

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the point is in range and not the (0,0) null island
// marker that devices emit while they have no fix.
func (p GeoPoint) Valid() bool {
	if p.Latitude == 0 && p.Longitude == 0 {
		return false
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return false
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return false
	}
	return true
}

// KilometersTo returns the haversine distance to q.
func (p GeoPoint) KilometersTo(q GeoPoint) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := q.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (q.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

// MetersTo returns the haversine distance to q in meters.
func (p GeoPoint) MetersTo(q GeoPoint) float64 {
	return p.KilometersTo(q) * 1000
}
