package geospatial

import (
	"math"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// Distance is Haversine over domain coordinates.
func Distance(a, b domain.Coordinate) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// RegionAround builds a validated region of radiusMeters around a centre point,
// clipped to the valid coordinate range.
func RegionAround(center domain.Coordinate, radiusMeters float64) (domain.GeoRegion, error) {
	minLat, minLon, maxLat, maxLon := BoundingBox(center.Lat, center.Lon, radiusMeters)
	return domain.NewGeoRegion(
		math.Max(minLat, -90), math.Min(maxLat, 90),
		math.Max(minLon, -180), math.Min(maxLon, 180),
	)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
