package domain

import "fmt"

// Coordinate is a WGS 84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the coordinate lies on the globe.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrConfiguration, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrConfiguration, c.Lon)
	}
	return nil
}

// GeoRegion is a lat/lon bounding box. Construct it with NewGeoRegion so the
// ordering invariant holds; the zero value is a single point at (0,0).
type GeoRegion struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// NewGeoRegion validates and returns a region.
func NewGeoRegion(minLat, maxLat, minLon, maxLon float64) (GeoRegion, error) {
	r := GeoRegion{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
	if err := r.Validate(); err != nil {
		return GeoRegion{}, err
	}
	return r, nil
}

// Validate reports whether the region is well formed.
func (r GeoRegion) Validate() error {
	if err := (Coordinate{Lat: r.MinLat, Lon: r.MinLon}).Validate(); err != nil {
		return err
	}
	if err := (Coordinate{Lat: r.MaxLat, Lon: r.MaxLon}).Validate(); err != nil {
		return err
	}
	if r.MinLat > r.MaxLat {
		return fmt.Errorf("%w: min_lat %v > max_lat %v", ErrConfiguration, r.MinLat, r.MaxLat)
	}
	if r.MinLon > r.MaxLon {
		return fmt.Errorf("%w: min_lon %v > max_lon %v", ErrConfiguration, r.MinLon, r.MaxLon)
	}
	return nil
}

// Contains reports whether c lies inside the region. All four edges are inclusive.
func (r GeoRegion) Contains(c Coordinate) bool {
	return r.MinLat <= c.Lat && c.Lat <= r.MaxLat &&
		r.MinLon <= c.Lon && c.Lon <= r.MaxLon
}

// Center returns the midpoint of the box.
func (r GeoRegion) Center() Coordinate {
	return Coordinate{Lat: (r.MinLat + r.MaxLat) / 2, Lon: (r.MinLon + r.MaxLon) / 2}
}

// Tile is a sub-rectangle of an area of interest, in the
// [min_lon, min_lat, max_lon, max_lat] order imagery providers expect.
type Tile struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// BBox returns the tile as a [minLon, minLat, maxLon, maxLat] array.
func (t Tile) BBox() [4]float64 {
	return [4]float64{t.MinLon, t.MinLat, t.MaxLon, t.MaxLat}
}

func (t Tile) String() string {
	return fmt.Sprintf("[%.6f, %.6f, %.6f, %.6f]", t.MinLon, t.MinLat, t.MaxLon, t.MaxLat)
}
