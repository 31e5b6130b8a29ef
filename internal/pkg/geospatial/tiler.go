package geospatial

import (
	"fmt"
	"math"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// MetersPerDegree is the flat conversion used for tiling. It is applied to
// longitude as well as latitude, so tiles near the poles are oversized on
// the ground; providers accept that as long as the pixel limit holds.
const MetersPerDegree = 111000.0

// DefaultMaxTiles bounds a single tiling plan when no limit is configured.
const DefaultMaxTiles = 10000

// GenerateTiles splits aoi into tiles whose pixel extent at resolutionM
// metres/pixel stays within maxPixels on each axis. Tiles are returned
// longitude-major, then latitude, which is the order the acquisition loop
// requests them in. A plan that would exceed maxTiles is rejected before
// anything is allocated; maxTiles <= 0 means DefaultMaxTiles.
func GenerateTiles(aoi domain.GeoRegion, resolutionM float64, maxPixels, maxTiles int) ([]domain.Tile, error) {
	if resolutionM <= 0 || math.IsNaN(resolutionM) || math.IsInf(resolutionM, 0) {
		return nil, fmt.Errorf("%w: resolution must be positive, got %v", domain.ErrConfiguration, resolutionM)
	}
	if maxPixels <= 0 {
		return nil, fmt.Errorf("%w: max pixels must be positive, got %d", domain.ErrConfiguration, maxPixels)
	}
	if err := aoi.Validate(); err != nil {
		return nil, err
	}
	if aoi.MinLon == aoi.MaxLon || aoi.MinLat == aoi.MaxLat {
		return nil, fmt.Errorf("%w: area of interest has zero extent", domain.ErrConfiguration)
	}

	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}

	degPerPixel := resolutionM / MetersPerDegree
	lonN := splitCount((aoi.MaxLon-aoi.MinLon)/degPerPixel, maxPixels)
	latN := splitCount((aoi.MaxLat-aoi.MinLat)/degPerPixel, maxPixels)
	if math.IsInf(lonN, 0) || math.IsInf(latN, 0) || math.IsNaN(lonN) || math.IsNaN(latN) {
		return nil, fmt.Errorf("%w: resolution %v m is too fine to tile", domain.ErrConfiguration, resolutionM)
	}
	if lonN*latN > float64(maxTiles) {
		return nil, fmt.Errorf("%w: plan needs %.0f tiles, limit is %d", domain.ErrConfiguration, lonN*latN, maxTiles)
	}

	lonSplits := linspace(aoi.MinLon, aoi.MaxLon, int(lonN))
	latSplits := linspace(aoi.MinLat, aoi.MaxLat, int(latN))

	tiles := make([]domain.Tile, 0, (len(lonSplits)-1)*(len(latSplits)-1))
	for i := 0; i < len(lonSplits)-1; i++ {
		for j := 0; j < len(latSplits)-1; j++ {
			tiles = append(tiles, domain.Tile{
				MinLon: lonSplits[i],
				MinLat: latSplits[j],
				MaxLon: lonSplits[i+1],
				MaxLat: latSplits[j+1],
			})
		}
	}
	return tiles, nil
}

// TileDimensions returns the request size in pixels for one tile, clamped to [1, maxPixels].
func TileDimensions(t domain.Tile, resolutionM float64, maxPixels int) (width, height int) {
	degPerPixel := resolutionM / MetersPerDegree
	width = clampPixels(math.Round((t.MaxLon-t.MinLon)/degPerPixel), maxPixels)
	height = clampPixels(math.Round((t.MaxLat-t.MinLat)/degPerPixel), maxPixels)
	return width, height
}

// splitCount is ceil(trunc(extentPx) / maxPixels), at least 1. It stays in
// float64 so an absurd extent is caught before any int conversion.
func splitCount(extentPx float64, maxPixels int) float64 {
	return math.Max(1, math.Ceil(math.Trunc(extentPx)/float64(maxPixels)))
}

// linspace returns n+1 evenly spaced boundaries over [lo, hi]; the last is exactly hi.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := 0; i < n; i++ {
		out[i] = lo + step*float64(i)
	}
	out[n] = hi
	return out
}

func clampPixels(v float64, maxPixels int) int {
	if !(v >= 1) {
		return 1
	}
	if v > float64(maxPixels) {
		return maxPixels
	}
	return int(v)
}
