package usecases

import "github.com/pyrovision/pyrovision/internal/core/domain"

// FilterInRegion keeps the Wildfire records whose coordinate lies inside
// region, preserving input order. It is pure and idempotent.
func FilterInRegion(records []domain.DetectionRecord, region domain.GeoRegion) []domain.DetectionRecord {
	out := make([]domain.DetectionRecord, 0, len(records))
	for _, r := range records {
		if r.Label == domain.LabelWildfire && region.Contains(r.Coordinate) {
			out = append(out, r)
		}
	}
	return out
}
