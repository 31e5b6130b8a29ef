package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

var roi = domain.GeoRegion{MinLat: 18.5, MaxLat: 20.0, MinLon: 72.0, MaxLon: 73.5}

func TestGeoRegion_ContainsBoundaries(t *testing.T) {
	inside := []domain.Coordinate{
		{Lat: 18.5, Lon: 72.5},
		{Lat: 20.0, Lon: 72.5},
		{Lat: 19.0, Lon: 72.0},
		{Lat: 19.0, Lon: 73.5},
		{Lat: 18.5, Lon: 72.0},
		{Lat: 20.0, Lon: 73.5},
		{Lat: 19.0, Lon: 72.5},
	}
	for _, c := range inside {
		if !roi.Contains(c) {
			t.Errorf("expected %+v inside %+v", c, roi)
		}
	}

	outside := []domain.Coordinate{
		{Lat: 25.0, Lon: 72.5},
		{Lat: 18.4999, Lon: 72.5},
		{Lat: 19.0, Lon: 73.5001},
		{Lat: 19.0, Lon: 71.9},
	}
	for _, c := range outside {
		if roi.Contains(c) {
			t.Errorf("expected %+v outside %+v", c, roi)
		}
	}
}

func TestNewGeoRegion_Validation(t *testing.T) {
	if _, err := domain.NewGeoRegion(18.5, 20.0, 72.0, 73.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []struct {
		name                           string
		minLat, maxLat, minLon, maxLon float64
	}{
		{"lat inverted", 20, 18, 72, 73},
		{"lon inverted", 18, 20, 73, 72},
		{"lat out of range", -91, 20, 72, 73},
		{"lon out of range", 18, 20, 72, 181},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.NewGeoRegion(tc.minLat, tc.maxLat, tc.minLon, tc.maxLon)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestDetectionRecord_AlertLine(t *testing.T) {
	cases := []struct {
		coord domain.Coordinate
		want  string
	}{
		{domain.Coordinate{Lat: 19.0, Lon: 72.5}, "tiles/mumbai_001.png (19.0,72.5)"},
		{domain.Coordinate{Lat: 19.076, Lon: 72.8777}, "tiles/mumbai_001.png (19.076,72.8777)"},
		{domain.Coordinate{Lat: -33, Lon: 151}, "tiles/mumbai_001.png (-33.0,151.0)"},
		{domain.Coordinate{Lat: 0, Lon: 0}, "tiles/mumbai_001.png (0.0,0.0)"},
	}
	for _, tc := range cases {
		rec := domain.DetectionRecord{SourceID: "tiles/mumbai_001.png", Coordinate: tc.coord}
		if got := rec.AlertLine(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }

func TestFeedRecord_ToDetection(t *testing.T) {
	now := time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC)

	rec, err := domain.FeedRecord{
		ImagePath:  "img/a.png",
		Latitude:   ptr(19.0),
		Longitude:  ptr(72.5),
		Prediction: "Wildfire",
	}.ToDetection(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Label != domain.LabelWildfire || rec.Confidence != 1 || !rec.Timestamp.Equal(now) {
		t.Errorf("unexpected record %+v", rec)
	}

	rec, err = domain.FeedRecord{
		ImagePath:  "img/b.png",
		Latitude:   ptr(19.0),
		Longitude:  ptr(72.5),
		Prediction: "No Wildfire",
		Confidence: ptr(0.12),
	}.ToDetection(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Label != domain.LabelNoWildfire || rec.Confidence != 0.12 {
		t.Errorf("unexpected record %+v", rec)
	}

	malformed := []domain.FeedRecord{
		{Latitude: ptr(1), Longitude: ptr(1), Prediction: "Wildfire"},
		{ImagePath: "x", Longitude: ptr(1), Prediction: "Wildfire"},
		{ImagePath: "x", Latitude: ptr(95), Longitude: ptr(1), Prediction: "Wildfire"},
		{ImagePath: "x", Latitude: ptr(1), Longitude: ptr(1), Prediction: "Smoke"},
		{ImagePath: "x", Latitude: ptr(1), Longitude: ptr(1), Prediction: "Wildfire", Confidence: ptr(1.5)},
	}
	for i, f := range malformed {
		if _, err := f.ToDetection(now); !errors.Is(err, domain.ErrMalformedRecord) {
			t.Errorf("case %d: expected malformed record error, got %v", i, err)
		}
	}
}
