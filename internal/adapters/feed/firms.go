package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

// Nominal probabilities for the VIIRS low/nominal/high confidence classes.
var confidenceClasses = map[string]float64{
	"l": 0.3, "low": 0.3,
	"n": 0.6, "nominal": 0.6,
	"h": 0.9, "high": 0.9,
}

// FIRMSSource pulls active-fire hotspots for an area from the NASA FIRMS
// area CSV API. Hotspots at or above the minimum confidence become
// Wildfire records, the rest No Wildfire.
type FIRMSSource struct {
	baseURL string
	key     string
	product string
	days    int
	area    domain.GeoRegion
	minConf float64
	client  *http.Client
}

func NewFIRMSSource(cfg config.FeedConfig, area domain.GeoRegion, timeout time.Duration) (*FIRMSSource, error) {
	if cfg.FIRMSKey == "" {
		return nil, fmt.Errorf("%w: feed.firms_key is required", domain.ErrConfiguration)
	}
	if err := area.Validate(); err != nil {
		return nil, err
	}
	minConf, err := parseConfidence(cfg.FIRMSMinConfidence)
	if err != nil {
		return nil, fmt.Errorf("%w: feed.firms_min_confidence: %v", domain.ErrConfiguration, err)
	}
	return &FIRMSSource{
		baseURL: strings.TrimRight(cfg.FIRMSURL, "/"),
		key:     cfg.FIRMSKey,
		product: cfg.FIRMSProduct,
		days:    cfg.FIRMSDays,
		area:    area,
		minConf: minConf,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (s *FIRMSSource) Name() string { return "firms" }

func (s *FIRMSSource) endpoint() string {
	area := fmt.Sprintf("%s,%s,%s,%s",
		fmtCoord(s.area.MinLon), fmtCoord(s.area.MinLat),
		fmtCoord(s.area.MaxLon), fmtCoord(s.area.MaxLat))
	return fmt.Sprintf("%s/api/area/csv/%s/%s/%s/%d",
		s.baseURL, url.PathEscape(s.key), url.PathEscape(s.product), area, s.days)
}

func (s *FIRMSSource) Load(ctx context.Context) (domain.FeedSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(), nil)
	if err != nil {
		return domain.FeedSnapshot{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("firms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FeedSnapshot{}, fmt.Errorf("firms: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return s.parse(resp.Body)
}

func (s *FIRMSSource) parse(r io.Reader) (domain.FeedSnapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.FeedSnapshot{}, nil
	}
	if err != nil {
		return domain.FeedSnapshot{}, fmt.Errorf("firms: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"latitude", "longitude", "confidence"} {
		if _, ok := col[required]; !ok {
			// FIRMS answers some bad requests with a one-line plain-text error.
			return domain.FeedSnapshot{}, fmt.Errorf("firms: response has no %q column: %s", required, strings.Join(header, ","))
		}
	}

	var snap domain.FeedSnapshot
	for i := 0; ; i++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			snap.Rejected = append(snap.Rejected, domain.RecordError{Index: i, Reason: fmt.Sprintf("%v: %v", domain.ErrMalformedRecord, err)})
			continue
		}
		rec, err := s.record(col, row)
		if err != nil {
			snap.Rejected = append(snap.Rejected, domain.RecordError{Index: i, Source: rec.ImagePath, Reason: err.Error()})
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func (s *FIRMSSource) record(col map[string]int, row []string) (domain.FeedRecord, error) {
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	id := hotspotID(get("satellite"), get("acq_date"), get("acq_time"), get("latitude"), get("longitude"))
	rec := domain.FeedRecord{ImagePath: id}

	lat, err := strconv.ParseFloat(get("latitude"), 64)
	if err != nil {
		return rec, fmt.Errorf("%w: latitude %q", domain.ErrMalformedRecord, get("latitude"))
	}
	lon, err := strconv.ParseFloat(get("longitude"), 64)
	if err != nil {
		return rec, fmt.Errorf("%w: longitude %q", domain.ErrMalformedRecord, get("longitude"))
	}
	conf, err := parseConfidence(get("confidence"))
	if err != nil {
		return rec, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	rec.Latitude = &lat
	rec.Longitude = &lon
	rec.Confidence = &conf
	rec.Prediction = string(domain.LabelNoWildfire)
	if conf >= s.minConf {
		rec.Prediction = string(domain.LabelWildfire)
	}
	return rec, nil
}

// parseConfidence accepts a VIIRS class (l, n, h) or a MODIS percentage.
func parseConfidence(v string) (float64, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if p, ok := confidenceClasses[v]; ok {
		return p, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 || n > 100 {
		return 0, fmt.Errorf("confidence %q is neither l/n/h nor 0-100", v)
	}
	return n / 100, nil
}

func hotspotID(satellite, date, acqTime, lat, lon string) string {
	if satellite == "" {
		satellite = "unknown"
	}
	return fmt.Sprintf("firms:%s:%s:%s:%s,%s", satellite, date, acqTime, lat, lon)
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
