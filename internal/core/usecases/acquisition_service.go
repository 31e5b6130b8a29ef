package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/geospatial"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// TilePlan is one tile with the pixel size to request for it.
type TilePlan struct {
	Index  int         `json:"index"`
	Tile   domain.Tile `json:"tile"`
	BBox   [4]float64  `json:"bbox"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// StoredTile is a tile that was downloaded and stored.
type StoredTile struct {
	Index    int    `json:"index"`
	Location string `json:"location"`
}

// TileFailure is a tile that could not be acquired.
type TileFailure struct {
	Index int         `json:"index"`
	Tile  domain.Tile `json:"tile"`
	Error string      `json:"error"`
}

// AcquisitionReport summarises one acquisition pass.
type AcquisitionReport struct {
	Tiles  int           `json:"tiles"`
	Stored []StoredTile  `json:"stored"`
	Failed []TileFailure `json:"failed,omitempty"`
}

// AcquisitionService downloads imagery for an area of interest tile by tile.
type AcquisitionService struct {
	provider    ports.ImageryProvider
	sink        ports.TileSink
	resolutionM float64
	maxPixels   int
	maxTiles    int
	concurrency int
}

// NewAcquisitionService creates a new AcquisitionService. provider and sink
// may be nil when only Plan is used. maxTiles caps one plan; <= 0 uses
// geospatial.DefaultMaxTiles.
func NewAcquisitionService(provider ports.ImageryProvider, sink ports.TileSink, resolutionM float64, maxPixels, maxTiles, concurrency int) *AcquisitionService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AcquisitionService{
		provider:    provider,
		sink:        sink,
		resolutionM: resolutionM,
		maxPixels:   maxPixels,
		maxTiles:    maxTiles,
		concurrency: concurrency,
	}
}

// Plan tiles aoi with the service's resolution, pixel and tile limits.
func (s *AcquisitionService) Plan(aoi domain.GeoRegion) ([]TilePlan, error) {
	return PlanTiles(aoi, s.resolutionM, s.maxPixels, s.maxTiles)
}

// PlanTiles tiles aoi and sizes every tile's request. Plans larger than
// maxTiles are refused with ErrConfiguration.
func PlanTiles(aoi domain.GeoRegion, resolutionM float64, maxPixels, maxTiles int) ([]TilePlan, error) {
	tiles, err := geospatial.GenerateTiles(aoi, resolutionM, maxPixels, maxTiles)
	if err != nil {
		return nil, err
	}
	plans := make([]TilePlan, len(tiles))
	for i, t := range tiles {
		w, h := geospatial.TileDimensions(t, resolutionM, maxPixels)
		plans[i] = TilePlan{Index: i, Tile: t, BBox: t.BBox(), Width: w, Height: h}
	}
	return plans, nil
}

// Acquire fetches and stores every tile of aoi with bounded concurrency.
// A failed tile is logged, reported and skipped. Only an invalid plan or a
// cancelled context is returned as an error.
func (s *AcquisitionService) Acquire(ctx context.Context, aoi domain.GeoRegion) (*AcquisitionReport, error) {
	if s.provider == nil || s.sink == nil {
		return nil, fmt.Errorf("%w: imagery provider and sink are required", domain.ErrConfiguration)
	}
	plans, err := s.Plan(aoi)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanAcquire)
	defer span.End()
	span.SetAttributes(attribute.Int(telemetry.AttrTileCount, len(plans)))

	slog.InfoContext(ctx, "acquiring tiles", "tiles", len(plans), "concurrency", s.concurrency)

	report := &AcquisitionReport{Tiles: len(plans)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range plans {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loc, err := s.acquireOne(gctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.TilesAcquired.WithLabelValues("failure").Inc()
				slog.WarnContext(gctx, "tile skipped", "index", p.Index, "tile", p.Tile.String(), "error", err)
				report.Failed = append(report.Failed, TileFailure{Index: p.Index, Tile: p.Tile, Error: err.Error()})
				return nil
			}
			metrics.TilesAcquired.WithLabelValues("success").Inc()
			report.Stored = append(report.Stored, StoredTile{Index: p.Index, Location: loc})
			return nil
		})
	}
	err = g.Wait()
	sort.Slice(report.Stored, func(i, j int) bool { return report.Stored[i].Index < report.Stored[j].Index })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Index < report.Failed[j].Index })
	if err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "acquisition complete", "stored", len(report.Stored), "failed", len(report.Failed))
	return report, nil
}

func (s *AcquisitionService) acquireOne(ctx context.Context, p TilePlan) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTileFetch)
	defer span.End()
	span.SetAttributes(attribute.Int(telemetry.AttrTileIndex, p.Index))

	data, err := s.provider.FetchTile(ctx, ports.ImageryRequest{Tile: p.Tile, Width: p.Width, Height: p.Height})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: tile %d: %v", domain.ErrAcquisition, p.Index, err)
	}
	loc, err := s.sink.Store(ctx, p.Index, p.Tile, data)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: store tile %d: %v", domain.ErrAcquisition, p.Index, err)
	}
	return loc, nil
}
