package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
)

const historyCacheTTL = 10 // seconds

// HistoryService serves recent detections and dispatch reports.
type HistoryService struct {
	detections ports.DetectionRepository
	dispatches ports.DispatchRepository
	cache      ports.CacheService
}

// NewHistoryService creates a new HistoryService. cache may be nil.
func NewHistoryService(detections ports.DetectionRepository, dispatches ports.DispatchRepository, cache ports.CacheService) *HistoryService {
	return &HistoryService{detections: detections, dispatches: dispatches, cache: cache}
}

// RecentDetections returns the newest detections first.
func (s *HistoryService) RecentDetections(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	limit = clampLimit(limit)
	if s.detections == nil {
		return []domain.DetectionRecord{}, nil
	}

	cacheKey := fmt.Sprintf("history:detections:%d", limit)
	var out []domain.DetectionRecord
	if s.cached(ctx, cacheKey, &out) {
		return out, nil
	}

	out, err := s.detections.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cacheKey, out)
	return out, nil
}

// RecentDispatches returns the newest dispatch reports first.
func (s *HistoryService) RecentDispatches(ctx context.Context, limit int) ([]domain.DispatchReport, error) {
	limit = clampLimit(limit)
	if s.dispatches == nil {
		return []domain.DispatchReport{}, nil
	}

	cacheKey := fmt.Sprintf("history:dispatches:%d", limit)
	var out []domain.DispatchReport
	if s.cached(ctx, cacheKey, &out) {
		return out, nil
	}

	out, err := s.dispatches.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cacheKey, out)
	return out, nil
}

func (s *HistoryService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("history").Inc()
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false
	}
	metrics.CacheHits.WithLabelValues("history").Inc()
	return true
}

func (s *HistoryService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, historyCacheTTL)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
