package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
	"github.com/pyrovision/pyrovision/internal/pkg/raster"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// DecisionThreshold is the sigmoid output above which an image is a wildfire.
const DecisionThreshold = 0.5

// DetectorService preprocesses images and scores them with the model.
type DetectorService struct {
	model     ports.Model
	width     int
	height    int
	maxPixels int
}

// NewDetectorService creates a DetectorService feeding width x height RGB
// input. Uploads larger than maxImagePixels are refused before decoding;
// <= 0 uses raster.DefaultMaxPixels.
func NewDetectorService(model ports.Model, width, height, maxImagePixels int) *DetectorService {
	return &DetectorService{model: model, width: width, height: height, maxPixels: maxImagePixels}
}

// Classify decodes image, scores it and returns the label with P(Wildfire).
// Any failure is an ErrInference and affects only this image.
func (s *DetectorService) Classify(ctx context.Context, image []byte) (domain.Label, float64, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanClassify)
	defer span.End()

	start := time.Now()
	label, p, err := s.classify(ctx, image)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "classification failed", "error", err)
		return "", 0, err
	}

	metrics.Classifications.WithLabelValues(label.Slug()).Inc()
	span.SetAttributes(
		attribute.String(telemetry.AttrLabel, string(label)),
		attribute.Float64(telemetry.AttrConfidence, p),
	)
	return label, p, nil
}

func (s *DetectorService) classify(ctx context.Context, image []byte) (domain.Label, float64, error) {
	img, err := raster.Decode(image, s.maxPixels)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}
	data, err := raster.ToFloat32(img, s.width, s.height)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrInference, err)
	}

	p, err := s.model.Predict(ctx, ports.Tensor{
		Height:   s.height,
		Width:    s.width,
		Channels: 3,
		Data:     data,
	})
	if err != nil {
		return "", 0, fmt.Errorf("%w: predict: %v", domain.ErrInference, err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return "", 0, fmt.Errorf("%w: model output %v outside [0, 1]", domain.ErrInference, p)
	}

	if p > DecisionThreshold {
		return domain.LabelWildfire, p, nil
	}
	return domain.LabelNoWildfire, p, nil
}
