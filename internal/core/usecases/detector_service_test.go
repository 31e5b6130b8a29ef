package usecases_test

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
	"github.com/pyrovision/pyrovision/internal/pkg/raster"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	data, err := raster.EncodePNG(imaging.New(64, 48, color.NRGBA{R: 200, G: 80, B: 10, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDetectorService_Classify(t *testing.T) {
	cases := []struct {
		name  string
		p     float64
		label domain.Label
	}{
		{"confident fire", 0.93, domain.LabelWildfire},
		{"just above threshold", 0.5000001, domain.LabelWildfire},
		{"exactly threshold", 0.5, domain.LabelNoWildfire},
		{"no fire", 0.02, domain.LabelNoWildfire},
	}

	img := samplePNG(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &mockModel{predictFn: func(context.Context, ports.Tensor) (float64, error) { return tc.p, nil }}
			svc := usecases.NewDetectorService(model, 150, 150, 0)

			label, conf, err := svc.Classify(context.Background(), img)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if label != tc.label {
				t.Errorf("label = %s, want %s", label, tc.label)
			}
			if conf != tc.p {
				t.Errorf("confidence = %v, want %v", conf, tc.p)
			}
		})
	}
}

func TestDetectorService_TensorShape(t *testing.T) {
	model := &mockModel{predictFn: func(context.Context, ports.Tensor) (float64, error) { return 0.1, nil }}
	svc := usecases.NewDetectorService(model, 150, 150, 0)

	if _, _, err := svc.Classify(context.Background(), samplePNG(t)); err != nil {
		t.Fatal(err)
	}
	in := model.last
	if in.Width != 150 || in.Height != 150 || in.Channels != 3 {
		t.Errorf("tensor shape %dx%dx%d, want 150x150x3", in.Height, in.Width, in.Channels)
	}
	if len(in.Data) != 150*150*3 {
		t.Errorf("tensor has %d values", len(in.Data))
	}
}

func TestDetectorService_InferenceErrors(t *testing.T) {
	img := samplePNG(t)
	cases := []struct {
		name  string
		image []byte
		fn    func(context.Context, ports.Tensor) (float64, error)
	}{
		{"model unavailable", img, func(context.Context, ports.Tensor) (float64, error) {
			return 0, errors.New("connection refused")
		}},
		{"output above one", img, func(context.Context, ports.Tensor) (float64, error) { return 1.7, nil }},
		{"negative output", img, func(context.Context, ports.Tensor) (float64, error) { return -0.1, nil }},
		{"not an image", []byte("%PDF-1.4"), nil},
		{"empty upload", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := usecases.NewDetectorService(&mockModel{predictFn: tc.fn}, 150, 150, 0)
			_, _, err := svc.Classify(context.Background(), tc.image)
			if !errors.Is(err, domain.ErrInference) {
				t.Fatalf("expected inference error, got %v", err)
			}
		})
	}
}

func TestDetectorService_OversizedUploadIsInferenceError(t *testing.T) {
	called := false
	model := &mockModel{predictFn: func(context.Context, ports.Tensor) (float64, error) {
		called = true
		return 0.9, nil
	}}
	// samplePNG is 64x48 = 3072 pixels.
	svc := usecases.NewDetectorService(model, 150, 150, 3000)

	_, _, err := svc.Classify(context.Background(), samplePNG(t))
	if !errors.Is(err, domain.ErrInference) || !errors.Is(err, raster.ErrImageTooLarge) {
		t.Fatalf("expected inference error wrapping ErrImageTooLarge, got %v", err)
	}
	if called {
		t.Error("model must not be called for an oversized image")
	}
}
