// Package inference talks to a model server over the TensorFlow Serving
// REST predict API.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/ports"
)

// TFServingModel implements ports.Model against
// POST /v1/models/<name>:predict.
type TFServingModel struct {
	url    string
	client *http.Client
}

func NewTFServingModel(url string, timeout time.Duration) *TFServingModel {
	return &TFServingModel{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Instances [][][][]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Predict sends a batch of one and returns the sigmoid output.
func (m *TFServingModel) Predict(ctx context.Context, input ports.Tensor) (float64, error) {
	if input.Height*input.Width*input.Channels != len(input.Data) {
		return 0, fmt.Errorf("tensor shape %dx%dx%d does not match %d values",
			input.Height, input.Width, input.Channels, len(input.Data))
	}

	body, err := json.Marshal(predictRequest{Instances: [][][][]float32{reshape(input)}})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("model server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("model server: read response: %w", err)
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("model server: HTTP %d: decode response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model server: HTTP %d: %s", resp.StatusCode, out.Error)
	}
	if len(out.Predictions) != 1 || len(out.Predictions[0]) != 1 {
		return 0, fmt.Errorf("model server: expected one scalar prediction, got %v", out.Predictions)
	}
	return out.Predictions[0][0], nil
}

// Ping checks the model status endpoint, which is the predict URL without
// the ":predict" suffix.
func (m *TFServingModel) Ping(ctx context.Context) error {
	url := strings.TrimSuffix(m.url, ":predict")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model status: HTTP %d", resp.StatusCode)
	}
	return nil
}

func reshape(t ports.Tensor) [][][]float32 {
	img := make([][][]float32, t.Height)
	i := 0
	for y := 0; y < t.Height; y++ {
		row := make([][]float32, t.Width)
		for x := 0; x < t.Width; x++ {
			row[x] = t.Data[i : i+t.Channels : i+t.Channels]
			i += t.Channels
		}
		img[y] = row
	}
	return img
}
