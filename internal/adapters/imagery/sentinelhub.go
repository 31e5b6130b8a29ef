// Package imagery downloads satellite tiles and stores them on disk.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

const (
	crsWGS84      = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	collectionL2A = "sentinel-2-l2a"
	formatTIFF    = "image/tiff"
	maxTileBytes  = 512 << 20
	trueColorNBR  = `//VERSION=3
function setup() {
  return { input: ["B04", "B03", "B02", "B08", "B12"], output: { bands: 5 } };
}
function evaluatePixel(sample) {
  return [sample.B04, sample.B03, sample.B02, sample.B08, sample.B12];
}
`
)

// SentinelHub fetches Sentinel-2 L2A tiles through the Process API.
// Tokens come from the OAuth2 client-credentials flow and are refreshed
// by the transport.
type SentinelHub struct {
	processURL string
	timeFrom   string
	timeTo     string
	client     *http.Client
}

func NewSentinelHub(ctx context.Context, cfg config.ImageryConfig) (*SentinelHub, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: imagery.client_id and imagery.client_secret are required", domain.ErrConfiguration)
	}
	if _, err := time.Parse(time.RFC3339, cfg.TimeFrom); err != nil {
		return nil, fmt.Errorf("%w: imagery.time_from: %v", domain.ErrConfiguration, err)
	}
	if _, err := time.Parse(time.RFC3339, cfg.TimeTo); err != nil {
		return nil, fmt.Errorf("%w: imagery.time_to: %v", domain.ErrConfiguration, err)
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	base := &http.Client{Timeout: cfg.Timeout}
	client := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = cfg.Timeout

	return &SentinelHub{
		processURL: cfg.ProcessURL,
		timeFrom:   cfg.TimeFrom,
		timeTo:     cfg.TimeTo,
		client:     client,
	}, nil
}

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds struct {
		BBox       [4]float64 `json:"bbox"`
		Properties struct {
			CRS string `json:"crs"`
		} `json:"properties"`
	} `json:"bounds"`
	Data []processData `json:"data"`
}

type processData struct {
	Type       string `json:"type"`
	DataFilter struct {
		TimeRange struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timeRange"`
	} `json:"dataFilter"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string `json:"identifier"`
	Format     struct {
		Type string `json:"type"`
	} `json:"format"`
}

func (s *SentinelHub) request(req ports.ImageryRequest) processRequest {
	var pr processRequest
	pr.Input.Bounds.BBox = req.Tile.BBox()
	pr.Input.Bounds.Properties.CRS = crsWGS84

	var data processData
	data.Type = collectionL2A
	data.DataFilter.TimeRange.From = s.timeFrom
	data.DataFilter.TimeRange.To = s.timeTo
	pr.Input.Data = []processData{data}

	var resp processResponse
	resp.Identifier = "default"
	resp.Format.Type = formatTIFF
	pr.Output = processOutput{Width: req.Width, Height: req.Height, Responses: []processResponse{resp}}

	pr.Evalscript = trueColorNBR
	return pr
}

// FetchTile returns the raw TIFF for one tile.
func (s *SentinelHub) FetchTile(ctx context.Context, req ports.ImageryRequest) ([]byte, error) {
	body, err := json.Marshal(s.request(req))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.processURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", formatTIFF)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: tile %s: %v", domain.ErrAcquisition, req.Tile, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: tile %s: read: %v", domain.ErrAcquisition, req.Tile, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tile %s: HTTP %d: %s", domain.ErrAcquisition, req.Tile, resp.StatusCode, truncate(data, 200))
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
