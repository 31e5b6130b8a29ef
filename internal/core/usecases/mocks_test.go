package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
)

// --- Mock NotificationChannel ---

type mockChannel struct {
	channel domain.Channel
	sendFn  func(ctx context.Context, msg domain.AlertMessage) (string, error)

	mu    sync.Mutex
	calls []domain.AlertMessage
}

func (m *mockChannel) Channel() domain.Channel { return m.channel }

func (m *mockChannel) Send(ctx context.Context, msg domain.AlertMessage) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, msg)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return string(m.channel) + "-id", nil
}

func (m *mockChannel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func okChannel(c domain.Channel) *mockChannel { return &mockChannel{channel: c} }

func failingChannel(c domain.Channel, err error) *mockChannel {
	return &mockChannel{channel: c, sendFn: func(context.Context, domain.AlertMessage) (string, error) {
		return "", err
	}}
}

// --- Mock Model ---

type mockModel struct {
	predictFn func(ctx context.Context, in ports.Tensor) (float64, error)
	last      ports.Tensor
}

func (m *mockModel) Predict(ctx context.Context, in ports.Tensor) (float64, error) {
	m.last = in
	if m.predictFn != nil {
		return m.predictFn(ctx, in)
	}
	return 0, nil
}

// --- Mock Classifier ---

type mockClassifier struct {
	label      domain.Label
	confidence float64
	err        error
}

func (m *mockClassifier) Classify(context.Context, []byte) (domain.Label, float64, error) {
	return m.label, m.confidence, m.err
}

// --- Mock FeedSource ---

type mockFeed struct {
	name   string
	loadFn func(ctx context.Context) (domain.FeedSnapshot, error)
}

func (m *mockFeed) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockFeed) Load(ctx context.Context) (domain.FeedSnapshot, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return domain.FeedSnapshot{}, nil
}

func staticFeed(records ...domain.FeedRecord) *mockFeed {
	return &mockFeed{loadFn: func(context.Context) (domain.FeedSnapshot, error) {
		return domain.FeedSnapshot{Records: records}, nil
	}}
}

// --- In-memory SessionStore ---

type memSessions struct {
	mu   sync.Mutex
	data map[string]domain.Session
}

func newMemSessions() *memSessions { return &memSessions{data: map[string]domain.Session{}} }

func (m *memSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memSessions) Put(_ context.Context, s *domain.Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = *s
	return nil
}

// --- Mock AlertLedger ---

type mockLedger struct {
	mu     sync.Mutex
	seen   map[string]bool
	marked [][]string
	err    error
}

func newMockLedger(ids ...string) *mockLedger {
	l := &mockLedger{seen: map[string]bool{}}
	for _, id := range ids {
		l.seen[id] = true
	}
	return l
}

func (m *mockLedger) Seen(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]bool{}
	for _, id := range ids {
		if m.seen[id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *mockLedger) Mark(_ context.Context, ids []string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, ids)
	for _, id := range ids {
		m.seen[id] = true
	}
	return nil
}

// --- Mock repositories ---

type mockDetectionRepo struct {
	mu       sync.Mutex
	inserted []domain.DetectionRecord
	recentFn func(ctx context.Context, limit int) ([]domain.DetectionRecord, error)
}

func (m *mockDetectionRepo) Insert(_ context.Context, rec *domain.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, *rec)
	return nil
}

func (m *mockDetectionRepo) InsertBatch(_ context.Context, recs []domain.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, recs...)
	return nil
}

func (m *mockDetectionRepo) Recent(ctx context.Context, limit int) ([]domain.DetectionRecord, error) {
	if m.recentFn != nil {
		return m.recentFn(ctx, limit)
	}
	return nil, nil
}

type mockDispatchRepo struct {
	mu    sync.Mutex
	saved []domain.DispatchReport
}

func (m *mockDispatchRepo) Save(_ context.Context, r *domain.DispatchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, *r)
	return nil
}

func (m *mockDispatchRepo) Recent(context.Context, int) ([]domain.DispatchReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DispatchReport(nil), m.saved...), nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	detections []domain.DetectionRecord
	dispatches []domain.DispatchReport
}

func (m *mockPublisher) PublishDetection(_ context.Context, rec *domain.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, *rec)
	return nil
}

func (m *mockPublisher) PublishDispatch(_ context.Context, r *domain.DispatchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatches = append(m.dispatches, *r)
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock imagery ---

type mockProvider struct {
	fetchFn func(ctx context.Context, req ports.ImageryRequest) ([]byte, error)
}

func (m *mockProvider) FetchTile(ctx context.Context, req ports.ImageryRequest) ([]byte, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, req)
	}
	return []byte("tiff"), nil
}

type mockSink struct {
	mu     sync.Mutex
	stored map[int][]byte
}

func (m *mockSink) Store(_ context.Context, index int, _ domain.Tile, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		m.stored = map[int][]byte{}
	}
	m.stored[index] = data
	return fmt.Sprintf("mem://tile/%d", index), nil
}

// --- Fixtures ---

var testRegion = domain.GeoRegion{MinLat: 18.5, MaxLat: 20.0, MinLon: 72.0, MaxLon: 73.5}

func f64(v float64) *float64 { return &v }

func feedRecord(path string, lat, lon float64, prediction string) domain.FeedRecord {
	return domain.FeedRecord{ImagePath: path, Latitude: f64(lat), Longitude: f64(lon), Prediction: prediction}
}

func fire(id string, lat, lon float64) domain.DetectionRecord {
	return domain.DetectionRecord{
		SourceID:   id,
		Coordinate: domain.Coordinate{Lat: lat, Lon: lon},
		Label:      domain.LabelWildfire,
		Confidence: 0.9,
		Timestamp:  time.Date(2025, 9, 18, 12, 0, 0, 0, time.UTC),
	}
}
