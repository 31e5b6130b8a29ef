package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

type stubSessions struct {
	mu   sync.Mutex
	data map[string]domain.Session
}

func (m *stubSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *stubSessions) Put(_ context.Context, s *domain.Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = *s
	return nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(context.Context, []byte) (domain.Label, float64, error) {
	return domain.LabelWildfire, 0.9, nil
}

func newLockTestService() *InteractiveService {
	return NewInteractiveService(InteractiveDeps{
		Classifier: stubClassifier{},
		Sessions:   &stubSessions{data: map[string]domain.Session{}},
		Dispatcher: NewAlertDispatcher(nil, time.Second, time.Second),
		Region:     domain.GeoRegion{MinLat: 18.5, MaxLat: 20, MinLon: 72, MaxLon: 73.5},
		SessionTTL: time.Minute,
	})
}

func TestSessionLocks_UnknownIDsLeaveNothingBehind(t *testing.T) {
	svc := newLockTestService()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("missing-%d", i)
		_, err := svc.SubmitCoordinates(ctx, id, domain.Coordinate{Lat: 19, Lon: 72.5})
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if _, err := svc.Cancel(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if n := svc.locks.len(); n != 0 {
		t.Errorf("%d lock entries left", n)
	}
}

func TestSessionLocks_ReleasedAfterNotAlerted(t *testing.T) {
	svc := newLockTestService()
	ctx := context.Background()

	sess, err := svc.Classify(ctx, ClassifyInput{Image: []byte("img")})
	if err != nil {
		t.Fatal(err)
	}
	sess, err = svc.SubmitCoordinates(ctx, sess.ID, domain.Coordinate{Lat: 25, Lon: 72.5})
	if err != nil {
		t.Fatal(err)
	}
	if sess.State != domain.StateNotAlerted {
		t.Fatalf("state %s", sess.State)
	}
	if n := svc.locks.len(); n != 0 {
		t.Errorf("%d lock entries left", n)
	}
}

func TestSessionLocks_MutualExclusion(t *testing.T) {
	var locks sessionLocks
	var inside, overlaps int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.acquire("s1")
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&overlaps, 1)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if overlaps != 0 {
		t.Errorf("%d overlapping holders", overlaps)
	}
	if n := locks.len(); n != 0 {
		t.Errorf("%d lock entries left", n)
	}
}
