package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/pkg/geospatial"
	"github.com/pyrovision/pyrovision/internal/pkg/telemetry"
)

// OutcomeNotAlerted is recorded on sessions whose detection fell outside the region.
const OutcomeNotAlerted = "detected but not alerted"

// Classifier scores a single image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (domain.Label, float64, error)
}

// ClassifyInput starts an interactive session. Region overrides the
// configured region of interest for this session only.
type ClassifyInput struct {
	Image    []byte
	Filename string
	Region   *domain.GeoRegion
}

// InteractiveDeps wires an InteractiveService. Detections, Dispatches and
// Publisher are optional.
type InteractiveDeps struct {
	Classifier Classifier
	Sessions   ports.SessionStore
	Dispatcher *AlertDispatcher
	Region     domain.GeoRegion
	Channels   []domain.Channel
	SessionTTL time.Duration
	Detections ports.DetectionRepository
	Dispatches ports.DispatchRepository
	Publisher  ports.EventPublisher
}

// InteractiveService drives the operator flow: classify an upload, place it,
// check it against the region and dispatch only on explicit confirmation.
type InteractiveService struct {
	deps  InteractiveDeps
	now   func() time.Time
	locks sessionLocks
}

// NewInteractiveService creates a new InteractiveService.
func NewInteractiveService(deps InteractiveDeps) *InteractiveService {
	return &InteractiveService{deps: deps, now: time.Now}
}

// Classify scores the image and opens a session. A NoWildfire result is
// terminal; a Wildfire result waits for coordinates.
func (s *InteractiveService) Classify(ctx context.Context, in ClassifyInput) (*domain.Session, error) {
	region := s.deps.Region
	if in.Region != nil {
		if err := in.Region.Validate(); err != nil {
			return nil, err
		}
		region = *in.Region
	}

	label, confidence, err := s.deps.Classifier.Classify(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &domain.Session{
		ID:         uuid.NewString(),
		State:      domain.StateClassified,
		Filename:   in.Filename,
		Region:     region,
		Label:      label,
		Confidence: confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if label == domain.LabelWildfire {
		sess.State = domain.StateAwaitingCoordinates
	}

	if err := s.deps.Sessions.Put(ctx, sess, s.deps.SessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	slog.InfoContext(ctx, "image classified",
		"session_id", sess.ID,
		"label", label,
		"confidence", confidence,
	)
	return sess, nil
}

// SubmitCoordinates places a detected wildfire and checks it against the
// session's region. Outside the region the session ends as not alerted.
func (s *InteractiveService) SubmitCoordinates(ctx context.Context, id string, coord domain.Coordinate) (*domain.Session, error) {
	if err := coord.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateAwaitingCoordinates {
		return nil, fmt.Errorf("%w: cannot submit coordinates in state %s", domain.ErrInvalidTransition, sess.State)
	}

	now := s.now().UTC()
	rec := domain.DetectionRecord{
		SourceID:   sourceIDFor(sess),
		Coordinate: coord,
		Label:      sess.Label,
		Confidence: sess.Confidence,
		Timestamp:  now,
	}
	inRegion := sess.Region.Contains(coord)

	sess.Coordinate = &coord
	sess.Detection = &rec
	sess.InRegion = &inRegion
	if inRegion {
		sess.State = domain.StateAwaitingConfirmation
	} else {
		sess.State = domain.StateNotAlerted
		sess.Outcome = OutcomeNotAlerted
	}
	sess.UpdatedAt = now

	if err := s.deps.Sessions.Put(ctx, sess, s.deps.SessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if s.deps.Detections != nil {
		if err := s.deps.Detections.Insert(ctx, &rec); err != nil {
			slog.ErrorContext(ctx, "store detection", "session_id", id, "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDetection(ctx, &rec); err != nil {
			slog.WarnContext(ctx, "publish detection", "session_id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "detection located",
		"session_id", id,
		"lat", coord.Lat,
		"lon", coord.Lon,
		"in_region", inRegion,
		"center_distance_m", math.Round(geospatial.Distance(sess.Region.Center(), coord)),
	)
	return sess, nil
}

// Confirm dispatches the session's detection over every configured channel.
func (s *InteractiveService) Confirm(ctx context.Context, id string) (*domain.Session, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSessionAction)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrSessionID, id))

	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateAwaitingConfirmation || sess.Detection == nil {
		return nil, fmt.Errorf("%w: cannot confirm in state %s", domain.ErrInvalidTransition, sess.State)
	}

	report, err := s.deps.Dispatcher.Dispatch(ctx, domain.AlertBatch{Fires: []domain.DetectionRecord{*sess.Detection}}, s.deps.Channels)
	if err != nil {
		return nil, err
	}

	sess.Report = report
	sess.State = domain.StateDispatched
	sess.UpdatedAt = s.now().UTC()
	if err := s.deps.Sessions.Put(ctx, sess, s.deps.SessionTTL); err != nil {
		// The alert went out; losing the session update must not hide the report.
		slog.ErrorContext(ctx, "store dispatched session", "session_id", id, "error", err)
	}

	if s.deps.Dispatches != nil {
		if err := s.deps.Dispatches.Save(ctx, report); err != nil {
			slog.ErrorContext(ctx, "save dispatch report", "dispatch_id", report.ID, "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDispatch(ctx, report); err != nil {
			slog.WarnContext(ctx, "publish dispatch report", "dispatch_id", report.ID, "error", err)
		}
	}
	return sess, nil
}

// Cancel ends an open session without alerting.
func (s *InteractiveService) Cancel(ctx context.Context, id string) (*domain.Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.Terminal() {
		return nil, fmt.Errorf("%w: session already %s", domain.ErrInvalidTransition, sess.State)
	}

	sess.State = domain.StateCancelled
	sess.UpdatedAt = s.now().UTC()
	if err := s.deps.Sessions.Put(ctx, sess, s.deps.SessionTTL); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	slog.InfoContext(ctx, "session cancelled", "session_id", id)
	return sess, nil
}

// Get returns a session by ID.
func (s *InteractiveService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.load(ctx, id)
}

// Region is the default region of interest for new sessions.
func (s *InteractiveService) Region() domain.GeoRegion {
	return s.deps.Region
}

func (s *InteractiveService) load(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := s.deps.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *InteractiveService) lock(id string) func() {
	return s.locks.acquire(id)
}

// sessionLocks serialises actions per session. An entry lives only while
// some caller holds or waits for it, so unknown, expired and finished
// session IDs leave nothing behind.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) acquire(id string) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[string]*sessionLock)
	}
	e, ok := l.entries[id]
	if !ok {
		e = &sessionLock{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func sourceIDFor(sess *domain.Session) string {
	if sess.Filename != "" {
		return sess.Filename
	}
	return "upload:" + sess.ID
}
