package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
	"github.com/pyrovision/pyrovision/internal/workflows"
)

type staticFeed struct {
	records []domain.FeedRecord
	err     error
}

func (s *staticFeed) Name() string { return "static" }

func (s *staticFeed) Load(context.Context) (domain.FeedSnapshot, error) {
	return domain.FeedSnapshot{Records: s.records}, s.err
}

type countingChannel struct {
	channel domain.Channel
	err     error

	mu    sync.Mutex
	calls int
}

func (c *countingChannel) Channel() domain.Channel { return c.channel }

func (c *countingChannel) Send(context.Context, domain.AlertMessage) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return "id", c.err
}

func f64(v float64) *float64 { return &v }

var mumbai = domain.GeoRegion{MinLat: 18.5, MaxLat: 20.0, MinLon: 72.0, MaxLon: 73.5}

func newEnv(t *testing.T, feed ports.FeedSource, chans ...ports.NotificationChannel) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       feed,
		Region:     mumbai,
		Dispatcher: usecases.NewAlertDispatcher(chans, time.Second, 5*time.Second),
		Channels:   domain.AllChannels,
	})
	env.RegisterWorkflow(workflows.BatchRunWorkflow)
	env.RegisterActivity(&workflows.BatchActivities{Batch: svc})
	return env
}

func TestBatchRunWorkflow_Dispatches(t *testing.T) {
	email := &countingChannel{channel: domain.ChannelEmail, err: errors.New("535 auth failed")}
	sms := &countingChannel{channel: domain.ChannelSMS}
	push := &countingChannel{channel: domain.ChannelPush}
	feed := &staticFeed{records: []domain.FeedRecord{
		{ImagePath: "in.png", Latitude: f64(19.0), Longitude: f64(72.5), Prediction: "Wildfire"},
		{ImagePath: "out.png", Latitude: f64(28.6), Longitude: f64(77.2), Prediction: "Wildfire"},
	}}
	env := newEnv(t, feed, email, sms, push)

	env.ExecuteWorkflow(workflows.BatchRunWorkflow, workflows.BatchRunInput{Trigger: "test"})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res usecases.BatchRunResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchDispatched || len(res.Qualifying) != 1 || res.Report == nil {
		t.Fatalf("result %+v", res)
	}
	if len(res.Report.Outcomes) != 3 {
		t.Errorf("outcomes = %d", len(res.Report.Outcomes))
	}
	if email.calls != 1 || sms.calls != 1 || push.calls != 1 {
		t.Errorf("calls email=%d sms=%d push=%d, want one each", email.calls, sms.calls, push.calls)
	}
}

func TestBatchRunWorkflow_SkipsWhenNothingQualifies(t *testing.T) {
	sms := &countingChannel{channel: domain.ChannelSMS}
	feed := &staticFeed{records: []domain.FeedRecord{
		{ImagePath: "calm.png", Latitude: f64(19.0), Longitude: f64(72.5), Prediction: "No Wildfire"},
	}}
	env := newEnv(t, feed, sms)

	env.ExecuteWorkflow(workflows.BatchRunWorkflow, workflows.BatchRunInput{})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res usecases.BatchRunResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchSkipped || res.Report != nil {
		t.Errorf("result %+v", res)
	}
	if sms.calls != 0 {
		t.Errorf("sms called %d times", sms.calls)
	}
}

func TestBatchRunWorkflow_FeedFailureIsNotRetried(t *testing.T) {
	env := newEnv(t, &staticFeed{err: errors.New("feed unreadable")})

	env.ExecuteWorkflow(workflows.BatchRunWorkflow, workflows.BatchRunInput{})
	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected workflow error")
	}
}
