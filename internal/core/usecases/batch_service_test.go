package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/ports"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

func allOK() (*usecases.AlertDispatcher, []*mockChannel) {
	chans := []*mockChannel{okChannel(domain.ChannelEmail), okChannel(domain.ChannelSMS), okChannel(domain.ChannelPush)}
	return usecases.NewAlertDispatcher([]ports.NotificationChannel{chans[0], chans[1], chans[2]}, time.Second, 5*time.Second), chans
}

func TestBatchService_MixedFeedAlertsOnlyInRegion(t *testing.T) {
	dispatcher, chans := allOK()
	detections := &mockDetectionRepo{}
	dispatches := &mockDispatchRepo{}
	pub := &mockPublisher{}

	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed: staticFeed(
			feedRecord("mumbai_1.png", 19.0, 72.5, "Wildfire"),
			feedRecord("delhi_1.png", 28.6, 77.2, "Wildfire"),
			feedRecord("mumbai_2.png", 19.1, 72.9, "No Wildfire"),
		),
		Region:     testRegion,
		Dispatcher: dispatcher,
		Channels:   domain.AllChannels,
		Detections: detections,
		Dispatches: dispatches,
		Publisher:  pub,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != usecases.BatchDispatched {
		t.Fatalf("state = %s, want dispatched", res.State)
	}
	if res.Loaded != 3 || len(res.Rejected) != 0 {
		t.Errorf("loaded %d, rejected %d", res.Loaded, len(res.Rejected))
	}
	if len(res.Qualifying) != 1 || res.Qualifying[0].SourceID != "mumbai_1.png" {
		t.Fatalf("qualifying = %+v", res.Qualifying)
	}
	for _, ch := range chans {
		if ch.callCount() != 1 {
			t.Errorf("%s called %d times", ch.channel, ch.callCount())
		}
		if lines := ch.calls[0].Lines; len(lines) != 1 || lines[0] != "mumbai_1.png (19.0,72.5)" {
			t.Errorf("%s lines = %q", ch.channel, lines)
		}
	}
	if len(res.Report.Outcomes) != 3 {
		t.Errorf("report has %d outcomes", len(res.Report.Outcomes))
	}
	if len(detections.inserted) != 3 {
		t.Errorf("stored %d detections, want all 3 valid", len(detections.inserted))
	}
	if len(dispatches.saved) != 1 || len(pub.dispatches) != 1 || len(pub.detections) != 3 {
		t.Errorf("saved %d reports, published %d reports and %d detections", len(dispatches.saved), len(pub.dispatches), len(pub.detections))
	}
}

func TestBatchService_SkippedWhenNothingQualifies(t *testing.T) {
	dispatcher, chans := allOK()
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed: staticFeed(
			feedRecord("far.png", 25.0, 72.5, "Wildfire"),
			feedRecord("calm.png", 19.0, 72.5, "No Wildfire"),
		),
		Region:     testRegion,
		Dispatcher: dispatcher,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchSkipped || res.Report != nil {
		t.Errorf("state = %s, report = %v", res.State, res.Report)
	}
	for _, ch := range chans {
		if ch.callCount() != 0 {
			t.Errorf("%s should not be called", ch.channel)
		}
	}
}

func TestBatchService_MalformedRecordsRejectedIndividually(t *testing.T) {
	dispatcher, _ := allOK()
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed: staticFeed(
			domain.FeedRecord{ImagePath: "no_coords.png", Prediction: "Wildfire"},
			feedRecord("bad_label.png", 19.0, 72.5, "Smoke"),
			feedRecord("good.png", 19.0, 72.5, "Wildfire"),
		),
		Region:     testRegion,
		Dispatcher: dispatcher,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rejected) != 2 {
		t.Fatalf("rejected = %+v", res.Rejected)
	}
	if res.Rejected[0].Index != 0 || res.Rejected[1].Source != "bad_label.png" {
		t.Errorf("unexpected rejections %+v", res.Rejected)
	}
	if res.State != usecases.BatchDispatched || len(res.Qualifying) != 1 {
		t.Errorf("state %s, qualifying %d", res.State, len(res.Qualifying))
	}
}

func TestBatchService_FeedFailureIsFatal(t *testing.T) {
	dispatcher, _ := allOK()
	boom := errors.New("no such file")
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       &mockFeed{loadFn: func(context.Context) (domain.FeedSnapshot, error) { return domain.FeedSnapshot{}, boom }},
		Region:     testRegion,
		Dispatcher: dispatcher,
	})

	if _, err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected feed error, got %v", err)
	}
}

func TestBatchService_ChannelFailuresAreNotRunErrors(t *testing.T) {
	dispatcher := usecases.NewAlertDispatcher([]ports.NotificationChannel{
		failingChannel(domain.ChannelEmail, errors.New("auth")),
	}, time.Second, time.Second)
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       staticFeed(feedRecord("a.png", 19.0, 72.5, "Wildfire")),
		Region:     testRegion,
		Dispatcher: dispatcher,
		Channels:   domain.AllChannels,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("delivery failure must not fail the run: %v", err)
	}
	if res.Report.AnySucceeded() || len(res.Report.Outcomes) != 3 {
		t.Errorf("unexpected report %+v", res.Report)
	}
}

func TestBatchService_LedgerDedup(t *testing.T) {
	dispatcher, chans := allOK()
	ledger := newMockLedger("old.png")
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed: staticFeed(
			feedRecord("old.png", 19.0, 72.5, "Wildfire"),
			feedRecord("new.png", 19.5, 73.0, "Wildfire"),
		),
		Region:     testRegion,
		Dispatcher: dispatcher,
		Ledger:     ledger,
		LedgerTTL:  time.Hour,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Suppressed != 1 || len(res.Qualifying) != 1 || res.Qualifying[0].SourceID != "new.png" {
		t.Fatalf("suppressed %d, qualifying %+v", res.Suppressed, res.Qualifying)
	}
	if len(ledger.marked) != 1 || ledger.marked[0][0] != "new.png" {
		t.Errorf("marked = %v", ledger.marked)
	}

	// A second pass over the same snapshot has nothing left to alert.
	res, err = svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchSkipped || res.Suppressed != 2 {
		t.Errorf("second run state %s, suppressed %d", res.State, res.Suppressed)
	}
	if chans[0].callCount() != 1 {
		t.Errorf("email called %d times across runs, want 1", chans[0].callCount())
	}
}

func TestBatchService_LedgerNotMarkedWhenAllChannelsFail(t *testing.T) {
	dispatcher := usecases.NewAlertDispatcher([]ports.NotificationChannel{
		failingChannel(domain.ChannelSMS, errors.New("down")),
	}, time.Second, time.Second)
	ledger := newMockLedger()
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       staticFeed(feedRecord("a.png", 19.0, 72.5, "Wildfire")),
		Region:     testRegion,
		Dispatcher: dispatcher,
		Channels:   []domain.Channel{domain.ChannelSMS},
		Ledger:     ledger,
		LedgerTTL:  time.Hour,
	})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ledger.marked) != 0 {
		t.Errorf("ledger marked after total failure: %v", ledger.marked)
	}
}

func TestBatchService_LedgerErrorFailsOpen(t *testing.T) {
	dispatcher, _ := allOK()
	ledger := newMockLedger()
	ledger.err = errors.New("ledger offline")
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       staticFeed(feedRecord("a.png", 19.0, 72.5, "Wildfire")),
		Region:     testRegion,
		Dispatcher: dispatcher,
		Ledger:     ledger,
	})

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchDispatched {
		t.Errorf("state = %s, want dispatched", res.State)
	}
}

func TestBatchService_HandleRecord(t *testing.T) {
	dispatcher, chans := allOK()
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Region:     testRegion,
		Dispatcher: dispatcher,
	})

	res, err := svc.HandleRecord(context.Background(), feedRecord("stream_1.png", 19.2, 72.8, "Wildfire"))
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchDispatched || res.Feed != "stream" {
		t.Errorf("state %s, feed %s", res.State, res.Feed)
	}

	res, err = svc.HandleRecord(context.Background(), domain.FeedRecord{ImagePath: "broken"})
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchSkipped || len(res.Rejected) != 1 {
		t.Errorf("malformed record: state %s, rejected %d", res.State, len(res.Rejected))
	}
	if chans[1].callCount() != 1 {
		t.Errorf("sms called %d times", chans[1].callCount())
	}
}

func TestBatchService_CollectThenDeliver(t *testing.T) {
	dispatcher, _ := allOK()
	svc := usecases.NewBatchService(usecases.BatchDeps{
		Feed:       staticFeed(feedRecord("a.png", 19.0, 72.5, "Wildfire")),
		Region:     testRegion,
		Dispatcher: dispatcher,
	})

	res, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.State != usecases.BatchFiltered || len(res.Qualifying) != 1 {
		t.Fatalf("collect: state %s, qualifying %d", res.State, len(res.Qualifying))
	}
	report, err := svc.Deliver(context.Background(), res.RunID, res.Qualifying)
	if err != nil {
		t.Fatal(err)
	}
	if !report.AnySucceeded() {
		t.Error("expected a successful delivery")
	}
}

func TestBatchService_RunsAreSerialised(t *testing.T) {
	var inFlight, maxInFlight int32
	feed := &mockFeed{loadFn: func(context.Context) (domain.FeedSnapshot, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return domain.FeedSnapshot{}, nil
	}}
	dispatcher, _ := allOK()
	svc := usecases.NewBatchService(usecases.BatchDeps{Feed: feed, Region: testRegion, Dispatcher: dispatcher})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Run(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("observed %d concurrent runs, want 1", maxInFlight)
	}
}
