package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/store/memory"
)

const callbackKey = "sig_current_key"

// stubDLQ is a simple DLQ pusher that records pushed entries.
type stubDLQ struct {
	mu     sync.Mutex
	pushed []*delivery.Delivery
	count  atomic.Int32
}

func (s *stubDLQ) PushFailed(_ context.Context, d *delivery.Delivery, _ string, _ int) error {
	s.mu.Lock()
	s.pushed = append(s.pushed, d)
	s.mu.Unlock()
	s.count.Add(1)
	return nil
}

func setupEngine(t *testing.T, handler http.Handler, dlq delivery.DLQPusher) (*memory.Store, *delivery.Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	store := memory.New()
	cfg := delivery.EngineConfig{
		Concurrency:    2,
		PollInterval:   50 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: 5 * time.Second,
		RetrySchedule:  []time.Duration{10 * time.Millisecond, 20 * time.Millisecond},
		CallbackKey:    callbackKey,
	}

	engine := delivery.NewEngine(store, dlq, cfg, nil)
	return store, engine, srv
}

func publish(t *testing.T, store *memory.Store, msg queue.Message) id.ID {
	t.Helper()
	receipt, err := delivery.NewQueue(store, 3, nil).Publish(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	return id.MustParse(receipt.MessageID)
}

func waitForState(t *testing.T, store *memory.Store, delID id.ID, state delivery.State, timeout time.Duration) *delivery.Delivery {
	t.Helper()
	ctx := context.Background()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for state %s", state)
		default:
		}

		got, err := store.GetDelivery(ctx, delID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == state {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestEngineDeliversSuccessfully(t *testing.T) {
	var (
		delivered atomic.Int32
		gotSig    atomic.Value
		gotBody   atomic.Value
	)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		gotSig.Store(r.Header.Get(signature.Header))
		w.WriteHeader(http.StatusOK)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	delID := publish(t, store, queue.Message{
		URL:     srv.URL,
		Body:    []byte(`{"hello":"world"}`),
		Headers: map[string]string{signature.Header: "abc123"},
	})

	ctx := context.Background()
	engine.Start(ctx)
	waitForState(t, store, delID, delivery.StateDelivered, 2*time.Second)
	engine.Stop(ctx)

	if delivered.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered.Load())
	}
	if gotBody.Load() != `{"hello":"world"}` {
		t.Fatalf("body = %v", gotBody.Load())
	}
	if gotSig.Load() != "abc123" {
		t.Fatalf("signature header = %v", gotSig.Load())
	}
	if dlq.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestEngineRetriesAndSucceeds(t *testing.T) {
	var attempts atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	delID := publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{}`)})

	ctx := context.Background()
	engine.Start(ctx)
	got := waitForState(t, store, delID, delivery.StateDelivered, 5*time.Second)
	engine.Stop(ctx)

	if attempts.Load() < 3 {
		t.Fatalf("expected at least 3 attempts, got %d", attempts.Load())
	}
	if got.AttemptCount != 3 {
		t.Fatalf("attempt count = %d", got.AttemptCount)
	}
	if dlq.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestEngineExhaustsRetriesAndDLQs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	dlqPusher := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlqPusher)
	defer srv.Close()

	delID := publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{}`)})

	ctx := context.Background()
	engine.Start(ctx)
	waitForState(t, store, delID, delivery.StateFailed, 5*time.Second)
	engine.Stop(ctx)

	if dlqPusher.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push, got %d", dlqPusher.count.Load())
	}
}

func TestEngine410FailsImmediately(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusGone)
	})

	dlqPusher := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlqPusher)
	defer srv.Close()

	delID := publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{}`)})

	ctx := context.Background()
	engine.Start(ctx)
	got := waitForState(t, store, delID, delivery.StateFailed, 2*time.Second)
	engine.Stop(ctx)

	if attempts.Load() != 1 || got.LastStatusCode != http.StatusGone {
		t.Fatalf("attempts = %d, status = %d", attempts.Load(), got.LastStatusCode)
	}
	if dlqPusher.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push for 410, got %d", dlqPusher.count.Load())
	}
}

func TestEngineReportsOutcomes(t *testing.T) {
	var attempts atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer target.Close()

	var (
		mu       sync.Mutex
		reports  []queue.Report
		tokenErr error
	)
	verifier := signature.NewTokenVerifier(callbackKey, "")
	var cbURL string
	cb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if err := verifier.Verify(r.Header.Get(signature.TokenHeader), cbURL, body); err != nil {
			tokenErr = err
		}
		var rep queue.Report
		if err := json.Unmarshal(body, &rep); err != nil {
			tokenErr = err
		}
		reports = append(reports, rep)
	}))
	defer cb.Close()
	cbURL = cb.URL + "/callback?webhookId=wh_1"

	store, engine, _ := setupEngine(t, http.NotFoundHandler(), nil)
	delID := publish(t, store, queue.Message{URL: target.URL, Body: []byte(`{"id":"evt_1"}`), CallbackURL: cbURL})

	ctx := context.Background()
	engine.Start(ctx)
	waitForState(t, store, delID, delivery.StateDelivered, 5*time.Second)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(reports)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 reports, got %d", n)
		case <-time.After(20 * time.Millisecond):
		}
	}
	engine.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if tokenErr != nil {
		t.Fatalf("callback verification: %v", tokenErr)
	}
	if reports[0].Outcome != queue.TemporaryFailure || reports[0].HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("first report = %+v", reports[0])
	}
	if reports[1].Outcome != queue.Success || string(reports[1].Body) != "ok" {
		t.Errorf("second report = %+v", reports[1])
	}
	if string(reports[1].SourceBody) != `{"id":"evt_1"}` || reports[1].SourceMessageID != delID.String() {
		t.Errorf("second report source = %+v", reports[1])
	}
}

func TestEngineGracefulShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler, nil)
	defer srv.Close()

	ctx := context.Background()

	for range 5 {
		publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{}`)})
	}

	engine.Start(ctx)

	// Give engine a moment to start processing.
	time.Sleep(200 * time.Millisecond)

	// Stop should wait for in-flight work.
	engine.Stop(ctx)

	pending, err := store.CountPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("pending after shutdown: %d", pending)
}

func TestQueueDelay(t *testing.T) {
	store := memory.New()
	delID := publish(t, store, queue.Message{URL: "https://example.com", Delay: time.Hour})

	got, err := store.GetDelivery(context.Background(), delID)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(got.NextAttemptAt) < 59*time.Minute {
		t.Fatalf("next attempt = %v", got.NextAttemptAt)
	}
	ready, err := store.Dequeue(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Fatalf("delayed delivery dequeued early")
	}
}

func TestEngineThrottlesPerHost(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := memory.New()
	engine := delivery.NewEngine(store, &stubDLQ{}, delivery.EngineConfig{
		Concurrency:    1,
		PollInterval:   20 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: time.Second,
		RateLimit:      1,
	}, nil)

	first := publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{"n":1}`)})
	second := publish(t, store, queue.Message{URL: srv.URL, Body: []byte(`{"n":2}`)})

	ctx := context.Background()
	engine.Start(ctx)
	defer engine.Stop(ctx)

	// One token per second: the second delivery waits for a refill and is
	// never charged an attempt for it.
	time.Sleep(300 * time.Millisecond)
	if delivered.Load() != 1 {
		t.Fatalf("expected 1 delivery within the first second, got %d", delivered.Load())
	}

	a := waitForState(t, store, first, delivery.StateDelivered, 3*time.Second)
	b := waitForState(t, store, second, delivery.StateDelivered, 3*time.Second)
	if a.AttemptCount != 1 || b.AttemptCount != 1 {
		t.Fatalf("attempts = %d, %d; want 1, 1", a.AttemptCount, b.AttemptCount)
	}
}
