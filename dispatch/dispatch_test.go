package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/beacon/catalog"
	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/queue/queuetest"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/store/memory"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

const callbackURL = "https://app.example.com/api/webhooks/callback"

type harness struct {
	store      *memory.Store
	hooks      *webhook.Service
	recorder   *queuetest.Recorder
	dispatcher *dispatch.Dispatcher
}

func newHarness(t *testing.T, mutate func(*dispatch.Config)) *harness {
	t.Helper()
	s := memory.New()
	rec := queuetest.New()
	cfg := dispatch.Config{CallbackURL: callbackURL}
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := dispatch.New(
		webhook.NewResolver(s),
		envelope.NewBuilder(catalog.New(), nil),
		receiver.NewTransformer("https://app.example.com"),
		rec, cfg, nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{
		store:      s,
		hooks:      webhook.NewService(s, 0, nil),
		recorder:   rec,
		dispatcher: d,
	}
}

func (h *harness) create(t *testing.T, ws, rawURL string, triggers ...string) *webhook.Webhook {
	t.Helper()
	w, err := h.hooks.Create(context.Background(), webhook.Input{
		WorkspaceID: ws, Name: "hook", URL: rawURL, Triggers: triggers,
	})
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func sample(t *testing.T, tr trigger.Trigger) any {
	t.Helper()
	v, err := catalog.Sample(tr)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestNewRequiresCallbackURL(t *testing.T) {
	_, err := dispatch.New(nil, nil, nil, nil, dispatch.Config{}, nil)
	if !errors.Is(err, dispatch.ErrNoCallbackURL) {
		t.Fatalf("expected ErrNoCallbackURL, got %v", err)
	}
	_, err = dispatch.New(nil, nil, nil, nil, dispatch.Config{CallbackURL: "/relative"}, nil)
	if err == nil {
		t.Fatal("expected error for relative callback URL")
	}
}

func TestDispatchGenericAndChat(t *testing.T) {
	h := newHarness(t, nil)
	generic := h.create(t, "ws_1", "https://example.com/hooks", "sale.created")
	chat := h.create(t, "ws_1", "https://hooks.slack.com/services/T0/B0/X", "sale.created")

	results, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.SaleCreated, sample(t, trigger.SaleCreated))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil || r.MessageID == "" {
			t.Fatalf("result %s: id=%q err=%v", r.WebhookID, r.MessageID, r.Err)
		}
	}

	genericMsgs := h.recorder.ByURL(generic.URL)
	if len(genericMsgs) != 1 {
		t.Fatalf("generic got %d messages", len(genericMsgs))
	}
	env, err := envelope.Parse(genericMsgs[0].Body)
	if err != nil {
		t.Fatalf("generic body is not an envelope: %v", err)
	}
	if env.Event() != trigger.SaleCreated {
		t.Fatalf("event = %s", env.Event())
	}
	if !signature.Verify(generic.Secret, genericMsgs[0].Body, genericMsgs[0].Headers[signature.Header]) {
		t.Fatal("generic signature does not verify")
	}

	chatMsgs := h.recorder.ByURL(chat.URL)
	if len(chatMsgs) != 1 {
		t.Fatalf("chat got %d messages", len(chatMsgs))
	}
	var msg struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(chatMsgs[0].Body, &msg); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg.Text, "New sale created") {
		t.Fatalf("chat text = %q", msg.Text)
	}
	// The signature covers the transformed bytes.
	if !signature.Verify(chat.Secret, chatMsgs[0].Body, chatMsgs[0].Headers[signature.Header]) {
		t.Fatal("chat signature does not verify over transformed body")
	}
}

func TestDispatchSubscriptionCorrectness(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	want := h.create(t, "ws_1", "https://a.example.com", "link.created")
	h.create(t, "ws_1", "https://b.example.com", "link.deleted")
	h.create(t, "ws_2", "https://c.example.com", "link.created")
	off := h.create(t, "ws_1", "https://d.example.com", "link.created")
	if err := h.hooks.Disable(ctx, off.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := h.dispatcher.Dispatch(ctx, "ws_1", trigger.LinkCreated, sample(t, trigger.LinkCreated)); err != nil {
		t.Fatal(err)
	}
	msgs := h.recorder.Messages()
	if len(msgs) != 1 || msgs[0].URL != want.URL {
		t.Fatalf("expected exactly one message to %s, got %d", want.URL, len(msgs))
	}
}

func TestDispatchWorkspaceDisabled(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.create(t, "ws_1", "https://a.example.com", "link.created")
	if err := h.hooks.SetWorkspace(ctx, &webhook.Workspace{ID: "ws_1"}); err != nil {
		t.Fatal(err)
	}

	results, err := h.dispatcher.Dispatch(ctx, "ws_1", trigger.LinkCreated, sample(t, trigger.LinkCreated))
	if err != nil {
		t.Fatal(err)
	}
	if results != nil || h.recorder.Len() != 0 {
		t.Fatalf("expected no enqueue, got %d", h.recorder.Len())
	}
}

func TestDispatchDistinctEnvelopeIDs(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.create(t, "ws_1", "https://a.example.com", "link.created")
	data := sample(t, trigger.LinkCreated)

	for i := 0; i < 2; i++ {
		if _, err := h.dispatcher.Dispatch(ctx, "ws_1", trigger.LinkCreated, data); err != nil {
			t.Fatal(err)
		}
	}
	msgs := h.recorder.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	a, _ := envelope.Parse(msgs[0].Body)
	b, _ := envelope.Parse(msgs[1].Body)
	if a.ID() == b.ID() {
		t.Fatal("expected distinct envelope ids")
	}
}

func TestDispatchBranchFailureIsolated(t *testing.T) {
	h := newHarness(t, nil)
	ok := h.create(t, "ws_1", "https://ok.example.com", "link.created")
	bad := h.create(t, "ws_1", "https://bad.example.com", "link.created")
	h.recorder.Fail = func(m queue.Message) error {
		if m.URL == bad.URL {
			return queue.ErrPublish
		}
		return nil
	}

	results, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.LinkCreated, sample(t, trigger.LinkCreated))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		switch r.WebhookID {
		case ok.ID:
			if r.Err != nil {
				t.Fatalf("healthy branch failed: %v", r.Err)
			}
		case bad.ID:
			if !errors.Is(r.Err, queue.ErrPublish) {
				t.Fatalf("expected ErrPublish, got %v", r.Err)
			}
		}
	}
	if len(h.recorder.ByURL(ok.URL)) != 1 {
		t.Fatal("healthy webhook did not receive its message")
	}
}

func TestDispatchUnsupportedReceiverFailsOnlyThatBranch(t *testing.T) {
	h := newHarness(t, nil)
	segment := h.create(t, "ws_1", "https://api.segment.io/v1/track", "link.created")
	generic := h.create(t, "ws_1", "https://example.com", "link.created")

	results, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.LinkCreated, sample(t, trigger.LinkCreated))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.WebhookID == segment.ID && !errors.Is(r.Err, receiver.ErrUnsupportedTrigger) {
			t.Fatalf("expected ErrUnsupportedTrigger, got %v", r.Err)
		}
		if r.WebhookID == generic.ID && r.Err != nil {
			t.Fatalf("generic branch failed: %v", r.Err)
		}
	}
}

func TestDispatchCustomerDataAuthorization(t *testing.T) {
	h := newHarness(t, nil)
	w := h.create(t, "ws_1", "https://api.segment.io/v1/track", "lead.created")

	if _, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.LeadCreated, sample(t, trigger.LeadCreated)); err != nil {
		t.Fatal(err)
	}
	msgs := h.recorder.ByURL(w.URL)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want, _ := signature.ForwardedAuthorization(w.Secret)
	if got := msgs[0].Headers["Authorization"]; got != want {
		t.Fatalf("Authorization = %q, want %q", got, want)
	}
}

func TestDispatchCallbackURLAndDelay(t *testing.T) {
	h := newHarness(t, func(c *dispatch.Config) { c.TestDelay = 5 * time.Second })
	w := h.create(t, "ws_1", "https://a.example.com", "bounty.created")

	if _, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.BountyCreated, sample(t, trigger.BountyCreated)); err != nil {
		t.Fatal(err)
	}
	msg := h.recorder.Messages()[0]
	if msg.Delay != 5*time.Second {
		t.Fatalf("delay = %v", msg.Delay)
	}

	u, err := url.Parse(msg.CallbackURL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg.CallbackURL, callbackURL+"?") {
		t.Fatalf("callback = %q", msg.CallbackURL)
	}
	env, _ := envelope.Parse(msg.Body)
	q := u.Query()
	if q.Get(dispatch.ParamWebhookID) != w.ID.String() ||
		q.Get(dispatch.ParamEventID) != env.ID().String() ||
		q.Get(dispatch.ParamEvent) != "bounty.created" {
		t.Fatalf("callback query = %v", q)
	}
}

func TestDispatchInvalidPayload(t *testing.T) {
	h := newHarness(t, nil)
	h.create(t, "ws_1", "https://a.example.com", "link.created")

	_, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.LinkCreated, map[string]any{"id": 42})
	if err == nil {
		t.Fatal("expected a build error")
	}
	if h.recorder.Len() != 0 {
		t.Fatal("expected no enqueue after a build error")
	}
}

type denyAll struct{ calls atomic.Int32 }

func (d *denyAll) Allow(context.Context, string, trigger.Trigger) bool {
	d.calls.Add(1)
	return false
}

func TestDispatchScreened(t *testing.T) {
	screener := &denyAll{}
	h := newHarness(t, func(c *dispatch.Config) { c.Screener = screener })
	h.create(t, "ws_1", "https://a.example.com", "link.clicked")

	results, err := h.dispatcher.Dispatch(context.Background(), "ws_1", trigger.LinkClicked, sample(t, trigger.LinkClicked))
	if err != nil || results != nil {
		t.Fatalf("results=%v err=%v", results, err)
	}
	if screener.calls.Load() != 1 || h.recorder.Len() != 0 {
		t.Fatal("expected screened dispatch to enqueue nothing")
	}
}

func TestDispatchToIgnoresSubscriptions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	w := h.create(t, "ws_1", "https://a.example.com", "link.created")
	if err := h.hooks.Disable(ctx, w.ID); err != nil {
		t.Fatal(err)
	}

	res, err := h.dispatcher.DispatchTo(ctx, w, trigger.PayoutConfirmed, sample(t, trigger.PayoutConfirmed))
	if err != nil {
		t.Fatal(err)
	}
	if res.MessageID == "" || h.recorder.Len() != 1 {
		t.Fatal("expected the test event to be enqueued")
	}
}

func TestDispatchToEmptySecret(t *testing.T) {
	h := newHarness(t, nil)
	w := h.create(t, "ws_1", "https://a.example.com", "link.created")
	w.Secret = ""

	_, err := h.dispatcher.DispatchTo(context.Background(), w, trigger.LinkCreated, sample(t, trigger.LinkCreated))
	if !errors.Is(err, signature.ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if h.recorder.Len() != 0 {
		t.Fatal("expected nothing enqueued without a secret")
	}
}

func TestGoRunsDetached(t *testing.T) {
	h := newHarness(t, nil)
	h.create(t, "ws_1", "https://a.example.com", "commission.created")

	ctx, cancel := context.WithCancel(context.Background())
	h.dispatcher.Go(ctx, "ws_1", trigger.CommissionCreated, sample(t, trigger.CommissionCreated))
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := h.dispatcher.Wait(waitCtx); err != nil {
		t.Fatal(err)
	}
	if h.recorder.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", h.recorder.Len())
	}
}
