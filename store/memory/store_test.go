package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

func ctx() context.Context { return context.Background() }

func ptr[T any](v T) *T { return &v }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, store.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

func newWebhook(ws string, createdAt time.Time, triggers ...trigger.Trigger) *webhook.Webhook {
	return &webhook.Webhook{
		Entity:      entity.Entity{CreatedAt: createdAt, UpdatedAt: createdAt},
		ID:          id.NewWebhookID(),
		WorkspaceID: ws,
		URL:         "https://example.com/hook",
		Secret:      "whsec_test",
		Triggers:    triggers,
	}
}

func TestWebhookCRUD(t *testing.T) {
	s := New()
	w := newWebhook("ws_1", time.Now().UTC(), trigger.LinkCreated)

	if err := s.CreateWebhook(ctx(), w); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetWebhook(ctx(), w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Secret != "whsec_test" {
		t.Fatalf("secret = %q", got.Secret)
	}

	// Mutating a returned copy must not leak into the store.
	got.Triggers[0] = trigger.LinkDeleted
	got, _ = s.GetWebhook(ctx(), w.ID)
	if got.Triggers[0] != trigger.LinkCreated {
		t.Fatalf("stored triggers mutated: %v", got.Triggers)
	}

	got.Name = "renamed"
	if err := s.UpdateWebhook(ctx(), got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetWebhook(ctx(), w.ID)
	if got.Name != "renamed" {
		t.Fatalf("name = %q", got.Name)
	}

	if err := s.DeleteWebhook(ctx(), w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetWebhook(ctx(), w.ID); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteWebhook(ctx(), w.ID); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListSubscribed(t *testing.T) {
	s := New()
	base := time.Now().UTC()

	second := newWebhook("ws_1", base.Add(time.Second), trigger.SaleCreated)
	first := newWebhook("ws_1", base, trigger.SaleCreated, trigger.LeadCreated)
	other := newWebhook("ws_1", base, trigger.LeadCreated)
	foreign := newWebhook("ws_2", base, trigger.SaleCreated)
	disabled := newWebhook("ws_1", base, trigger.SaleCreated)
	disabled.DisabledAt = ptr(base)

	for _, w := range []*webhook.Webhook{second, first, other, foreign, disabled} {
		if err := s.CreateWebhook(ctx(), w); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListSubscribed(ctx(), "ws_1", trigger.SaleCreated)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 webhooks, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatal("expected creation order")
	}

	enabled := false
	list, err := s.ListWebhooks(ctx(), "ws_1", webhook.ListOpts{Enabled: &enabled})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != disabled.ID {
		t.Fatalf("expected only the disabled webhook, got %d", len(list))
	}
}

func TestFailureCounter(t *testing.T) {
	s := New()
	w := newWebhook("ws_1", time.Now().UTC(), trigger.LinkCreated)
	_ = s.CreateWebhook(ctx(), w)

	now := time.Now().UTC()
	for want := 1; want <= 3; want++ {
		n, err := s.RecordFailure(ctx(), w.ID, now)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("count = %d, want %d", n, want)
		}
	}

	if err := s.ResetFailures(ctx(), w.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetWebhook(ctx(), w.ID)
	if got.ConsecutiveFailures != 0 || got.LastFailedAt == nil {
		t.Fatalf("unexpected counters: %d %v", got.ConsecutiveFailures, got.LastFailedAt)
	}

	if _, err := s.RecordFailure(ctx(), id.NewWebhookID(), now); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspace(t *testing.T) {
	s := New()

	if _, err := s.GetWorkspace(ctx(), "ws_1"); !errors.Is(err, webhook.ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	if err := s.SaveWorkspace(ctx(), &webhook.Workspace{ID: "ws_1", WebhookEnabled: true}); err != nil {
		t.Fatal(err)
	}
	ws, err := s.GetWorkspace(ctx(), "ws_1")
	if err != nil {
		t.Fatal(err)
	}
	if !ws.WebhookEnabled {
		t.Fatal("expected webhooks enabled")
	}
}

// ──────────────────────────────────────────────────
// payout.Store
// ──────────────────────────────────────────────────

func seedPayout(t *testing.T, s *Store) {
	t.Helper()
	_ = s.SavePayout(ctx(), &payout.Payout{
		ID:       "po_1",
		Amount:   9900,
		Currency: "usd",
		Status:   payout.StatusProcessing,
		Mode:     payout.ModeExternal,
	})
	for _, cid := range []string{"cm_1", "cm_2"} {
		_ = s.SaveCommission(ctx(), &payout.Commission{
			ID:       cid,
			PayoutID: ptr("po_1"),
			Status:   payout.CommissionProcessed,
		})
	}
	_ = s.SaveCommission(ctx(), &payout.Commission{ID: "cm_3", Status: payout.CommissionPending})
}

func TestFinalizePayoutCompleted(t *testing.T) {
	s := New()
	seedPayout(t, s)

	paidAt := time.Now().UTC()
	err := s.FinalizePayout(ctx(), payout.Finalization{
		PayoutID: "po_1",
		EventID:  "evt_1",
		Status:   payout.StatusCompleted,
		PaidAt:   &paidAt,
	})
	if err != nil {
		t.Fatal(err)
	}

	p, _ := s.GetPayout(ctx(), "po_1")
	if p.Status != payout.StatusCompleted || p.PaidAt == nil {
		t.Fatalf("unexpected payout: %+v", p)
	}
	if p.WebhookEventID == nil || *p.WebhookEventID != "evt_1" {
		t.Fatal("expected webhook event id stamped")
	}

	commissions, _ := s.ListCommissions(ctx(), "po_1")
	if len(commissions) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(commissions))
	}
	for _, c := range commissions {
		if c.Status != payout.CommissionPaid {
			t.Fatalf("commission %s status = %s", c.ID, c.Status)
		}
	}
	if s.commissions["cm_3"].Status != payout.CommissionPending {
		t.Fatal("unrelated commission changed")
	}

	err = s.FinalizePayout(ctx(), payout.Finalization{PayoutID: "po_1", EventID: "evt_1", Status: payout.StatusCompleted})
	if !errors.Is(err, payout.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
}

func TestFinalizePayoutFailedKeepsCommissions(t *testing.T) {
	s := New()
	seedPayout(t, s)

	err := s.FinalizePayout(ctx(), payout.Finalization{
		PayoutID:      "po_1",
		EventID:       "evt_1",
		Status:        payout.StatusFailed,
		FailureReason: ptr("boom"),
	})
	if err != nil {
		t.Fatal(err)
	}

	p, _ := s.GetPayout(ctx(), "po_1")
	if p.Status != payout.StatusFailed || p.FailureReason == nil {
		t.Fatalf("unexpected payout: %+v", p)
	}
	commissions, _ := s.ListCommissions(ctx(), "po_1")
	for _, c := range commissions {
		if c.Status != payout.CommissionProcessed {
			t.Fatalf("commission %s status = %s", c.ID, c.Status)
		}
	}

	if _, err := s.GetPayout(ctx(), "po_missing"); !errors.Is(err, payout.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// eventlog.Store
// ──────────────────────────────────────────────────

func TestEventLogNewestFirst(t *testing.T) {
	s := New()
	whID := id.NewWebhookID()

	for _, o := range []queue.Outcome{queue.TemporaryFailure, queue.Success} {
		if err := s.AppendEventLog(ctx(), &eventlog.Entry{WebhookID: whID, Outcome: o}); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.AppendEventLog(ctx(), &eventlog.Entry{WebhookID: id.NewWebhookID(), Outcome: queue.Failure})

	got, err := s.ListEventLog(ctx(), whID, eventlog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Outcome != queue.Success || got[0].ID <= got[1].ID {
		t.Fatal("expected newest first")
	}

	got, _ = s.ListEventLog(ctx(), whID, eventlog.ListOpts{Outcome: queue.TemporaryFailure})
	if len(got) != 1 {
		t.Fatalf("expected 1 filtered entry, got %d", len(got))
	}
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

func newDelivery(next time.Time) *delivery.Delivery {
	return &delivery.Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		URL:           "https://example.com/hook",
		Body:          []byte(`{}`),
		State:         delivery.StatePending,
		MaxAttempts:   3,
		NextAttemptAt: next,
	}
}

func TestDequeueClaims(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	ready := newDelivery(now.Add(-time.Second))
	future := newDelivery(now.Add(time.Hour))
	_ = s.Enqueue(ctx(), ready)
	_ = s.Enqueue(ctx(), future)

	got, err := s.Dequeue(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != ready.ID {
		t.Fatalf("expected the ready delivery, got %d", len(got))
	}

	// Claimed deliveries are not handed out twice.
	again, _ := s.Dequeue(ctx(), 10)
	if len(again) != 0 {
		t.Fatalf("expected claimed delivery to be skipped, got %d", len(again))
	}

	got[0].NextAttemptAt = now.Add(-time.Second)
	got[0].AttemptCount = 1
	if err := s.UpdateDelivery(ctx(), got[0]); err != nil {
		t.Fatal(err)
	}
	again, _ = s.Dequeue(ctx(), 10)
	if len(again) != 1 || again[0].AttemptCount != 1 {
		t.Fatal("expected the delivery to be released by UpdateDelivery")
	}

	pending, _ := s.CountPending(ctx())
	if pending != 2 {
		t.Fatalf("pending = %d", pending)
	}

	if err := s.UpdateDelivery(ctx(), newDelivery(now)); !errors.Is(err, delivery.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDeliveriesByState(t *testing.T) {
	s := New()
	d := newDelivery(time.Now())
	d.State = delivery.StateDelivered
	_ = s.Enqueue(ctx(), d)
	_ = s.Enqueue(ctx(), newDelivery(time.Now()))

	state := delivery.StateDelivered
	got, err := s.ListDeliveries(ctx(), delivery.ListOpts{State: &state})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != d.ID {
		t.Fatalf("expected 1 delivered, got %d", len(got))
	}

	got, _ = s.ListDeliveries(ctx(), delivery.ListOpts{Offset: 5})
	if len(got) != 0 {
		t.Fatalf("expected empty page, got %d", len(got))
	}
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

func TestDLQ(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	old := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), URL: "https://a.example", FailedAt: now.Add(-48 * time.Hour)}
	recent := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), URL: "https://b.example", FailedAt: now}
	_ = s.Push(ctx(), old)
	_ = s.Push(ctx(), recent)

	list, err := s.ListDLQ(ctx(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != recent.ID {
		t.Fatal("expected newest first")
	}

	list, _ = s.ListDLQ(ctx(), dlq.ListOpts{URL: "https://a.example"})
	if len(list) != 1 || list[0].ID != old.ID {
		t.Fatal("expected URL filter to match one entry")
	}

	if err := s.MarkReplayed(ctx(), old.ID, now); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetDLQ(ctx(), old.ID)
	if got.ReplayedAt == nil {
		t.Fatal("expected ReplayedAt set")
	}

	n, err := s.Purge(ctx(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if count, _ := s.CountDLQ(ctx()); count != 1 {
		t.Fatalf("count = %d", count)
	}
	if _, err := s.GetDLQ(ctx(), old.ID); !errors.Is(err, dlq.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
