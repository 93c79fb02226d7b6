package bunstore_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/store/bunstore"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

func newStore(t *testing.T) *bunstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:beacon-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	db, err := bunstore.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	s := bunstore.New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Migrations are idempotent.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	return s
}

func ptr[T any](v T) *T { return &v }

func newWebhook(ws string, at time.Time, triggers ...trigger.Trigger) *webhook.Webhook {
	return &webhook.Webhook{
		Entity:      entity.Entity{CreatedAt: at, UpdatedAt: at},
		ID:          id.NewWebhookID(),
		WorkspaceID: ws,
		Name:        "hook",
		URL:         "https://example.com/hook",
		Secret:      "whsec_test",
		Triggers:    triggers,
		Receiver:    receiver.Generic,
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := bunstore.Open("oracle", ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestWebhookRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	w := newWebhook("ws_1", time.Now().UTC().Truncate(time.Millisecond), trigger.SaleCreated, trigger.LeadCreated)
	w.InstallationID = ptr("inst_1")
	if err := s.CreateWebhook(ctx, w); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetWebhook(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Secret != w.Secret || got.URL != w.URL || !got.Managed() {
		t.Fatalf("unexpected webhook %+v", got)
	}
	if len(got.Triggers) != 2 || !got.Triggers.Contains(trigger.LeadCreated) {
		t.Fatalf("triggers = %v", got.Triggers)
	}

	got.Name = "renamed"
	if err := s.UpdateWebhook(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetWebhook(ctx, w.ID)
	if got.Name != "renamed" {
		t.Fatalf("name = %q", got.Name)
	}

	if err := s.DeleteWebhook(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetWebhook(ctx, w.ID); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateWebhook(ctx, w); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestListSubscribed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	first := newWebhook("ws_1", base, trigger.SaleCreated)
	second := newWebhook("ws_1", base.Add(time.Second), trigger.SaleCreated)
	other := newWebhook("ws_1", base, trigger.LinkCreated)
	foreign := newWebhook("ws_2", base, trigger.SaleCreated)
	off := newWebhook("ws_1", base, trigger.SaleCreated)
	for _, w := range []*webhook.Webhook{second, first, other, foreign, off} {
		if err := s.CreateWebhook(ctx, w); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetDisabled(ctx, off.ID, ptr(base)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListSubscribed(ctx, "ws_1", trigger.SaleCreated)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("expected first and second in order, got %d webhooks", len(got))
	}

	enabled := true
	list, _ := s.ListWebhooks(ctx, "ws_1", webhook.ListOpts{Enabled: &enabled})
	if len(list) != 3 {
		t.Fatalf("expected 3 enabled webhooks, got %d", len(list))
	}

	if err := s.SetDisabled(ctx, off.ID, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ListSubscribed(ctx, "ws_1", trigger.SaleCreated)
	if len(got) != 3 {
		t.Fatalf("expected 3 after re-enable, got %d", len(got))
	}
}

func TestFailureCounter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	w := newWebhook("ws_1", time.Now().UTC(), trigger.LinkCreated)
	_ = s.CreateWebhook(ctx, w)

	for want := 1; want <= 2; want++ {
		n, err := s.RecordFailure(ctx, w.ID, time.Now().UTC())
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("count = %d, want %d", n, want)
		}
	}
	if err := s.ResetFailures(ctx, w.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetWebhook(ctx, w.ID)
	if got.ConsecutiveFailures != 0 || got.LastFailedAt == nil {
		t.Fatalf("failures=%d lastFailedAt=%v", got.ConsecutiveFailures, got.LastFailedAt)
	}

	if _, err := s.RecordFailure(ctx, id.NewWebhookID(), time.Now()); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkspaceUpsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.GetWorkspace(ctx, "ws_1"); !errors.Is(err, webhook.ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	for _, enabled := range []bool{true, false} {
		if err := s.SaveWorkspace(ctx, &webhook.Workspace{ID: "ws_1", WebhookEnabled: enabled}); err != nil {
			t.Fatal(err)
		}
		ws, err := s.GetWorkspace(ctx, "ws_1")
		if err != nil {
			t.Fatal(err)
		}
		if ws.WebhookEnabled != enabled {
			t.Fatalf("enabled = %v, want %v", ws.WebhookEnabled, enabled)
		}
	}
}

func seedPayout(t *testing.T, s *bunstore.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.SavePayout(ctx, &payout.Payout{
		Entity:    entity.Entity{CreatedAt: now, UpdatedAt: now},
		ID:        "po_1",
		PartnerID: "pn_1",
		Amount:    19800,
		Currency:  "usd",
		Status:    payout.StatusProcessing,
		Mode:      payout.ModeExternal,
	}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*payout.Commission{
		{ID: "cm_1", PayoutID: ptr("po_1"), PartnerID: "pn_1", Currency: "usd", Status: payout.CommissionProcessed},
		{ID: "cm_2", PayoutID: ptr("po_1"), PartnerID: "pn_1", Currency: "usd", Status: payout.CommissionProcessed},
		{ID: "cm_3", PartnerID: "pn_1", Currency: "usd", Status: payout.CommissionPending},
	} {
		c.Entity = entity.Entity{CreatedAt: now, UpdatedAt: now}
		if err := s.SaveCommission(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFinalizePayout(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedPayout(t, s)

	paidAt := time.Now().UTC()
	if err := s.FinalizePayout(ctx, payout.Finalization{
		PayoutID: "po_1",
		EventID:  "evt_1",
		Status:   payout.StatusCompleted,
		PaidAt:   &paidAt,
	}); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPayout(ctx, "po_1")
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != payout.StatusCompleted || p.PaidAt == nil || p.WebhookEventID == nil || *p.WebhookEventID != "evt_1" {
		t.Fatalf("unexpected payout %+v", p)
	}
	commissions, _ := s.ListCommissions(ctx, "po_1")
	if len(commissions) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(commissions))
	}
	for _, c := range commissions {
		if c.Status != payout.CommissionPaid {
			t.Fatalf("commission %s = %s", c.ID, c.Status)
		}
	}

	err = s.FinalizePayout(ctx, payout.Finalization{PayoutID: "po_1", EventID: "evt_1", Status: payout.StatusCompleted})
	if !errors.Is(err, payout.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
	err = s.FinalizePayout(ctx, payout.Finalization{PayoutID: "po_missing", EventID: "evt_1", Status: payout.StatusFailed})
	if !errors.Is(err, payout.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalizePayoutFailed(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedPayout(t, s)

	if err := s.FinalizePayout(ctx, payout.Finalization{
		PayoutID:      "po_1",
		EventID:       "evt_1",
		Status:        payout.StatusFailed,
		FailureReason: ptr("receiver rejected"),
	}); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetPayout(ctx, "po_1")
	if p.Status != payout.StatusFailed || p.FailureReason == nil || *p.FailureReason != "receiver rejected" {
		t.Fatalf("unexpected payout %+v", p)
	}
	commissions, _ := s.ListCommissions(ctx, "po_1")
	for _, c := range commissions {
		if c.Status != payout.CommissionProcessed {
			t.Fatalf("commission %s changed to %s", c.ID, c.Status)
		}
	}
}

func TestEventLog(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	whID := id.NewWebhookID()

	for i, o := range []queue.Outcome{queue.TemporaryFailure, queue.Success} {
		e := &eventlog.Entry{
			EventID:   fmt.Sprintf("evt_%d", i),
			WebhookID: whID,
			Event:     trigger.LinkCreated,
			URL:       "https://example.com",
			Outcome:   o,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendEventLog(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.ID == 0 {
			t.Fatal("expected an assigned id")
		}
	}

	got, err := s.ListEventLog(ctx, whID, eventlog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Outcome != queue.Success {
		t.Fatalf("expected newest first, got %d entries", len(got))
	}

	got, _ = s.ListEventLog(ctx, whID, eventlog.ListOpts{Outcome: queue.TemporaryFailure})
	if len(got) != 1 || got[0].EventID != "evt_0" {
		t.Fatal("expected outcome filter to match one entry")
	}
}
