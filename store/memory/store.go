// Package memory provides an in-memory Store implementation for unit testing
// and single-process deployments.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// compile-time interface checks.
var (
	_ store.Store      = (*Store)(nil)
	_ store.QueueStore = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store and store.QueueStore.
// Every read returns copies so callers can mutate results freely.
type Store struct {
	mu sync.RWMutex

	workspaces  map[string]*webhook.Workspace
	webhooks    map[string]*webhook.Webhook   // keyed by ID string
	payouts     map[string]*payout.Payout     // keyed by payout ID
	commissions map[string]*payout.Commission // keyed by commission ID
	eventLog    []*eventlog.Entry
	logSeq      int64
	deliveries  map[string]*delivery.Delivery // keyed by ID string
	locked      map[string]bool               // simulates SKIP LOCKED
	dlqEntries  map[string]*dlq.Entry         // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		workspaces:  make(map[string]*webhook.Workspace),
		webhooks:    make(map[string]*webhook.Webhook),
		payouts:     make(map[string]*payout.Payout),
		commissions: make(map[string]*payout.Commission),
		deliveries:  make(map[string]*delivery.Delivery),
		locked:      make(map[string]bool),
		dlqEntries:  make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

// GetWorkspace returns a workspace by ID.
func (s *Store) GetWorkspace(_ context.Context, workspaceID string) (*webhook.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, webhook.ErrWorkspaceNotFound
	}
	cp := *ws
	return &cp, nil
}

// SaveWorkspace creates or replaces a workspace.
func (s *Store) SaveWorkspace(_ context.Context, ws *webhook.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ws
	s.workspaces[ws.ID] = &cp
	return nil
}

// CreateWebhook persists a new webhook.
func (s *Store) CreateWebhook(_ context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks[w.ID.String()] = copyWebhook(w)
	return nil
}

// GetWebhook returns a webhook by ID.
func (s *Store) GetWebhook(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	return copyWebhook(w), nil
}

// UpdateWebhook modifies an existing webhook.
func (s *Store) UpdateWebhook(_ context.Context, w *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID.String()]; !ok {
		return webhook.ErrNotFound
	}
	s.webhooks[w.ID.String()] = copyWebhook(w)
	return nil
}

// DeleteWebhook removes a webhook.
func (s *Store) DeleteWebhook(_ context.Context, whID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[whID.String()]; !ok {
		return webhook.ErrNotFound
	}
	delete(s.webhooks, whID.String())
	return nil
}

// ListWebhooks returns the webhooks of a workspace ordered by creation time.
func (s *Store) ListWebhooks(_ context.Context, workspaceID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*webhook.Webhook, 0)
	for _, w := range s.webhooks {
		if w.WorkspaceID != workspaceID {
			continue
		}
		if opts.Enabled != nil && w.Enabled() != *opts.Enabled {
			continue
		}
		result = append(result, w)
	}
	sortWebhooks(result)

	result = applyPagination(result, opts.Offset, opts.Limit)
	return copyWebhooks(result), nil
}

// ListSubscribed returns the enabled webhooks of a workspace subscribed to t.
func (s *Store) ListSubscribed(_ context.Context, workspaceID string, t trigger.Trigger) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*webhook.Webhook, 0)
	for _, w := range s.webhooks {
		if w.WorkspaceID == workspaceID && w.Enabled() && w.Subscribed(t) {
			result = append(result, w)
		}
	}
	sortWebhooks(result)
	return copyWebhooks(result), nil
}

// SetDisabled sets or clears the disabled timestamp.
func (s *Store) SetDisabled(_ context.Context, whID id.ID, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return webhook.ErrNotFound
	}
	w.DisabledAt = copyTime(at)
	w.Touch()
	return nil
}

// RecordFailure increments the failure counter and returns the new count.
func (s *Store) RecordFailure(_ context.Context, whID id.ID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return 0, webhook.ErrNotFound
	}
	w.ConsecutiveFailures++
	w.LastFailedAt = &at
	return w.ConsecutiveFailures, nil
}

// ResetFailures clears the failure counter.
func (s *Store) ResetFailures(_ context.Context, whID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[whID.String()]
	if !ok {
		return webhook.ErrNotFound
	}
	w.ConsecutiveFailures = 0
	return nil
}

func copyWebhook(w *webhook.Webhook) *webhook.Webhook {
	cp := *w
	cp.Triggers = slices.Clone(w.Triggers)
	cp.DisabledAt = copyTime(w.DisabledAt)
	cp.LastFailedAt = copyTime(w.LastFailedAt)
	return &cp
}

func copyWebhooks(in []*webhook.Webhook) []*webhook.Webhook {
	out := make([]*webhook.Webhook, len(in))
	for i, w := range in {
		out[i] = copyWebhook(w)
	}
	return out
}

func sortWebhooks(ws []*webhook.Webhook) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].CreatedAt.Equal(ws[j].CreatedAt) {
			return ws[i].ID.String() < ws[j].ID.String()
		}
		return ws[i].CreatedAt.Before(ws[j].CreatedAt)
	})
}

// ──────────────────────────────────────────────────
// payout.Store
// ──────────────────────────────────────────────────

// SavePayout creates or replaces a payout.
func (s *Store) SavePayout(_ context.Context, p *payout.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.payouts[p.ID] = &cp
	return nil
}

// SaveCommission creates or replaces a commission.
func (s *Store) SaveCommission(_ context.Context, c *payout.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.commissions[c.ID] = &cp
	return nil
}

// GetPayout returns a payout by ID.
func (s *Store) GetPayout(_ context.Context, payoutID string) (*payout.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payouts[payoutID]
	if !ok {
		return nil, payout.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListCommissions returns the commissions settled by a payout.
func (s *Store) ListCommissions(_ context.Context, payoutID string) ([]*payout.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payout.Commission, 0)
	for _, c := range s.commissions {
		if c.PayoutID != nil && *c.PayoutID == payoutID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// FinalizePayout applies f under the store lock, which makes the payout
// and commission updates a single atomic step.
func (s *Store) FinalizePayout(_ context.Context, f payout.Finalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payouts[f.PayoutID]
	if !ok {
		return payout.ErrNotFound
	}
	if p.Status != payout.StatusProcessing || p.WebhookEventID != nil {
		return payout.ErrNotProcessing
	}

	eventID := f.EventID
	p.Status = f.Status
	p.WebhookEventID = &eventID
	p.PaidAt = copyTime(f.PaidAt)
	p.FailureReason = f.FailureReason
	p.Touch()

	if f.Status != payout.StatusCompleted {
		return nil
	}
	for _, c := range s.commissions {
		if c.PayoutID != nil && *c.PayoutID == f.PayoutID {
			c.Status = payout.CommissionPaid
			c.Touch()
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// eventlog.Store
// ──────────────────────────────────────────────────

// AppendEventLog records an entry and assigns its sequence ID.
func (s *Store) AppendEventLog(_ context.Context, e *eventlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logSeq++
	e.ID = s.logSeq
	cp := *e
	s.eventLog = append(s.eventLog, &cp)
	return nil
}

// ListEventLog returns the entries of a webhook newest first.
func (s *Store) ListEventLog(_ context.Context, whID id.ID, opts eventlog.ListOpts) ([]*eventlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*eventlog.Entry, 0)
	for i := len(s.eventLog) - 1; i >= 0; i-- {
		e := s.eventLog[i]
		if e.WebhookID.String() != whID.String() {
			continue
		}
		if opts.Outcome != "" && e.Outcome != opts.Outcome {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = copyDelivery(d)
	return nil
}

// copyDelivery returns a copy of the delivery that shares no mutable state.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	cp.Body = slices.Clone(d.Body)
	cp.Headers = maps.Clone(d.Headers)
	cp.CompletedAt = copyTime(d.CompletedAt)
	return &cp
}

// Dequeue fetches pending deliveries ready for attempt (concurrent-safe).
// Returned deliveries stay claimed until UpdateDelivery.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*delivery.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	candidates := make([]*delivery.Delivery, 0, len(s.deliveries))

	for _, d := range s.deliveries {
		if d.State != delivery.StatePending {
			continue
		}
		if d.NextAttemptAt.After(now) {
			continue
		}
		if s.locked[d.ID.String()] {
			continue
		}
		candidates = append(candidates, d)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Delivery, 0, len(candidates))
	for _, d := range candidates {
		s.locked[d.ID.String()] = true
		result = append(result, copyDelivery(d))
	}

	return result, nil
}

// UpdateDelivery modifies a delivery and releases its claim.
func (s *Store) UpdateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID.String()]; !ok {
		return delivery.ErrNotFound
	}
	d.Touch()
	s.deliveries[d.ID.String()] = copyDelivery(d)
	delete(s.locked, d.ID.String())
	return nil
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return copyDelivery(d), nil
}

// ListDeliveries returns deliveries newest first.
func (s *Store) ListDeliveries(_ context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if opts.State != nil && d.State != *opts.State {
			continue
		}
		result = append(result, d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	out := make([]*delivery.Delivery, len(result))
	for i, d := range result {
		out[i] = copyDelivery(d)
	}
	return out, nil
}

// CountPending returns the number of deliveries awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, d := range s.deliveries {
		if d.State == delivery.StatePending {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push moves a permanently failed delivery into the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = copyEntry(entry)
	return nil
}

// ListDLQ returns DLQ entries newest first, optionally filtered.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.URL != "" && e.URL != opts.URL {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	out := make([]*dlq.Entry, len(result))
	for i, e := range result {
		out[i] = copyEntry(e)
	}
	return out, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrNotFound
	}
	return copyEntry(e), nil
}

// MarkReplayed stamps ReplayedAt on an entry.
func (s *Store) MarkReplayed(_ context.Context, dlqID id.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return dlq.ErrNotFound
	}
	e.ReplayedAt = &at
	return nil
}

// Purge deletes DLQ entries that failed before a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

func copyEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	cp.Body = slices.Clone(e.Body)
	cp.Headers = maps.Clone(e.Headers)
	cp.ReplayedAt = copyTime(e.ReplayedAt)
	return &cp
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return items[:0]
	}
	if offset > 0 {
		items = items[offset:]
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
