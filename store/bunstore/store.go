// Package bunstore implements store.Store on the Bun ORM for SQLite and
// PostgreSQL.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables using Bun's CreateTable.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*workspaceModel)(nil),
		(*webhookModel)(nil),
		(*payoutModel)(nil),
		(*commissionModel)(nil),
		(*eventLogModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("bunstore: migrate: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_beacon_webhooks_workspace ON beacon_webhooks (workspace_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_beacon_commissions_payout ON beacon_commissions (payout_id)",
		"CREATE INDEX IF NOT EXISTS idx_beacon_event_log_webhook ON beacon_event_log (webhook_id, id)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("bunstore: migrate: %w", err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Webhook Store ====================

func (s *Store) GetWorkspace(ctx context.Context, workspaceID string) (*webhook.Workspace, error) {
	m := new(workspaceModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", workspaceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, webhook.ErrWorkspaceNotFound
		}
		return nil, err
	}
	return &webhook.Workspace{ID: m.ID, WebhookEnabled: m.WebhookEnabled}, nil
}

func (s *Store) SaveWorkspace(ctx context.Context, ws *webhook.Workspace) error {
	m := &workspaceModel{ID: ws.ID, WebhookEnabled: ws.WebhookEnabled}
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("webhook_enabled = EXCLUDED.webhook_enabled").
		Exec(ctx)
	return err
}

func (s *Store) CreateWebhook(ctx context.Context, w *webhook.Webhook) error {
	m, err := toWebhookModel(w)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	m := new(webhookModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", whID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, webhook.ErrNotFound
		}
		return nil, err
	}
	return fromWebhookModel(m)
}

func (s *Store) UpdateWebhook(ctx context.Context, w *webhook.Webhook) error {
	m, err := toWebhookModel(w)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, webhook.ErrNotFound)
}

func (s *Store) DeleteWebhook(ctx context.Context, whID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*webhookModel)(nil)).
		Where("id = ?", whID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, webhook.ErrNotFound)
}

func (s *Store) ListWebhooks(ctx context.Context, workspaceID string, opts webhook.ListOpts) ([]*webhook.Webhook, error) {
	var models []webhookModel
	q := s.db.NewSelect().Model(&models).Where("workspace_id = ?", workspaceID)

	if opts.Enabled != nil {
		if *opts.Enabled {
			q = q.Where("disabled_at IS NULL")
		} else {
			q = q.Where("disabled_at IS NOT NULL")
		}
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC", "id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromWebhookModels(models, nil)
}

func (s *Store) ListSubscribed(ctx context.Context, workspaceID string, t trigger.Trigger) ([]*webhook.Webhook, error) {
	var models []webhookModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("workspace_id = ?", workspaceID).
		Where("disabled_at IS NULL").
		Order("created_at ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}
	return fromWebhookModels(models, func(w *webhook.Webhook) bool { return w.Subscribed(t) })
}

func (s *Store) SetDisabled(ctx context.Context, whID id.ID, at *time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*webhookModel)(nil)).
		Set("disabled_at = ?", at).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", whID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, webhook.ErrNotFound)
}

func (s *Store) RecordFailure(ctx context.Context, whID id.ID, at time.Time) (int, error) {
	var count int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*webhookModel)(nil)).
			Set("consecutive_failures = consecutive_failures + 1").
			Set("last_failed_at = ?", at).
			Where("id = ?", whID.String()).
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := expectRow(res, webhook.ErrNotFound); err != nil {
			return err
		}
		return tx.NewSelect().
			Model((*webhookModel)(nil)).
			Column("consecutive_failures").
			Where("id = ?", whID.String()).
			Scan(ctx, &count)
	})
	return count, err
}

func (s *Store) ResetFailures(ctx context.Context, whID id.ID) error {
	res, err := s.db.NewUpdate().
		Model((*webhookModel)(nil)).
		Set("consecutive_failures = 0").
		Where("id = ?", whID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRow(res, webhook.ErrNotFound)
}

func fromWebhookModels(models []webhookModel, keep func(*webhook.Webhook) bool) ([]*webhook.Webhook, error) {
	result := make([]*webhook.Webhook, 0, len(models))
	for i := range models {
		w, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(w) {
			result = append(result, w)
		}
	}
	return result, nil
}

// ==================== Payout Store ====================

// SavePayout creates or replaces a payout.
func (s *Store) SavePayout(ctx context.Context, p *payout.Payout) error {
	m := toPayoutModel(p)
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("mode = EXCLUDED.mode").
		Set("amount = EXCLUDED.amount").
		Set("currency = EXCLUDED.currency").
		Set("invoice_id = EXCLUDED.invoice_id").
		Set("webhook_event_id = EXCLUDED.webhook_event_id").
		Set("paid_at = EXCLUDED.paid_at").
		Set("failure_reason = EXCLUDED.failure_reason").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// SaveCommission creates or replaces a commission.
func (s *Store) SaveCommission(ctx context.Context, c *payout.Commission) error {
	m := toCommissionModel(c)
	_, err := s.db.NewInsert().
		Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("payout_id = EXCLUDED.payout_id").
		Set("status = EXCLUDED.status").
		Set("amount = EXCLUDED.amount").
		Set("earnings = EXCLUDED.earnings").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetPayout(ctx context.Context, payoutID string) (*payout.Payout, error) {
	return getPayout(ctx, s.db, payoutID)
}

func getPayout(ctx context.Context, db bun.IDB, payoutID string) (*payout.Payout, error) {
	m := new(payoutModel)
	err := db.NewSelect().
		Model(m).
		Where("id = ?", payoutID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, err
	}
	return fromPayoutModel(m), nil
}

func (s *Store) ListCommissions(ctx context.Context, payoutID string) ([]*payout.Commission, error) {
	var models []commissionModel
	if err := s.db.NewSelect().
		Model(&models).
		Where("payout_id = ?", payoutID).
		Order("id ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*payout.Commission, len(models))
	for i := range models {
		result[i] = fromCommissionModel(&models[i])
	}
	return result, nil
}

// FinalizePayout updates the payout and its commissions in one
// transaction. The status and event id conditions are re-checked in the
// UPDATE itself so concurrent callbacks cannot both win.
func (s *Store) FinalizePayout(ctx context.Context, f payout.Finalization) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*payoutModel)(nil)).
			Set("status = ?", string(f.Status)).
			Set("webhook_event_id = ?", f.EventID).
			Set("paid_at = ?", f.PaidAt).
			Set("failure_reason = ?", f.FailureReason).
			Set("updated_at = ?", now).
			Where("id = ?", f.PayoutID).
			Where("status = ?", string(payout.StatusProcessing)).
			Where("webhook_event_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, err := res.RowsAffected(); err != nil {
			return err
		} else if rows == 0 {
			if _, err := getPayout(ctx, tx, f.PayoutID); err != nil {
				return err
			}
			return payout.ErrNotProcessing
		}

		if f.Status != payout.StatusCompleted {
			return nil
		}
		_, err = tx.NewUpdate().
			Model((*commissionModel)(nil)).
			Set("status = ?", string(payout.CommissionPaid)).
			Set("updated_at = ?", now).
			Where("payout_id = ?", f.PayoutID).
			Exec(ctx)
		return err
	})
}

// ==================== Event Log Store ====================

func (s *Store) AppendEventLog(ctx context.Context, e *eventlog.Entry) error {
	m := toEventLogModel(e)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return err
	}
	e.ID = m.ID
	return nil
}

func (s *Store) ListEventLog(ctx context.Context, whID id.ID, opts eventlog.ListOpts) ([]*eventlog.Entry, error) {
	var models []eventLogModel
	q := s.db.NewSelect().Model(&models).Where("webhook_id = ?", whID.String())

	if opts.Outcome != "" {
		q = q.Where("outcome = ?", string(opts.Outcome))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*eventlog.Entry, len(models))
	for i := range models {
		e, err := fromEventLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Helpers ====================

func expectRow(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
