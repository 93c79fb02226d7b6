package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// --- Workspace models ---

type workspaceModel struct {
	bun.BaseModel `bun:"table:beacon_workspaces,alias:bws"`

	ID             string `bun:"id,pk"`
	WebhookEnabled bool   `bun:"webhook_enabled,notnull,default:false"`
}

// --- Webhook models ---

type webhookModel struct {
	bun.BaseModel `bun:"table:beacon_webhooks,alias:bwh"`

	ID                  string     `bun:"id,pk"`
	WorkspaceID         string     `bun:"workspace_id,notnull"`
	Name                string     `bun:"name,notnull"`
	URL                 string     `bun:"url,notnull"`
	Secret              string     `bun:"secret,notnull"`
	Triggers            string     `bun:"triggers,notnull"` // JSON array
	Receiver            string     `bun:"receiver,notnull"`
	DisabledAt          *time.Time `bun:"disabled_at,nullzero"`
	InstallationID      *string    `bun:"installation_id"`
	ConsecutiveFailures int        `bun:"consecutive_failures,notnull,default:0"`
	LastFailedAt        *time.Time `bun:"last_failed_at,nullzero"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toWebhookModel(w *webhook.Webhook) (*webhookModel, error) {
	triggers, err := json.Marshal(w.Triggers)
	if err != nil {
		return nil, fmt.Errorf("encode triggers: %w", err)
	}
	return &webhookModel{
		ID:                  w.ID.String(),
		WorkspaceID:         w.WorkspaceID,
		Name:                w.Name,
		URL:                 w.URL,
		Secret:              w.Secret,
		Triggers:            string(triggers),
		Receiver:            string(w.Receiver),
		DisabledAt:          w.DisabledAt,
		InstallationID:      w.InstallationID,
		ConsecutiveFailures: w.ConsecutiveFailures,
		LastFailedAt:        w.LastFailedAt,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}, nil
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.ID, err)
	}
	var triggers trigger.Set
	if m.Triggers != "" {
		if err := json.Unmarshal([]byte(m.Triggers), &triggers); err != nil {
			return nil, fmt.Errorf("decode triggers of %s: %w", m.ID, err)
		}
	}
	return &webhook.Webhook{
		Entity:              entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                  whID,
		WorkspaceID:         m.WorkspaceID,
		Name:                m.Name,
		URL:                 m.URL,
		Secret:              m.Secret,
		Triggers:            triggers,
		Receiver:            receiver.Kind(m.Receiver),
		DisabledAt:          m.DisabledAt,
		InstallationID:      m.InstallationID,
		ConsecutiveFailures: m.ConsecutiveFailures,
		LastFailedAt:        m.LastFailedAt,
	}, nil
}

// --- Payout models ---

type payoutModel struct {
	bun.BaseModel `bun:"table:beacon_payouts,alias:bpo"`

	ID             string     `bun:"id,pk"`
	WorkspaceID    string     `bun:"workspace_id,notnull"`
	PartnerID      string     `bun:"partner_id,notnull"`
	InvoiceID      *string    `bun:"invoice_id"`
	Amount         int64      `bun:"amount,notnull"`
	Currency       string     `bun:"currency,notnull"`
	Status         string     `bun:"status,notnull"`
	Mode           string     `bun:"mode,notnull"`
	WebhookEventID *string    `bun:"webhook_event_id"`
	PaidAt         *time.Time `bun:"paid_at,nullzero"`
	FailureReason  *string    `bun:"failure_reason"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toPayoutModel(p *payout.Payout) *payoutModel {
	return &payoutModel{
		ID:             p.ID,
		WorkspaceID:    p.WorkspaceID,
		PartnerID:      p.PartnerID,
		InvoiceID:      p.InvoiceID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		Mode:           string(p.Mode),
		WebhookEventID: p.WebhookEventID,
		PaidAt:         p.PaidAt,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPayoutModel(m *payoutModel) *payout.Payout {
	return &payout.Payout{
		Entity:         entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:             m.ID,
		WorkspaceID:    m.WorkspaceID,
		PartnerID:      m.PartnerID,
		InvoiceID:      m.InvoiceID,
		Amount:         m.Amount,
		Currency:       m.Currency,
		Status:         payout.Status(m.Status),
		Mode:           payout.Mode(m.Mode),
		WebhookEventID: m.WebhookEventID,
		PaidAt:         m.PaidAt,
		FailureReason:  m.FailureReason,
	}
}

type commissionModel struct {
	bun.BaseModel `bun:"table:beacon_commissions,alias:bcm"`

	ID        string    `bun:"id,pk"`
	PayoutID  *string   `bun:"payout_id"`
	PartnerID string    `bun:"partner_id,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Earnings  int64     `bun:"earnings,notnull"`
	Currency  string    `bun:"currency,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toCommissionModel(c *payout.Commission) *commissionModel {
	return &commissionModel{
		ID:        c.ID,
		PayoutID:  c.PayoutID,
		PartnerID: c.PartnerID,
		Amount:    c.Amount,
		Earnings:  c.Earnings,
		Currency:  c.Currency,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func fromCommissionModel(m *commissionModel) *payout.Commission {
	return &payout.Commission{
		Entity:    entity.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        m.ID,
		PayoutID:  m.PayoutID,
		PartnerID: m.PartnerID,
		Amount:    m.Amount,
		Earnings:  m.Earnings,
		Currency:  m.Currency,
		Status:    payout.CommissionStatus(m.Status),
	}
}

// --- Event log models ---

type eventLogModel struct {
	bun.BaseModel `bun:"table:beacon_event_log,alias:bel"`

	ID           int64     `bun:"id,pk,autoincrement"`
	EventID      string    `bun:"event_id,notnull"`
	WebhookID    string    `bun:"webhook_id,notnull"`
	Event        string    `bun:"event,notnull"`
	URL          string    `bun:"url,notnull"`
	Outcome      string    `bun:"outcome,notnull"`
	HTTPStatus   int       `bun:"http_status,notnull,default:0"`
	MessageID    string    `bun:"message_id,notnull"`
	RequestBody  string    `bun:"request_body"`
	ResponseBody string    `bun:"response_body"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func toEventLogModel(e *eventlog.Entry) *eventLogModel {
	return &eventLogModel{
		EventID:      e.EventID,
		WebhookID:    e.WebhookID.String(),
		Event:        string(e.Event),
		URL:          e.URL,
		Outcome:      string(e.Outcome),
		HTTPStatus:   e.HTTPStatus,
		MessageID:    e.MessageID,
		RequestBody:  e.RequestBody,
		ResponseBody: e.ResponseBody,
		CreatedAt:    e.CreatedAt,
	}
}

func fromEventLogModel(m *eventLogModel) (*eventlog.Entry, error) {
	whID, err := id.ParseWebhookID(m.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
	}
	return &eventlog.Entry{
		ID:           m.ID,
		EventID:      m.EventID,
		WebhookID:    whID,
		Event:        trigger.Trigger(m.Event),
		URL:          m.URL,
		Outcome:      queue.Outcome(m.Outcome),
		HTTPStatus:   m.HTTPStatus,
		MessageID:    m.MessageID,
		RequestBody:  m.RequestBody,
		ResponseBody: m.ResponseBody,
		CreatedAt:    m.CreatedAt,
	}, nil
}
