package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string            `json:"id"`
	DeliveryID     string            `json:"delivery_id"`
	URL            string            `json:"url"`
	Body           []byte            `json:"body"`
	Headers        map[string]string `json:"headers,omitempty"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	Error          string            `json:"error"`
	AttemptCount   int               `json:"attempt_count"`
	LastStatusCode int               `json:"last_status_code"`
	ReplayedAt     *time.Time        `json:"replayed_at,omitempty"`
	FailedAt       time.Time         `json:"failed_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		URL:            e.URL,
		Body:           e.Body,
		Headers:        e.Headers,
		CallbackURL:    e.CallbackURL,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		URL:            m.URL,
		Body:           m.Body,
		Headers:        m.Headers,
		CallbackURL:    m.CallbackURL,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	if err := s.setEntity(ctx, entityKey(prefixDLQ, m.ID), m); err != nil {
		return fmt.Errorf("beacon/redis: push dlq: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zDLQAll, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("beacon/redis: push dlq index: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if opts.From != nil {
		lo = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		hi = scoreFromTime(*opts.To)
	}
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("beacon/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.URL != "" && m.URL != opts.URL {
			continue
		}
		e, err := fromDLQEntryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, fmt.Errorf("beacon/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

func (s *Store) MarkReplayed(ctx context.Context, dlqID id.ID, at time.Time) error {
	key := entityKey(prefixDLQ, dlqID.String())
	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isRedisNil(err) {
			return dlq.ErrNotFound
		}
		return fmt.Errorf("beacon/redis: mark replayed: %w", err)
	}
	m.ReplayedAt = &at
	m.UpdatedAt = now()
	return s.setEntity(ctx, key, &m)
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("beacon/redis: purge dlq: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.TxPipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, entityKey(prefixDLQ, entryID))
		pipe.ZRem(ctx, zDLQAll, entryID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("beacon/redis: purge dlq: %w", err)
	}
	return int64(len(ids)), nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("beacon/redis: count dlq: %w", err)
	}
	return count, nil
}
