package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Body           []byte            `json:"body"`
	Headers        map[string]string `json:"headers,omitempty"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	State          string            `json:"state"`
	AttemptCount   int               `json:"attempt_count"`
	MaxAttempts    int               `json:"max_attempts"`
	NextAttemptAt  time.Time         `json:"next_attempt_at"`
	LastError      string            `json:"last_error"`
	LastStatusCode int               `json:"last_status_code"`
	LastResponse   string            `json:"last_response"`
	LastLatencyMs  int               `json:"last_latency_ms"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		URL:            d.URL,
		Body:           d.Body,
		Headers:        d.Headers,
		CallbackURL:    d.CallbackURL,
		State:          string(d.State),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		LastResponse:   d.LastResponse,
		LastLatencyMs:  d.LastLatencyMs,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		URL:            m.URL,
		Body:           m.Body,
		Headers:        m.Headers,
		CallbackURL:    m.CallbackURL,
		State:          delivery.State(m.State),
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		LastResponse:   m.LastResponse,
		LastLatencyMs:  m.LastLatencyMs,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// dequeueScript atomically claims due deliveries by removing them from the
// pending set. A claimed delivery returns to the set through UpdateDelivery.
// KEYS[1] = pending sorted set
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var dequeueScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) Enqueue(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	key := entityKey(prefixDelivery, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("beacon/redis: enqueue delivery: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, zDeliveryAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if d.State == delivery.StatePending {
		pipe.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("beacon/redis: enqueue delivery indexes: %w", err)
	}
	return nil
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Delivery, error) {
	if limit <= 0 {
		limit = 1
	}
	nowScore := fmt.Sprintf("%f", scoreFromTime(now()))
	result, err := dequeueScript.Run(ctx, s.rdb, []string{zDeliveryPend}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("beacon/redis: dequeue script: %w", err)
	}

	deliveries := make([]*delivery.Delivery, 0, len(result))
	for _, entryID := range result {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("beacon/redis: dequeue get: %w", err)
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	return deliveries, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *delivery.Delivery) error {
	key := entityKey(prefixDelivery, d.ID.String())
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("beacon/redis: update delivery: %w", err)
	}
	if exists == 0 {
		return delivery.ErrNotFound
	}

	d.Touch()
	m := toDeliveryModel(d)
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("beacon/redis: update delivery: %w", err)
	}

	// A delivery still pending is released back to the pending set.
	if d.State == delivery.StatePending {
		err = s.rdb.ZAdd(ctx, zDeliveryPend, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID}).Err()
	} else {
		err = s.rdb.ZRem(ctx, zDeliveryPend, m.ID).Err()
	}
	if err != nil {
		return fmt.Errorf("beacon/redis: update delivery index: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("beacon/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	ids, err := s.rdb.ZRevRange(ctx, zDeliveryAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("beacon/redis: list deliveries: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for _, entryID := range ids {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, entryID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.State != nil && delivery.State(m.State) != *opts.State {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountPending returns the number of deliveries waiting in the pending
// set. Claimed deliveries are not counted until they are released.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDeliveryPend).Result()
	if err != nil {
		return 0, fmt.Errorf("beacon/redis: count pending: %w", err)
	}
	return count, nil
}
