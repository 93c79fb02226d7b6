package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/beacon"
	"github.com/xraph/beacon/internal/config"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue/qstash"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/store/bunstore"
	"github.com/xraph/beacon/store/memory"
	redisstore "github.com/xraph/beacon/store/redis"
)

// openStore opens the configured aggregate store.
func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	db, err := bunstore.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return bunstore.New(db), nil
}

// runtime is a wired beacon with the resources it owns.
type runtime struct {
	beacon   *beacon.Beacon
	gatherer prometheus.Gatherer
	closers  []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires stores, queue and observability according to cfg.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}

	s, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, s.Close)
	if err := s.Ping(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("store: %w", err)
	}
	if cfg.Store.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}

	opts := []beacon.Option{
		beacon.WithStore(s),
		beacon.WithLogger(logger),
		beacon.WithConfig(cfg.Beacon()),
		beacon.WithTracer(observability.NewTracer()),
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, beacon.WithMetrics(observability.NewMetrics(reg)))
		rt.gatherer = reg
	}

	switch cfg.Queue.Mode {
	case "qstash":
		opts = append(opts, beacon.WithPublisher(qstash.New(qstash.Config{
			BaseURL: cfg.Queue.QStash.BaseURL,
			Token:   cfg.Queue.QStash.Token,
			Retries: cfg.Queue.QStash.Retries,
			Timeout: cfg.Queue.QStash.Timeout,
		}, nil)))
	default:
		qs, closeQueue, err := openQueueStore(ctx, cfg.Queue, s)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		if closeQueue != nil {
			rt.closers = append(rt.closers, closeQueue)
		}
		opts = append(opts, beacon.WithQueueStore(qs))
	}

	b, err := beacon.New(opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.beacon = b
	return rt, nil
}

// openQueueStore returns the local queue store and, when it owns a
// connection, its close function. The memory store doubles as queue store
// when it is also the aggregate store.
func openQueueStore(ctx context.Context, cfg config.QueueConfig, s store.Store) (store.QueueStore, func() error, error) {
	if cfg.LocalStore == "redis" {
		opt, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("queue: redis url: %w", err)
		}
		rs := redisstore.New(goredis.NewClient(opt))
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("queue: redis: %w", err)
		}
		return rs, rs.Close, nil
	}
	if ms, ok := s.(*memory.Store); ok {
		return ms, nil, nil
	}
	return memory.New(), nil, nil
}
