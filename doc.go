// Package beacon notifies external systems about platform events through
// outbound webhooks.
//
// Beacon is a library with an optional daemon (cmd/beacon). It resolves the
// webhooks subscribed to an occurrence, builds one versioned envelope per
// occurrence, adapts it to each receiver's wire format (generic JSON, chat
// messages, customer-data track calls), signs it with the webhook secret and
// hands it to a durable at-least-once queue. Delivery outcomes come back as
// callbacks that update webhook health, feed the event log and finalize
// payouts exactly once.
//
// Key features:
//   - Per-trigger JSON Schema validation of every envelope
//   - HMAC-SHA256 signatures over the exact bytes a receiver gets
//   - Concurrent all-settle fan-out; one failing webhook never blocks others
//   - Local queue (memory or Redis) with retries and a dead letter queue, or
//     an external QStash-compatible queue
//   - SQL persistence through bun (SQLite, Postgres)
//   - Prometheus metrics and OpenTelemetry tracing
//
// Quick start:
//
//	s := memory.New()
//	b, err := beacon.New(
//	    beacon.WithStore(s),
//	    beacon.WithQueueStore(s),
//	    beacon.WithConfig(beacon.Config{CallbackURL: "https://app.example.com/api/webhooks/callback"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b.Start(ctx)
//	defer b.Stop(ctx)
//
//	b.Go(ctx, workspaceID, trigger.LinkCreated, link)
package beacon
