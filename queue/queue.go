// Package queue defines the contract with the durable delivery queue: what
// the dispatcher publishes and what the queue reports back through the
// callback URL.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrPublish is returned when the queue rejects or fails to accept a message.
var ErrPublish = errors.New("queue: publish failed")

// Message is one delivery handed to the queue.
type Message struct {
	// URL is the receiver endpoint the queue delivers to.
	URL string

	// Body is the exact payload to POST. It is never modified by the queue.
	Body []byte

	// Headers are forwarded to the receiver with every attempt.
	Headers map[string]string

	// CallbackURL is invoked with a Report when delivery settles or an
	// attempt fails.
	CallbackURL string

	// Delay postpones the first attempt.
	Delay time.Duration
}

// Receipt acknowledges that a message was accepted.
type Receipt struct {
	MessageID string `json:"messageId"`
}

// Publisher accepts messages for at-least-once delivery.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (Receipt, error)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) (Receipt, error)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, msg Message) (Receipt, error) {
	return f(ctx, msg)
}
