// Package qstash publishes messages to an external HTTP durable queue that
// speaks the QStash publish API.
package qstash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/beacon/queue"
)

// DefaultBaseURL is the public QStash endpoint.
const DefaultBaseURL = "https://qstash.upstash.io"

const maxErrorBody = 1024

// Config configures a Publisher.
type Config struct {
	// BaseURL of the queue API. Defaults to DefaultBaseURL.
	BaseURL string

	// Token is the bearer token used to publish.
	Token string

	// Retries overrides the queue's retry budget when positive.
	Retries int

	// Timeout bounds each publish request. Defaults to 10s.
	Timeout time.Duration
}

// Publisher implements queue.Publisher over HTTP.
type Publisher struct {
	base    string
	token   string
	retries int
	client  *http.Client
}

var _ queue.Publisher = (*Publisher)(nil)

// New creates a Publisher. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client) *Publisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Publisher{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		retries: cfg.Retries,
		client:  client,
	}
}

// Publish hands msg to the queue and returns its message id.
func (p *Publisher) Publish(ctx context.Context, msg queue.Message) (queue.Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/v2/publish/"+msg.URL, bytes.NewReader(msg.Body))
	if err != nil {
		return queue.Receipt{}, fmt.Errorf("%w: create request: %v", queue.ErrPublish, err)
	}

	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")
	if msg.CallbackURL != "" {
		req.Header.Set("Upstash-Callback", msg.CallbackURL)
		req.Header.Set("Upstash-Failure-Callback", msg.CallbackURL)
	}
	if msg.Delay > 0 {
		req.Header.Set("Upstash-Delay", delayHeader(msg.Delay))
	}
	if p.retries > 0 {
		req.Header.Set("Upstash-Retries", strconv.Itoa(p.retries))
	}
	for k, v := range msg.Headers {
		req.Header.Set("Upstash-Forward-"+k, v)
	}

	resp, err := p.client.Do(req) //nolint:gosec // publish target is the configured queue endpoint
	if err != nil {
		return queue.Receipt{}, fmt.Errorf("%w: %v", queue.ErrPublish, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*maxErrorBody))
	if err != nil {
		return queue.Receipt{}, fmt.Errorf("%w: read response: %v", queue.ErrPublish, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return queue.Receipt{}, fmt.Errorf("%w: status %d: %s", queue.ErrPublish, resp.StatusCode, body)
	}

	var receipt queue.Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return queue.Receipt{}, fmt.Errorf("%w: decode response: %v", queue.ErrPublish, err)
	}
	return receipt, nil
}

// delayHeader renders d in whole seconds, rounded up so a positive delay is
// never dropped.
func delayHeader(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	return strconv.FormatInt(secs, 10) + "s"
}
