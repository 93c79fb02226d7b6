package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/signature"
)

// Notifier posts outcome reports to delivery callback URLs, each signed
// with a callback token.
type Notifier struct {
	client   *http.Client
	key      string
	tokenTTL time.Duration
}

// NewNotifier creates a notifier signing with key.
func NewNotifier(key string, timeout, tokenTTL time.Duration) *Notifier {
	if tokenTTL <= 0 {
		tokenTTL = 5 * time.Minute
	}
	return &Notifier{
		client:   &http.Client{Timeout: timeout},
		key:      key,
		tokenTTL: tokenTTL,
	}
}

// Notify reports the outcome of the latest attempt of d.
func (n *Notifier) Notify(ctx context.Context, d *Delivery, outcome queue.Outcome, res Result) error {
	if d.CallbackURL == "" {
		return nil
	}

	retried, maxRetries := retryCounters(d)
	body, err := json.Marshal(queue.Report{
		Outcome:         outcome,
		HTTPStatus:      res.StatusCode,
		Retried:         retried,
		MaxRetries:      maxRetries,
		SourceMessageID: d.ID.String(),
		URL:             d.URL,
		SourceBody:      d.Body,
		Body:            []byte(res.Response),
	})
	if err != nil {
		return fmt.Errorf("delivery: marshal report: %w", err)
	}

	token, err := signature.IssueCallbackToken(n.key, d.CallbackURL, body, n.tokenTTL)
	if err != nil {
		return fmt.Errorf("delivery: sign report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.TokenHeader, token)

	resp, err := n.client.Do(req) //nolint:gosec // callback URL is built by this process
	if err != nil {
		return fmt.Errorf("delivery: callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("delivery: callback: status %d", resp.StatusCode)
	}
	return nil
}
