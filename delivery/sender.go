package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// Result holds the outcome of a single delivery attempt. StatusCode is 0
// when no response arrived.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given HTTP timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send POSTs the delivery body with its headers and returns the result.
func (s *Sender) Send(ctx context.Context, d *Delivery) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Beacon/1.0")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Beacon-Message-Id", d.ID.String())

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	res := Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = resp.Status
	}
	return res
}
