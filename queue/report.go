package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Outcome is the delivery status carried by a callback.
type Outcome string

const (
	// Success means the receiver accepted the delivery.
	Success Outcome = "success"

	// Failure means the queue gave up on the delivery.
	Failure Outcome = "failure"

	// TemporaryFailure means an attempt failed and the queue will retry.
	TemporaryFailure Outcome = "temporary_failure"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case Success, Failure, TemporaryFailure:
		return true
	}
	return false
}

// Report is the body the queue posts to a callback URL.
//
// The status field is either an outcome string or the numeric HTTP status
// of the last attempt; in the latter case the outcome is derived from the
// status code and the retry counters.
type Report struct {
	Outcome         Outcome `json:"-"`
	HTTPStatus      int     `json:"-"`
	Retried         int     `json:"retried"`
	MaxRetries      int     `json:"maxRetries"`
	SourceMessageID string  `json:"sourceMessageId"`
	URL             string  `json:"url"`

	// SourceBody is the delivered payload.
	SourceBody []byte `json:"sourceBody"`

	// Body is the receiver's response body.
	Body []byte `json:"body"`
}

type reportWire struct {
	Status          json.RawMessage `json:"status"`
	HTTPStatus      int             `json:"httpStatus,omitempty"`
	Retried         int             `json:"retried"`
	MaxRetries      int             `json:"maxRetries"`
	SourceMessageID string          `json:"sourceMessageId"`
	URL             string          `json:"url"`
	SourceBody      []byte          `json:"sourceBody"`
	Body            []byte          `json:"body"`
}

// MarshalJSON encodes the outcome as the status string and the HTTP status
// separately.
func (r Report) MarshalJSON() ([]byte, error) {
	status, err := json.Marshal(string(r.Outcome))
	if err != nil {
		return nil, err
	}
	return json.Marshal(reportWire{
		Status:          status,
		HTTPStatus:      r.HTTPStatus,
		Retried:         r.Retried,
		MaxRetries:      r.MaxRetries,
		SourceMessageID: r.SourceMessageID,
		URL:             r.URL,
		SourceBody:      r.SourceBody,
		Body:            r.Body,
	})
}

// UnmarshalJSON accepts both status encodings.
func (r *Report) UnmarshalJSON(data []byte) error {
	var w reportWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Report{
		HTTPStatus:      w.HTTPStatus,
		Retried:         w.Retried,
		MaxRetries:      w.MaxRetries,
		SourceMessageID: w.SourceMessageID,
		URL:             w.URL,
		SourceBody:      w.SourceBody,
		Body:            w.Body,
	}

	raw := bytes.TrimSpace(w.Status)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return fmt.Errorf("queue: report: missing status")
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("queue: report status: %w", err)
		}
		if code, err := strconv.Atoi(s); err == nil {
			r.HTTPStatus = code
			r.Outcome = OutcomeFor(code, w.Retried, w.MaxRetries)
			return nil
		}
		r.Outcome = Outcome(s)
		if !r.Outcome.Valid() {
			return fmt.Errorf("queue: report: unknown status %q", s)
		}
	default:
		code, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("queue: report status: %w", err)
		}
		r.HTTPStatus = code
		r.Outcome = OutcomeFor(code, w.Retried, w.MaxRetries)
	}
	return nil
}

// OutcomeFor classifies an attempt that ended with HTTP status code, 0 for
// a transport error, after retried earlier attempts out of a budget of
// maxRetries. 2xx succeeds. 410 and every other 4xx except 429 are final.
// Anything else is temporary until the budget is spent.
func OutcomeFor(code, retried, maxRetries int) Outcome {
	switch {
	case code >= 200 && code < 300:
		return Success
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
		return Failure
	case retried >= maxRetries:
		return Failure
	}
	return TemporaryFailure
}
