package qstash_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/queue/qstash"
)

func TestPublish(t *testing.T) {
	var (
		gotPath   string
		gotHeader http.Header
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"msg_123"}`))
	}))
	defer srv.Close()

	p := qstash.New(qstash.Config{BaseURL: srv.URL, Token: "tok", Retries: 3}, nil)
	receipt, err := p.Publish(context.Background(), queue.Message{
		URL:         "https://example.com/hook",
		Body:        []byte(`{"id":"evt_1"}`),
		Headers:     map[string]string{"Beacon-Signature": "abc"},
		CallbackURL: "https://beacon.dev/callback?webhookId=wh_1",
		Delay:       5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.MessageID != "msg_123" {
		t.Errorf("message id = %q", receipt.MessageID)
	}
	if gotPath != "/v2/publish/https://example.com/hook" {
		t.Errorf("path = %q", gotPath)
	}
	if string(gotBody) != `{"id":"evt_1"}` {
		t.Errorf("body = %s", gotBody)
	}

	want := map[string]string{
		"Authorization":                    "Bearer tok",
		"Upstash-Callback":                 "https://beacon.dev/callback?webhookId=wh_1",
		"Upstash-Failure-Callback":         "https://beacon.dev/callback?webhookId=wh_1",
		"Upstash-Delay":                    "5s",
		"Upstash-Retries":                  "3",
		"Upstash-Forward-Beacon-Signature": "abc",
	}
	for k, v := range want {
		if got := gotHeader.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestPublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := qstash.New(qstash.Config{BaseURL: srv.URL}, nil)
	_, err := p.Publish(context.Background(), queue.Message{URL: "https://example.com"})
	if !errors.Is(err, queue.ErrPublish) {
		t.Fatalf("err = %v, want ErrPublish", err)
	}
}

func TestPublishDelayRoundsUp(t *testing.T) {
	tests := []struct {
		delay time.Duration
		want  string
	}{
		{0, ""},
		{500 * time.Millisecond, "1s"},
		{time.Second, "1s"},
		{1500 * time.Millisecond, "2s"},
		{2 * time.Minute, "120s"},
	}
	for _, tt := range tests {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Upstash-Delay")
			_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
		}))
		p := qstash.New(qstash.Config{BaseURL: srv.URL, Token: "tok"}, nil)
		if _, err := p.Publish(context.Background(), queue.Message{URL: "https://example.com", Delay: tt.delay}); err != nil {
			t.Fatal(err)
		}
		srv.Close()
		if got != tt.want {
			t.Errorf("delay %s: Upstash-Delay = %q, want %q", tt.delay, got, tt.want)
		}
	}
}
