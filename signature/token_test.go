package signature_test

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/xraph/beacon/signature"
)

const callbackURL = "https://beacon.example.com/callback?webhookId=wh_1"

func TestCallbackTokenRoundTrip(t *testing.T) {
	body := []byte(`{"status":"success"}`)
	token, err := signature.IssueCallbackToken("current", callbackURL, body, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	v := signature.NewTokenVerifier("current", "")
	if err := v.Verify(token, callbackURL, body); err != nil {
		t.Fatalf("Verify() = %v", err)
	}
	if err := v.Verify(token, "", body); err != nil {
		t.Fatalf("Verify() without url = %v", err)
	}
}

func TestCallbackTokenRejections(t *testing.T) {
	body := []byte(`{"status":"success"}`)
	token, err := signature.IssueCallbackToken("current", callbackURL, body, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := signature.IssueCallbackToken("current", callbackURL, body, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		verifier *signature.TokenVerifier
		token    string
		url      string
		body     []byte
	}{
		{"wrong key", signature.NewTokenVerifier("other", ""), token, callbackURL, body},
		{"tampered body", signature.NewTokenVerifier("current", ""), token, callbackURL, []byte(`{"status":"failure"}`)},
		{"wrong url", signature.NewTokenVerifier("current", ""), token, "https://evil.example.com/callback", body},
		{"expired", signature.NewTokenVerifier("current", ""), expired, callbackURL, body},
		{"missing", signature.NewTokenVerifier("current", ""), "", callbackURL, body},
		{"garbage", signature.NewTokenVerifier("current", ""), "a.b.c", callbackURL, body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verifier.Verify(tt.token, tt.url, tt.body)
			if !errors.Is(err, signature.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestCallbackTokenNextKey(t *testing.T) {
	body := []byte(`{}`)
	token, err := signature.IssueCallbackToken("next", callbackURL, body, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if err := signature.NewTokenVerifier("current", "next").Verify(token, callbackURL, body); err != nil {
		t.Fatalf("token signed with next key rejected: %v", err)
	}
	if err := signature.NewTokenVerifier("current", "").Verify(token, callbackURL, body); err == nil {
		t.Fatal("token signed with unknown key accepted")
	}
}

func TestIssueCallbackTokenEmptyKey(t *testing.T) {
	if _, err := signature.IssueCallbackToken("", callbackURL, nil, time.Minute); !errors.Is(err, signature.ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestCallbackTokenBoundToQuery(t *testing.T) {
	const subject = "https://beacon.example.com/callback?webhookId=wh_1&eventId=evt_1&event=link.created"
	params := []string{"webhookId", "eventId", "event"}
	body := []byte(`{"status":410}`)
	token, err := signature.IssueCallbackToken("current", subject, body, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	v := signature.NewTokenVerifier("current", "")

	same := url.Values{"webhookId": {"wh_1"}, "eventId": {"evt_1"}, "event": {"link.created"}}
	if err := v.VerifyQuery(token, same, params, body); err != nil {
		t.Fatalf("VerifyQuery() = %v", err)
	}

	tests := []struct {
		name  string
		query url.Values
	}{
		{"other webhook", url.Values{"webhookId": {"wh_2"}, "eventId": {"evt_1"}, "event": {"link.created"}}},
		{"other event id", url.Values{"webhookId": {"wh_1"}, "eventId": {"evt_2"}, "event": {"link.created"}}},
		{"other trigger", url.Values{"webhookId": {"wh_1"}, "eventId": {"evt_1"}, "event": {"payout.confirmed"}}},
		{"missing param", url.Values{"webhookId": {"wh_1"}, "eventId": {"evt_1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.VerifyQuery(token, tt.query, params, body); !errors.Is(err, signature.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
