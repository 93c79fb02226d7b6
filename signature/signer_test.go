package signature_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/beacon/signature"
)

func TestSignKnownVector(t *testing.T) {
	got, err := signature.Sign("secret", []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	const want = "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"
	if got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestSignDeterministic(t *testing.T) {
	body := []byte(`{"id":"evt_1","event":"sale.created"}`)
	a, _ := signature.Sign("whsec_abc", body)
	b, _ := signature.Sign("whsec_abc", body)
	if a != b {
		t.Fatalf("signatures differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestSignEmptySecret(t *testing.T) {
	if _, err := signature.Sign("", []byte("x")); !errors.Is(err, signature.ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"original":true}`)
	sig, _ := signature.Sign("whsec_verify", body)

	if !signature.Verify("whsec_verify", body, sig) {
		t.Error("Verify() returned false for valid signature")
	}
	if signature.Verify("whsec_verify", []byte(`{"original":false}`), sig) {
		t.Error("Verify() returned true for tampered body")
	}
	if signature.Verify("whsec_other", body, sig) {
		t.Error("Verify() returned true for wrong secret")
	}
	if signature.Verify("", body, sig) {
		t.Error("Verify() returned true for empty secret")
	}
}

func TestForwardedAuthorization(t *testing.T) {
	got, err := signature.ForwardedAuthorization("writekey")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Basic ") {
		t.Fatalf("expected Basic scheme, got %q", got)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, "Basic "))
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != "writekey:" {
		t.Fatalf("decoded credentials = %q", decoded)
	}
	if strings.Contains(got, "writekey") {
		t.Fatal("raw secret leaked into header value")
	}

	if _, err := signature.ForwardedAuthorization(""); !errors.Is(err, signature.ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
