package catalog_test

import (
	"errors"
	"testing"

	"github.com/xraph/beacon/catalog"
)

func TestValidatorValidPayload(t *testing.T) {
	v := catalog.NewValidator()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount":   map[string]any{"type": "number"},
			"currency": map[string]any{"type": "string"},
		},
		"required": []any{"amount", "currency"},
	}
	if err := v.Register("money", schema); err != nil {
		t.Fatal(err)
	}

	if err := v.ValidateJSON("money", []byte(`{"amount":100.5,"currency":"USD"}`)); err != nil {
		t.Fatal("valid payload should pass, got:", err)
	}
}

func TestValidatorMissingRequired(t *testing.T) {
	v := catalog.NewValidator()

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	if err := v.Register("named", schema); err != nil {
		t.Fatal(err)
	}

	if err := v.ValidateJSON("named", []byte(`{"other":"value"}`)); err == nil {
		t.Fatal("expected validation error for missing required field")
	}
}

func TestValidatorWrongType(t *testing.T) {
	v := catalog.NewValidator()

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"count": map[string]any{"type": "integer"}},
	}
	if err := v.Register("counted", schema); err != nil {
		t.Fatal(err)
	}

	if err := v.ValidateJSON("counted", []byte(`{"count":"not-a-number"}`)); err == nil {
		t.Fatal("expected validation error for wrong type")
	}
	if err := v.ValidateJSON("counted", []byte(`{"count":3}`)); err != nil {
		t.Fatal("integer should pass, got:", err)
	}
}

func TestValidatorUnregistered(t *testing.T) {
	v := catalog.NewValidator()
	if err := v.ValidateJSON("missing", []byte(`{}`)); !errors.Is(err, catalog.ErrUnknownTrigger) {
		t.Fatalf("expected ErrUnknownTrigger, got %v", err)
	}
}

func TestValidatorMalformedDocument(t *testing.T) {
	v := catalog.NewValidator()
	if err := v.Register("any", map[string]any{"type": "object"}); err != nil {
		t.Fatal(err)
	}
	if err := v.ValidateJSON("any", []byte(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}
