// Package catalog holds the per-trigger payload schemas and the static
// sample payloads used by the "send test event" feature.
package catalog

import (
	"errors"
	"fmt"

	"github.com/xraph/beacon/trigger"
)

// ErrUnknownTrigger is returned for triggers without a registered schema.
var ErrUnknownTrigger = errors.New("catalog: unknown trigger")

// Entry describes one trigger for listing.
type Entry struct {
	Trigger     trigger.Trigger `json:"trigger"`
	Description string          `json:"description"`
}

// Catalog validates payload data per trigger.
type Catalog struct {
	validator *Validator
}

// New compiles the schema of every trigger. It panics if a schema fails to
// compile, since schemas are fixed at build time.
func New() *Catalog {
	v := NewValidator()
	for _, t := range trigger.All() {
		schema := schemaFor(t)
		if schema == nil {
			panic(fmt.Sprintf("catalog: no schema for trigger %s", t))
		}
		if err := v.Register(string(t), schema); err != nil {
			panic(err)
		}
	}
	return &Catalog{validator: v}
}

// Validate checks the JSON-encoded data of an envelope against the schema
// of t.
func (c *Catalog) Validate(t trigger.Trigger, data []byte) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, t)
	}
	return c.validator.ValidateJSON(string(t), data)
}

// Schema returns the JSON Schema document for t.
func (c *Catalog) Schema(t trigger.Trigger) (map[string]any, error) {
	s := schemaFor(t)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, t)
	}
	return s, nil
}

// Entries lists every trigger with its description.
func (c *Catalog) Entries() []Entry {
	all := trigger.All()
	out := make([]Entry, len(all))
	for i, t := range all {
		out[i] = Entry{Trigger: t, Description: t.Description()}
	}
	return out
}
