package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles named JSON Schemas once and validates documents
// against them.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles schema under name, replacing any previous schema of
// the same name.
func (v *Validator) Register(name string, schema any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", name, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("unmarshal schema %s: %w", name, err)
	}

	url := "beacon://schema/" + name + ".json"

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return fmt.Errorf("add schema resource %s: %w", name, addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}

	v.mu.Lock()
	v.cache[name] = compiled
	v.mu.Unlock()

	return nil
}

// ValidateJSON decodes raw and validates it against the schema registered
// under name.
func (v *Validator) ValidateJSON(name string, raw []byte) error {
	v.mu.RLock()
	compiled, ok := v.cache[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrigger, name)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	return compiled.Validate(doc)
}
