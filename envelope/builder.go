package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/beacon/catalog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/trigger"
)

// ErrInvalidPayload is returned when built data does not satisfy the
// schema of its trigger.
var ErrInvalidPayload = errors.New("envelope: invalid payload")

// ValidationError carries the structural context of a rejected payload.
type ValidationError struct {
	Trigger trigger.Trigger
	Data    json.RawMessage
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrInvalidPayload, e.Trigger, e.Err)
}

// Unwrap exposes both ErrInvalidPayload and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrInvalidPayload, e.Err}
}

// Builder converts internal event data into validated envelopes.
type Builder struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewBuilder returns a Builder validating against cat. A nil now uses
// time.Now.
func NewBuilder(cat *catalog.Catalog, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{catalog: cat, now: now}
}

// Build shapes raw into the public data of t, validates it and wraps it in
// a new envelope with a fresh event id.
//
// raw may be the public shape for t, JSON bytes of it, or for lead.created
// and sale.created the internal payload.LeadRecord / payload.SaleRecord.
func (b *Builder) Build(t trigger.Trigger, raw any) (*Envelope, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidPayload, trigger.ErrUnknown, t)
	}

	data, err := shape(t, raw)
	if err != nil {
		return nil, &ValidationError{Trigger: t, Err: err}
	}

	encoded, err := encodeData(data)
	if err != nil {
		return nil, &ValidationError{Trigger: t, Err: err}
	}

	if err := b.catalog.Validate(t, encoded); err != nil {
		return nil, &ValidationError{Trigger: t, Data: encoded, Err: err}
	}

	createdAt := b.now().UTC().Truncate(time.Millisecond)
	return newEnvelope(id.NewEventID(), t, createdAt, encoded)
}

func encodeData(data any) ([]byte, error) {
	if raw, ok := data.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("data is not valid JSON")
		}
		return compact(raw)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	return encoded, nil
}
