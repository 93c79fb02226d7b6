// Package envelope builds the canonical, versioned webhook envelope
// {id, event, createdAt, data} that every receiver is derived from.
//
// An Envelope is immutable once built. Its canonical bytes are computed
// once and reused for every receiver and every delivery retry, so a
// signature over the same bytes never changes.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/trigger"
)

// ErrMalformed is returned by Parse for bytes that are not an envelope.
var ErrMalformed = errors.New("envelope: malformed envelope")

// Envelope is the canonical payload of one event occurrence.
type Envelope struct {
	id        id.ID
	event     trigger.Trigger
	createdAt time.Time
	data      json.RawMessage
	raw       []byte
}

// wire is the JSON form of an Envelope.
type wire struct {
	ID        string          `json:"id"`
	Event     trigger.Trigger `json:"event"`
	CreatedAt string          `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

func newEnvelope(evtID id.ID, t trigger.Trigger, createdAt time.Time, data []byte) (*Envelope, error) {
	raw, err := json.Marshal(wire{
		ID:        evtID.String(),
		Event:     t,
		CreatedAt: payload.FormatTime(createdAt),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("envelope: encode: %w", err)
	}
	return &Envelope{
		id:        evtID,
		event:     t,
		createdAt: createdAt,
		data:      data,
		raw:       raw,
	}, nil
}

// Parse decodes canonical envelope bytes, e.g. a payload echoed back by
// the delivery queue.
func Parse(raw []byte) (*Envelope, error) {
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	evtID, err := id.ParseEventID(w.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	t, err := trigger.Parse(string(w.Event))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	createdAt, err := time.Parse(payload.TimeLayout, w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, w.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return newEnvelope(evtID, t, createdAt, compact.Bytes())
}

// ID returns the event id shared by all deliveries of this occurrence.
func (e *Envelope) ID() id.ID { return e.id }

// Event returns the trigger.
func (e *Envelope) Event() trigger.Trigger { return e.event }

// CreatedAt returns the build time.
func (e *Envelope) CreatedAt() time.Time { return e.createdAt }

// Data returns a copy of the JSON-encoded data field.
func (e *Envelope) Data() json.RawMessage {
	return bytes.Clone(e.data)
}

// Bytes returns a copy of the canonical JSON encoding.
func (e *Envelope) Bytes() []byte {
	return bytes.Clone(e.raw)
}

// DecodeData unmarshals the data field into v.
func (e *Envelope) DecodeData(v any) error {
	return json.Unmarshal(e.data, v)
}

// MarshalJSON implements json.Marshaler with the canonical bytes.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return e.Bytes(), nil
}
