// Package entity defines the timestamp base embedded by persisted beacon records.
package entity

import "time"

// Entity carries creation and modification timestamps.
type Entity struct {
	CreatedAt time.Time `json:"createdAt" bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at,notnull,default:current_timestamp"`
}

// New returns an Entity with both timestamps set to the current UTC time.
func New() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch sets UpdatedAt to the current UTC time.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
