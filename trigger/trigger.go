// Package trigger defines the closed vocabulary of events a webhook can
// subscribe to.
package trigger

import (
	"errors"
	"fmt"
)

// ErrUnknown is returned when a string does not name a known trigger.
var ErrUnknown = errors.New("trigger: unknown trigger")

// Trigger identifies one kind of platform event, e.g. "link.created".
type Trigger string

// The complete trigger vocabulary.
const (
	LinkCreated                 Trigger = "link.created"
	LinkUpdated                 Trigger = "link.updated"
	LinkDeleted                 Trigger = "link.deleted"
	LinkClicked                 Trigger = "link.clicked"
	LeadCreated                 Trigger = "lead.created"
	SaleCreated                 Trigger = "sale.created"
	PartnerEnrolled             Trigger = "partner.enrolled"
	PartnerApplicationSubmitted Trigger = "partner.application_submitted"
	CommissionCreated           Trigger = "commission.created"
	BountyCreated               Trigger = "bounty.created"
	BountyUpdated               Trigger = "bounty.updated"
	PayoutConfirmed             Trigger = "payout.confirmed"
)

var ordered = []Trigger{
	LinkCreated,
	LinkUpdated,
	LinkDeleted,
	LinkClicked,
	LeadCreated,
	SaleCreated,
	PartnerEnrolled,
	PartnerApplicationSubmitted,
	CommissionCreated,
	BountyCreated,
	BountyUpdated,
	PayoutConfirmed,
}

var descriptions = map[Trigger]string{
	LinkCreated:                 "Link created",
	LinkUpdated:                 "Link updated",
	LinkDeleted:                 "Link deleted",
	LinkClicked:                 "Link clicked",
	LeadCreated:                 "Lead created",
	SaleCreated:                 "Sale created",
	PartnerEnrolled:             "Partner enrolled",
	PartnerApplicationSubmitted: "Partner application submitted",
	CommissionCreated:           "Commission created",
	BountyCreated:               "Bounty created",
	BountyUpdated:               "Bounty updated",
	PayoutConfirmed:             "Payout confirmed",
}

// All returns every trigger in a stable order.
func All() []Trigger {
	out := make([]Trigger, len(ordered))
	copy(out, ordered)
	return out
}

// Parse converts s into a Trigger, rejecting anything outside the vocabulary.
func Parse(s string) (Trigger, error) {
	t := Trigger(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return t, nil
}

// Valid reports whether t belongs to the vocabulary.
func (t Trigger) Valid() bool {
	_, ok := descriptions[t]
	return ok
}

// Description returns the human-readable label for t, or "" if t is unknown.
func (t Trigger) Description() string {
	return descriptions[t]
}

// String implements fmt.Stringer.
func (t Trigger) String() string { return string(t) }

// Set is an unordered collection of triggers.
type Set []Trigger

// Contains reports whether t is a member of the set.
func (s Set) Contains(t Trigger) bool {
	for _, x := range s {
		if x == t {
			return true
		}
	}
	return false
}

// ParseSet parses each string into a trigger, de-duplicating as it goes.
func ParseSet(values []string) (Set, error) {
	out := make(Set, 0, len(values))
	for _, v := range values {
		t, err := Parse(v)
		if err != nil {
			return nil, err
		}
		if !out.Contains(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
