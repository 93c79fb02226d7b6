package receiver

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/trigger"
)

type segmentTrack struct {
	Type        string          `json:"type"`
	Event       string          `json:"event"`
	MessageID   string          `json:"messageId"`
	Timestamp   string          `json:"timestamp"`
	AnonymousID string          `json:"anonymousId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	Context     *segmentContext `json:"context,omitempty"`
	Properties  json.RawMessage `json:"properties"`
}

type segmentContext struct {
	Campaign map[string]string `json:"campaign"`
}

var segmentEvents = map[trigger.Trigger]string{
	trigger.LinkClicked: "Link Clicked",
	trigger.LeadCreated: "Lead Created",
	trigger.SaleCreated: "Sale Created",
}

func customerData(env *envelope.Envelope) ([]byte, error) {
	name, ok := segmentEvents[env.Event()]
	if !ok {
		return nil, fmt.Errorf("%w: %s for customer data receivers", ErrUnsupportedTrigger, env.Event())
	}

	track := segmentTrack{
		Type:       "track",
		Event:      name,
		MessageID:  env.ID().String(),
		Timestamp:  payload.FormatTime(env.CreatedAt()),
		Properties: env.Data(),
	}

	var identity struct {
		Click    payload.Click    `json:"click"`
		Customer payload.Customer `json:"customer"`
		Link     payload.Link     `json:"link"`
	}
	if err := env.DecodeData(&identity); err != nil {
		return nil, fmt.Errorf("receiver: customer data %s: %w", env.Event(), err)
	}

	// Segment rejects a track call without any identity. Customers without
	// an external id are tracked anonymously by their click.
	switch {
	case env.Event() != trigger.LinkClicked && identity.Customer.ExternalID != "":
		track.UserID = identity.Customer.ExternalID
	default:
		track.AnonymousID = identity.Click.ID
	}

	if campaign := campaignOf(identity.Link); len(campaign) > 0 {
		track.Context = &segmentContext{Campaign: campaign}
	}

	return json.Marshal(track)
}

// campaignOf collects the non-empty UTM attributes of a link under their
// campaign context names.
func campaignOf(l payload.Link) map[string]string {
	campaign := make(map[string]string)
	for key, val := range map[string]*string{
		"source":  l.UTMSource,
		"medium":  l.UTMMedium,
		"name":    l.UTMCampaign,
		"term":    l.UTMTerm,
		"content": l.UTMContent,
	} {
		if val != nil && *val != "" {
			campaign[key] = *val
		}
	}
	return campaign
}
