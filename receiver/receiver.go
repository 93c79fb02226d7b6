// Package receiver adapts canonical envelopes to the wire format each kind
// of webhook target expects.
package receiver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xraph/beacon/envelope"
)

// Kind classifies the system a webhook URL points at.
type Kind string

const (
	// Generic receivers get the canonical envelope unchanged.
	Generic Kind = "generic"

	// Chat receivers (Slack incoming webhooks) get a block message.
	Chat Kind = "chat"

	// CustomerData receivers (Segment HTTP tracking API) get a track call.
	CustomerData Kind = "customerData"
)

var (
	// ErrNoTemplate is returned when the chat adapter has no template for a trigger.
	ErrNoTemplate = errors.New("receiver: no template for trigger")

	// ErrUnsupportedTrigger is returned when the customer-data adapter cannot
	// express a trigger.
	ErrUnsupportedTrigger = errors.New("receiver: unsupported trigger")

	// ErrUnknownKind is returned for an unrecognized receiver kind.
	ErrUnknownKind = errors.New("receiver: unknown kind")
)

var chatHosts = []string{"hooks.slack.com"}

var customerDataHosts = []string{"api.segment.io", "events.eu1.segmentapis.com"}

// Classify derives the receiver kind from the host of rawURL. Anything
// unrecognized, including malformed URLs, is Generic.
func Classify(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Generic
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostIn(host, chatHosts):
		return Chat
	case hostIn(host, customerDataHosts):
		return CustomerData
	}
	return Generic
}

func hostIn(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h {
			return true
		}
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case Generic, Chat, CustomerData:
		return true
	}
	return false
}

// Transformer renders envelopes for receivers. It holds no mutable state;
// the same envelope always yields the same bytes.
type Transformer struct {
	appURL string
}

// NewTransformer returns a Transformer whose chat deep links point at
// appURL.
func NewTransformer(appURL string) *Transformer {
	return &Transformer{appURL: strings.TrimRight(appURL, "/")}
}

// Transform returns the body to send to a receiver of the given kind.
func (t *Transformer) Transform(env *envelope.Envelope, kind Kind) ([]byte, error) {
	switch kind {
	case Generic, "":
		return env.Bytes(), nil
	case Chat:
		return t.chat(env)
	case CustomerData:
		return customerData(env)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}
