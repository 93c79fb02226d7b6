package payload

import (
	"fmt"
	"time"
)

// TimeLayout is the ISO-8601 UTC layout used for every timestamp in a
// payload, e.g. "2025-03-01T12:00:00.000Z".
const TimeLayout = "2006-01-02T15:04:05.000Z"

// analyticsLayout is how the click analytics pipeline renders timestamps.
const analyticsLayout = "2006-01-02 15:04:05.000"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NormalizeTimestamp converts an analytics or RFC 3339 timestamp into
// TimeLayout. Empty input stays empty.
func NormalizeTimestamp(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano, analyticsLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FormatTime(t), nil
		}
	}
	return "", fmt.Errorf("payload: unrecognized timestamp %q", s)
}

// ClickRecord is a click row as produced by the analytics pipeline: flat,
// snake_case, with boolean flags encoded as 0 or 1.
type ClickRecord struct {
	ClickID    string `json:"click_id"`
	Timestamp  string `json:"timestamp"`
	URL        string `json:"url"`
	Country    string `json:"country"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Continent  string `json:"continent"`
	Device     string `json:"device"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	Referer    string `json:"referer"`
	RefererURL string `json:"referer_url"`
	IP         string `json:"ip"`
	QR         int    `json:"qr"`
	Bot        int    `json:"bot"`
}

// CustomerRecord is the internal customer row.
type CustomerRecord struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email"`
	Avatar     *string   `json:"avatar"`
	Country    *string   `json:"country"`
	Sales      *int64    `json:"sales"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeadRecord is the raw input for a lead.created dispatch.
type LeadRecord struct {
	EventName string         `json:"event_name"`
	Click     ClickRecord    `json:"click"`
	Link      Link           `json:"link"`
	Customer  CustomerRecord `json:"customer"`
	Partner   *PartnerRef    `json:"partner"`
}

// SaleRecord is the raw input for a sale.created dispatch.
type SaleRecord struct {
	LeadRecord

	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	PaymentProcessor string         `json:"payment_processor"`
	InvoiceID        *string        `json:"invoice_id"`
	Metadata         map[string]any `json:"metadata"`
}
