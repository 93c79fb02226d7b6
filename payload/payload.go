// Package payload defines the public data shapes carried in the "data"
// field of webhook envelopes, one per trigger, plus the flat internal
// records that lead and sale events are reshaped from.
package payload

// Link is a short link as exposed to webhook receivers.
type Link struct {
	ID          string   `json:"id"`
	Domain      string   `json:"domain"`
	Key         string   `json:"key"`
	ShortLink   string   `json:"shortLink"`
	URL         string   `json:"url"`
	Archived    bool     `json:"archived"`
	ExpiresAt   *string  `json:"expiresAt"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	ExternalID  *string  `json:"externalId"`
	TenantID    *string  `json:"tenantId"`
	ProgramID   *string  `json:"programId"`
	PartnerID   *string  `json:"partnerId"`
	TagIDs      []string `json:"tagIds"`
	UTMSource   *string  `json:"utm_source"`
	UTMMedium   *string  `json:"utm_medium"`
	UTMCampaign *string  `json:"utm_campaign"`
	UTMTerm     *string  `json:"utm_term"`
	UTMContent  *string  `json:"utm_content"`
	WorkspaceID string   `json:"workspaceId"`
	Clicks      int64    `json:"clicks"`
	Leads       int64    `json:"leads"`
	Sales       int64    `json:"sales"`
	SaleAmount  int64    `json:"saleAmount"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// Click describes one tracked visit of a short link.
type Click struct {
	ID         string `json:"id"`
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
	RefererURL string `json:"refererUrl"`
	IP         string `json:"ip"`
	QR         bool   `json:"qr"`
	Bot        bool   `json:"bot"`
}

// Customer is the person a lead or sale is attributed to.
type Customer struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"externalId"`
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	Avatar     *string `json:"avatar"`
	Country    *string `json:"country"`
	// Sales counts the customer's sales including the current one. Only set
	// on sale events.
	Sales     *int64 `json:"sales,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// PartnerRef is the compact partner reference embedded in other events.
type PartnerRef struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Image   *string `json:"image"`
	Country *string `json:"country"`
}

// Sale holds the monetary details of a sale event.
type Sale struct {
	Amount           int64          `json:"amount"`
	Currency         string         `json:"currency"`
	PaymentProcessor string         `json:"paymentProcessor"`
	InvoiceID        *string        `json:"invoiceId"`
	Metadata         map[string]any `json:"metadata"`
}

// ClickEvent is the data of link.clicked.
type ClickEvent struct {
	Click Click `json:"click"`
	Link  Link  `json:"link"`
}

// LeadEvent is the data of lead.created.
type LeadEvent struct {
	EventName string      `json:"eventName"`
	Customer  Customer    `json:"customer"`
	Click     Click       `json:"click"`
	Link      Link        `json:"link"`
	Partner   *PartnerRef `json:"partner,omitempty"`

	// Deprecated: use Click.ID.
	ClickID string `json:"click_id"`
	// Deprecated: use Link.ID.
	LinkID string `json:"link_id"`
	// Deprecated: use Customer.ID.
	CustomerID string `json:"customer_id"`
}

// Normalize copies nested identifiers into their deprecated top-level
// duplicates so both always carry the same value.
func (e *LeadEvent) Normalize() {
	e.ClickID = e.Click.ID
	e.LinkID = e.Link.ID
	e.CustomerID = e.Customer.ID
}

// SaleEvent is the data of sale.created.
type SaleEvent struct {
	EventName string      `json:"eventName"`
	Customer  Customer    `json:"customer"`
	Click     Click       `json:"click"`
	Link      Link        `json:"link"`
	Sale      Sale        `json:"sale"`
	Partner   *PartnerRef `json:"partner,omitempty"`

	// Deprecated: use Click.ID.
	ClickID string `json:"click_id"`
	// Deprecated: use Link.ID.
	LinkID string `json:"link_id"`
	// Deprecated: use Customer.ID.
	CustomerID string `json:"customer_id"`
	// Deprecated: use Sale.InvoiceID.
	InvoiceID *string `json:"invoice_id"`
}

// Normalize copies nested identifiers into their deprecated top-level
// duplicates so both always carry the same value.
func (e *SaleEvent) Normalize() {
	e.ClickID = e.Click.ID
	e.LinkID = e.Link.ID
	e.CustomerID = e.Customer.ID
	e.InvoiceID = e.Sale.InvoiceID
}

// IsRecurring reports whether the customer had sales before this one.
func (e *SaleEvent) IsRecurring() bool {
	return e.Customer.Sales != nil && *e.Customer.Sales > 1
}

// Partner is an enrolled program partner.
type Partner struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CompanyName *string `json:"companyName"`
	Email       *string `json:"email"`
	Image       *string `json:"image"`
	Country     *string `json:"country"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	ProgramID   string  `json:"programId"`
	TenantID    *string `json:"tenantId"`
	Links       []Link  `json:"links"`
	CreatedAt   string  `json:"createdAt"`
}

// Application is the data of partner.application_submitted.
type Application struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"createdAt"`
	Partner   Partner         `json:"partner"`
	FormData  []FormDataEntry `json:"applicationFormData"`
}

// FormDataEntry is one answered question on a partner application.
type FormDataEntry struct {
	Label string  `json:"label"`
	Value *string `json:"value"`
}

// Commission is the data of commission.created.
type Commission struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Amount      int64      `json:"amount"`
	Earnings    int64      `json:"earnings"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	InvoiceID   *string    `json:"invoiceId"`
	Description *string    `json:"description"`
	Quantity    int64      `json:"quantity"`
	Partner     PartnerRef `json:"partner"`
	Customer    *Customer  `json:"customer"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// Bounty is the data of bounty.created and bounty.updated.
type Bounty struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Type              string  `json:"type"`
	StartsAt          string  `json:"startsAt"`
	EndsAt            *string `json:"endsAt"`
	RewardAmount      int64   `json:"rewardAmount"`
	RewardDescription *string `json:"rewardDescription"`
}

// Payout is the data of payout.confirmed.
type Payout struct {
	ID          string     `json:"id"`
	InvoiceID   *string    `json:"invoiceId"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Mode        string     `json:"mode"`
	Description *string    `json:"description"`
	PeriodStart *string    `json:"periodStart"`
	PeriodEnd   *string    `json:"periodEnd"`
	Partner     PartnerRef `json:"partner"`
	CreatedAt   string     `json:"createdAt"`
	PaidAt      *string    `json:"paidAt"`
}
